package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gptlisting/backend/internal/domain"
	"github.com/gptlisting/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pairingService *usecase.PairingService
	resultCache    domain.ResultCache
	cacheTTL       time.Duration
}

// NewHandler creates a new HTTP handler. resultCache may be nil, in
// which case every request runs the full pipeline.
func NewHandler(pairingService *usecase.PairingService, resultCache domain.ResultCache, cacheTTL time.Duration) *Handler {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Handler{
		pairingService: pairingService,
		resultCache:    resultCache,
		cacheTTL:       cacheTTL,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "gptlisting-pairing",
		"version": "1.0.0",
	})
}

// runPairingRequest is the body of POST /api/v1/pairing/run. Thresholds
// override the configured values for this request only; omitted means
// the service defaults apply.
type runPairingRequest struct {
	Images     []domain.FeatureRow       `json:"images" binding:"required"`
	Thresholds *domain.PairingThresholds `json:"thresholds,omitempty"`
}

// runPairingResponse carries the pairing output plus run metrics.
// Metrics are omitted on cache hits: they describe a run, and a cache
// hit is not a run.
type runPairingResponse struct {
	Products            []domain.ProductGroup  `json:"products"`
	RemainingSingletons []domain.FeatureRow    `json:"remainingSingletons"`
	Metrics             *domain.PairingMetrics `json:"metrics,omitempty"`
	Source              string                 `json:"source"`
}

// RunPairing handles pairing requests: one full batch in, grouped
// products and leftover singletons out
func (h *Handler) RunPairing(c *gin.Context) {
	if h.pairingService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "Pairing service not configured",
		})
		return
	}

	var req runPairingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	service := h.pairingService
	if req.Thresholds != nil {
		service = service.WithThresholds(*req.Thresholds)
	}

	key := batchDigest(req.Images, service.Thresholds())
	if h.resultCache != nil {
		if cached, err := h.resultCache.Get(c.Request.Context(), key); err == nil && cached != nil {
			c.JSON(http.StatusOK, runPairingResponse{
				Products:            cached.Products,
				RemainingSingletons: cached.RemainingSingletons,
				Source:              "cache",
			})
			return
		}
	}

	result, metrics, err := service.Pair(c.Request.Context(), req.Images)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidBatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrPartitionViolation):
			// Internal defect; never expose partial output
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal pairing defect"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "pairing failed"})
		}
		return
	}

	if h.resultCache != nil {
		if err := h.resultCache.Set(c.Request.Context(), key, result, h.cacheTTL); err != nil {
			log.Printf("[HTTP] result cache write failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, runPairingResponse{
		Products:            result.Products,
		RemainingSingletons: result.RemainingSingletons,
		Metrics:             metrics,
		Source:              "engine",
	})
}

// batchDigest derives the cache key from the batch content and the
// thresholds in effect. The pipeline is deterministic, so equal digests
// imply equal results.
func batchDigest(images []domain.FeatureRow, thresholds domain.PairingThresholds) string {
	payload, err := json.Marshal(struct {
		Images     []domain.FeatureRow      `json:"images"`
		Thresholds domain.PairingThresholds `json:"thresholds"`
	}{images, thresholds})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return "pairing:" + hex.EncodeToString(sum[:])
}
