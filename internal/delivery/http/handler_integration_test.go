package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gptlisting/backend/config"
	"github.com/gptlisting/backend/internal/domain"
	"github.com/gptlisting/backend/internal/infrastructure/cache"
	"github.com/gptlisting/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	exitCode := m.Run()

	os.Exit(exitCode)
}

// decliningDisambiguator answers every ambiguous front with a decline
type decliningDisambiguator struct {
	calls int
}

func (d *decliningDisambiguator) Resolve(ctx context.Context, front domain.FeatureRow, candidates []domain.FeatureRow) (*domain.AssistDecision, error) {
	d.calls++
	return &domain.AssistDecision{Declined: true, Reason: "declined despite candidates"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000", "https://app.example.com*"},
		},
		Assist: config.AssistConfig{
			BaseURL: "https://assist.example.com",
			Timeout: time.Second,
		},
		Cache: config.CacheConfig{TTL: time.Minute},
	}
}

// setupTestRouter creates a test router backed by a real pairing service
// with a declining model stub and an in-memory result cache
func setupTestRouter(t *testing.T) (*gin.Engine, *decliningDisambiguator) {
	t.Helper()

	stub := &decliningDisambiguator{}
	svc := usecase.NewPairingService(stub, nil, usecase.PairingServiceConfig{})
	handler := NewHandler(svc, cache.NewMemoryCache(), time.Minute)

	router := SetupRouter(testConfig(), handler)
	if router == nil {
		t.Fatal("SetupRouter returned nil *gin.Engine")
	}

	return router, stub
}

func performRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := performRequest(router, "GET", "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q, want healthy", body["status"])
	}
}

func TestRunPairing_InvalidBody(t *testing.T) {
	router, _ := setupTestRouter(t)

	t.Run("not json", func(t *testing.T) {
		w := performRequest(router, "POST", "/api/v1/pairing/run", "not json at all")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("missing images field", func(t *testing.T) {
		w := performRequest(router, "POST", "/api/v1/pairing/run", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		body := `{"images":[{"url":"https://cdn.example.com/a.jpg","role":"sideways"}]}`
		w := performRequest(router, "POST", "/api/v1/pairing/run", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("duplicate url", func(t *testing.T) {
		body := `{"images":[
			{"url":"https://cdn.example.com/a.jpg","role":"front"},
			{"url":"https://cdn.example.com/a.jpg","role":"back"}
		]}`
		w := performRequest(router, "POST", "/api/v1/pairing/run", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestRunPairing_Success(t *testing.T) {
	router, stub := setupTestRouter(t)

	body := `{"images":[
		{"url":"https://cdn.example.com/20240101_001_front.jpg","role":"front","brandNorm":"acme","productTokens":["citrus","soap"],"variantTokens":["lemon"]},
		{"url":"https://cdn.example.com/20240101_002_back.jpg","role":"back","brandNorm":"acme","productTokens":["citrus","soap"],"variantTokens":["lemon"]}
	]}`

	w := performRequest(router, "POST", "/api/v1/pairing/run", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Products            []domain.ProductGroup  `json:"products"`
		RemainingSingletons []domain.FeatureRow    `json:"remainingSingletons"`
		Metrics             *domain.PairingMetrics `json:"metrics"`
		Source              string                 `json:"source"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(resp.Products) != 1 {
		t.Fatalf("products = %d, want 1", len(resp.Products))
	}
	if resp.Products[0].BackURL != "https://cdn.example.com/20240101_002_back.jpg" {
		t.Errorf("backUrl = %s", resp.Products[0].BackURL)
	}
	if len(resp.RemainingSingletons) != 0 {
		t.Errorf("singletons = %d, want 0", len(resp.RemainingSingletons))
	}
	if resp.Source != "engine" {
		t.Errorf("source = %q, want engine", resp.Source)
	}
	if resp.Metrics == nil || resp.Metrics.AutoPairs != 1 {
		t.Errorf("metrics = %+v, want autoPairs 1", resp.Metrics)
	}
	if stub.calls != 0 {
		t.Errorf("model stub called %d times for a clear pair", stub.calls)
	}
}

func TestRunPairing_ThresholdOverrides(t *testing.T) {
	router, stub := setupTestRouter(t)

	// Brand-only agreement scores 3.0: below the default auto-pair bar,
	// above the loosened one. Overrides replace the whole threshold set,
	// so the request carries every field.
	images := `[
		{"url":"https://cdn.example.com/front/a.jpg","role":"front","brandNorm":"acme"},
		{"url":"https://cdn.example.com/back/b.jpg","role":"back","brandNorm":"acme"}
	]`
	overrides := `{"minPreScore":1.0,"autoPairScore":3.0,"autoPairGap":0.5,
		"autoPairHairScore":3.0,"autoPairHairGap":0.4,
		"brandMatchWeight":3.0,"productTokenWeight":2.0,"variantTokenWeight":1.0,"proximityBonus":0.5}`

	w := performRequest(router, "POST", "/api/v1/pairing/run", `{"images":`+images+`,"thresholds":`+overrides+`}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Metrics *domain.PairingMetrics `json:"metrics"`
		Source  string                 `json:"source"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Metrics == nil || resp.Metrics.AutoPairs != 1 {
		t.Fatalf("metrics = %+v, want autoPairs 1 under the loosened bar", resp.Metrics)
	}
	if stub.calls != 0 {
		t.Errorf("model stub called %d times, want 0", stub.calls)
	}

	// Same batch without overrides runs under the defaults: the pair is
	// ambiguous again, and the differing thresholds keep it off the
	// cached override result.
	w = performRequest(router, "POST", "/api/v1/pairing/run", `{"images":`+images+`}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Source != "engine" {
		t.Errorf("source = %q, want engine for differing thresholds", resp.Source)
	}
	if resp.Metrics == nil || resp.Metrics.AutoPairs != 0 {
		t.Errorf("metrics = %+v, want no auto-pair under defaults", resp.Metrics)
	}
	if stub.calls != 1 {
		t.Errorf("model stub called %d times, want 1", stub.calls)
	}
}

func TestRunPairing_CacheHit(t *testing.T) {
	router, _ := setupTestRouter(t)

	body := `{"images":[
		{"url":"https://cdn.example.com/20240101_001_front.jpg","role":"front","brandNorm":"acme","productTokens":["citrus"]},
		{"url":"https://cdn.example.com/20240101_002_back.jpg","role":"back","brandNorm":"acme","productTokens":["citrus"]}
	]}`

	first := performRequest(router, "POST", "/api/v1/pairing/run", body)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}

	second := performRequest(router, "POST", "/api/v1/pairing/run", body)
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d, want 200", second.Code)
	}

	var firstResp, secondResp struct {
		Products []domain.ProductGroup `json:"products"`
		Metrics  *domain.PairingMetrics
		Source   string `json:"source"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &firstResp); err != nil {
		t.Fatalf("invalid first JSON: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &secondResp); err != nil {
		t.Fatalf("invalid second JSON: %v", err)
	}

	if secondResp.Source != "cache" {
		t.Errorf("second source = %q, want cache", secondResp.Source)
	}
	if secondResp.Metrics != nil {
		t.Errorf("cache hit carries metrics, want omitted")
	}
	if len(firstResp.Products) != len(secondResp.Products) {
		t.Errorf("products differ across cache hit: %d vs %d", len(firstResp.Products), len(secondResp.Products))
	}
}

func TestRunPairing_ServiceNotConfigured(t *testing.T) {
	handler := NewHandler(nil, nil, 0)
	router := SetupRouter(testConfig(), handler)

	w := performRequest(router, "POST", "/api/v1/pairing/run", `{"images":[]}`)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", w.Code)
	}
}
