package usecase

import (
	"strings"
	"time"

	"github.com/gptlisting/backend/internal/domain"
)

// brandKeyNone aggregates rows with no normalized brand
const brandKeyNone = "(none)"

// runStats collects intermediate counters while the pipeline runs.
// It feeds the metrics builder and nothing else; no decision reads it.
type runStats struct {
	candidates  int
	autoPairs   int
	modelPairs  int
	reasons     []string
	reasonByURL map[string]string
}

func newRunStats() *runStats {
	return &runStats{reasonByURL: make(map[string]string)}
}

func (r *runStats) addReason(url, reason string) {
	r.reasons = append(r.reasons, reason)
	r.reasonByURL[url] = reason
}

// MetricsBuilder aggregates a finished run into PairingMetrics. Pure
// aggregation: changing anything here can never affect pairing output.
type MetricsBuilder struct{}

// NewMetricsBuilder creates a metrics builder
func NewMetricsBuilder() *MetricsBuilder {
	return &MetricsBuilder{}
}

// Build produces the write-once summary for one run
func (b *MetricsBuilder) Build(
	rows []domain.FeatureRow,
	result *domain.PairResult,
	stats *runStats,
	thresholds domain.PairingThresholds,
	startedAt time.Time,
) *domain.PairingMetrics {
	m := &domain.PairingMetrics{
		TotalImages: len(rows),
		Candidates:  stats.candidates,
		AutoPairs:   stats.autoPairs,
		ModelPairs:  stats.modelPairs,
		Singletons:  len(result.RemainingSingletons),
		PerBrand:    make(map[string]domain.BrandPairStats),
		Reasons:     make(map[string]int),
		Thresholds:  thresholds,
		GeneratedAt: time.Now(),
		Duration:    time.Since(startedAt),
	}

	for _, row := range rows {
		switch row.Role {
		case domain.RoleFront:
			m.Fronts++
		case domain.RoleBack:
			m.Backs++
		}
	}

	pairedFronts := make(map[string]bool)
	for _, g := range result.Products {
		if g.BackURL != "" {
			pairedFronts[g.FrontURL] = true
		}
		m.ExtrasAttached += len(g.Extras)
		if hasTrigger(g.Evidence.Triggers, domain.TriggerSoloProduct) {
			m.SoloProducts++
		}
	}

	for _, row := range rows {
		if row.Role != domain.RoleFront {
			continue
		}
		key := brandKey(row.BrandNorm)
		bs := m.PerBrand[key]
		bs.Fronts++
		if pairedFronts[row.URL] {
			bs.Paired++
		}
		m.PerBrand[key] = bs
	}
	for key, bs := range m.PerBrand {
		if bs.Fronts > 0 {
			bs.PairRate = float64(bs.Paired) / float64(bs.Fronts)
		}
		m.PerBrand[key] = bs
	}

	for _, reason := range stats.reasons {
		m.Reasons[normalizeReason(reason)]++
	}

	return m
}

func brandKey(brandNorm string) string {
	if brandNorm == "" {
		return brandKeyNone
	}
	return strings.ToLower(brandNorm)
}

// normalizeReason buckets free-form decline reasons for the histogram.
// Model declines all start with the same phrase regardless of the text
// that follows, so they aggregate into a single bucket.
func normalizeReason(reason string) string {
	switch {
	case strings.HasPrefix(reason, "declined despite candidates"):
		return "declined despite candidates"
	case reason == reasonNoCandidates:
		return reasonNoCandidates
	default:
		return "other"
	}
}
