package usecase

import (
	"log"
	"strings"

	"github.com/gptlisting/backend/internal/domain"
)

// Extra-attachment scoring, fixed by the resolution rules rather than
// tunable: brand agreement counts double a filename-prefix hit, and a
// leftover needs at least a brand match to attach anywhere.
const (
	extraBrandWeight     = 2.0
	extraProximityWeight = 1.0
	extraAttachMinScore  = 2.0

	soloProductConfidence = 0.5
)

// SingletonResolver recovers every image left unmatched after the
// auto-pair and model-assist stages. Three ordered rules per leftover:
// promote uniquely-branded fronts to solo products, attach
// brand-matching orphans as extras, or leave the row as a true
// singleton. Rows are processed sequentially in input order; a solo
// product created early in the pass counts as existing for later rows.
type SingletonResolver struct {
	audit              domain.AuditSink
	enableDebugLogging bool
}

// NewSingletonResolver creates a resolver that reports decisions to the given sink
func NewSingletonResolver(audit domain.AuditSink, enableDebugLogging bool) *SingletonResolver {
	return &SingletonResolver{
		audit:              audit,
		enableDebugLogging: enableDebugLogging,
	}
}

// Resolve applies the resolution rules to each leftover row. It returns
// the groups slice (solo products appended, extras attached in place)
// and the rows that remain true singletons. nextID mints product IDs for
// solo promotions, continuing the batch sequence.
func (r *SingletonResolver) Resolve(
	leftovers []domain.FeatureRow,
	groups []domain.ProductGroup,
	nextID func() string,
) ([]domain.ProductGroup, []domain.FeatureRow) {
	var singletons []domain.FeatureRow

	for _, row := range leftovers {
		if r.promoteSolo(row, &groups, nextID) {
			continue
		}
		if r.attachExtra(row, groups) {
			continue
		}

		r.record("singleton", "kept", row.URL, "no rule applied")
		singletons = append(singletons, row)
	}

	return groups, singletons
}

// promoteSolo applies rule 1: a front whose brand is unique to the batch
// becomes its own listing. Empty brands never count as unique.
func (r *SingletonResolver) promoteSolo(row domain.FeatureRow, groups *[]domain.ProductGroup, nextID func() string) bool {
	if row.OriginalRole != domain.RoleFront || row.BrandNorm == "" {
		return false
	}

	brand := strings.ToLower(row.BrandNorm)
	for _, g := range *groups {
		if strings.ToLower(g.Evidence.Brand) == brand {
			return false
		}
	}

	group := domain.ProductGroup{
		ProductID: nextID(),
		FrontURL:  row.URL,
		BackURL:   "",
		Evidence: domain.Evidence{
			Brand:      row.BrandNorm,
			Product:    strings.Join(row.ProductTokens, " "),
			Variant:    strings.Join(row.VariantTokens, " "),
			MatchScore: 0,
			Confidence: soloProductConfidence,
			Triggers:   []string{domain.TriggerSoloProduct},
		},
	}
	*groups = append(*groups, group)

	if r.enableDebugLogging {
		log.Printf("[RESOLVE] solo promotion: %s (brand %q)", row.URL, row.BrandNorm)
	}
	r.record("singleton", "solo-promoted", row.URL, "")

	return true
}

// attachExtra applies rule 2: score the row against every group as
// 2×brandMatch + 1×filenameProximity and attach to the best group when
// the score reaches the attach bar. First group wins ties, which keeps
// the pass deterministic.
func (r *SingletonResolver) attachExtra(row domain.FeatureRow, groups []domain.ProductGroup) bool {
	bestIdx := -1
	bestScore := 0.0

	for i, g := range groups {
		var score float64
		if brandsEqual(row.BrandNorm, g.Evidence.Brand) {
			score += extraBrandWeight
		}
		if sameCaptureSession(row.URL, g.FrontURL) {
			score += extraProximityWeight
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < extraAttachMinScore {
		return false
	}

	groups[bestIdx].Extras = append(groups[bestIdx].Extras, row.URL)
	if !hasTrigger(groups[bestIdx].Evidence.Triggers, domain.TriggerExtraAttached) {
		groups[bestIdx].Evidence.Triggers = append(groups[bestIdx].Evidence.Triggers, domain.TriggerExtraAttached)
	}

	if r.enableDebugLogging {
		log.Printf("[RESOLVE] extra attached: %s -> %s (score %.1f)", row.URL, groups[bestIdx].ProductID, bestScore)
	}
	r.record("singleton", "extra-attached", row.URL, "")

	return true
}

func (r *SingletonResolver) record(stage, decision, url, reason string) {
	if r.audit == nil {
		return
	}
	r.audit.Record(domain.AuditEvent{Stage: stage, Decision: decision, URL: url, Reason: reason})
}

func hasTrigger(triggers []string, name string) bool {
	for _, t := range triggers {
		if t == name {
			return true
		}
	}
	return false
}
