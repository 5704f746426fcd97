package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gptlisting/backend/internal/domain"
)

const reasonNoCandidates = "no candidates"

// PairingServiceConfig holds configuration for the pairing service
type PairingServiceConfig struct {
	Thresholds         domain.PairingThresholds
	AssistTimeout      time.Duration
	EnableDebugLogging bool
}

// PairingService runs one batch through the full pipeline: candidate
// generation, auto-pair decision, model-assisted disambiguation for the
// ambiguous subset, singleton resolution, and metrics. One synchronous
// computation per call; no state survives between invocations.
type PairingService struct {
	disambiguator domain.Disambiguator
	audit         domain.AuditSink
	generator     *CandidateGenerator
	resolver      *SingletonResolver
	metrics       *MetricsBuilder

	thresholds         domain.PairingThresholds
	assistTimeout      time.Duration
	enableDebugLogging bool
}

// NewPairingService creates a pairing service with dependencies
func NewPairingService(
	disambiguator domain.Disambiguator,
	audit domain.AuditSink,
	config PairingServiceConfig,
) *PairingService {
	thresholds := config.Thresholds
	if thresholds == (domain.PairingThresholds{}) {
		thresholds = domain.DefaultThresholds()
	}

	assistTimeout := config.AssistTimeout
	if assistTimeout <= 0 {
		assistTimeout = 20 * time.Second
	}

	return &PairingService{
		disambiguator:      disambiguator,
		audit:              audit,
		generator:          NewCandidateGenerator(thresholds, config.EnableDebugLogging),
		resolver:           NewSingletonResolver(audit, config.EnableDebugLogging),
		metrics:            NewMetricsBuilder(),
		thresholds:         thresholds,
		assistTimeout:      assistTimeout,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Thresholds returns the thresholds this service runs with
func (s *PairingService) Thresholds() domain.PairingThresholds {
	return s.thresholds
}

// WithThresholds returns a service sharing this one's collaborators but
// running under different thresholds. Used for per-request overrides.
func (s *PairingService) WithThresholds(thresholds domain.PairingThresholds) *PairingService {
	return NewPairingService(s.disambiguator, s.audit, PairingServiceConfig{
		Thresholds:         thresholds,
		AssistTimeout:      s.assistTimeout,
		EnableDebugLogging: s.enableDebugLogging,
	})
}

// Pair assigns every image of a batch to a product group or the
// remaining-singleton set. The output URLs always partition the input
// exactly; a violation is an internal defect, not a recoverable state.
func (s *PairingService) Pair(ctx context.Context, rows []domain.FeatureRow) (*domain.PairResult, *domain.PairingMetrics, error) {
	started := time.Now()

	rows, err := normalizeBatch(rows)
	if err != nil {
		return nil, nil, err
	}

	ws := newWorkingSet(rows)
	perFront := s.generator.Generate(rows)

	stats := newRunStats()
	for _, fc := range perFront {
		stats.candidates += len(fc.Candidates)
	}

	seq := 0
	nextID := func() string {
		seq++
		return fmt.Sprintf("p-%03d", seq)
	}

	var groups []domain.ProductGroup
	var ambiguous []FrontCandidates

	// Stage 1: threshold-only auto-pairs
	for _, fc := range perFront {
		cands := freeCandidates(ws, fc.Candidates)
		if len(cands) == 0 {
			s.decline(stats, "auto-pair", fc.Front.URL, reasonNoCandidates)
			continue
		}

		best := cands[0]
		gap := best.Score
		if len(cands) > 1 {
			gap = best.Score - cands[1].Score
		}

		var trigger string
		switch {
		case best.Score >= s.thresholds.AutoPairScore && gap >= s.thresholds.AutoPairGap:
			trigger = domain.TriggerAutoPair
		case fc.Front.HairCategory && best.Score >= s.thresholds.AutoPairHairScore && gap >= s.thresholds.AutoPairHairGap:
			trigger = domain.TriggerAutoPairHair
		}

		if trigger == "" {
			ambiguous = append(ambiguous, fc)
			continue
		}

		groups = append(groups, s.acceptPair(ws, "auto-pair", fc.Front, best, trigger, nextID))
		stats.autoPairs++
	}

	// Stage 2: model assist for the ambiguous subset
	for _, fc := range ambiguous {
		cands := freeCandidates(ws, fc.Candidates)
		if len(cands) == 0 {
			// Earlier pairs consumed every surviving candidate
			s.decline(stats, "model-assist", fc.Front.URL, reasonNoCandidates)
			continue
		}

		decision := s.resolveWithModel(ctx, fc.Front, cands, ws)
		if decision.Declined {
			s.decline(stats, "model-assist", fc.Front.URL, decision.Reason)
			continue
		}

		var chosen domain.Candidate
		for _, c := range cands {
			if c.BackURL == decision.BackURL {
				chosen = c
				break
			}
		}
		groups = append(groups, s.acceptPair(ws, "model-assist", fc.Front, chosen, domain.TriggerModelAssist, nextID))
		stats.modelPairs++
	}

	// Stage 3: recover everything still unclaimed
	groups, singletons := s.resolver.Resolve(ws.remaining(), groups, nextID)
	for _, row := range singletons {
		if _, ok := stats.reasonByURL[row.URL]; !ok {
			stats.addReason(row.URL, "unclaimed by any group")
		}
	}

	result := &domain.PairResult{
		Products:            groups,
		RemainingSingletons: singletons,
	}
	if result.Products == nil {
		result.Products = []domain.ProductGroup{}
	}
	if result.RemainingSingletons == nil {
		result.RemainingSingletons = []domain.FeatureRow{}
	}

	if err := verifyPartition(rows, result); err != nil {
		return nil, nil, err
	}

	metrics := s.metrics.Build(rows, result, stats, s.thresholds, started)

	if s.enableDebugLogging {
		log.Printf("[PAIR] images=%d auto=%d model=%d groups=%d singletons=%d",
			len(rows), stats.autoPairs, stats.modelPairs, len(result.Products), len(singletons))
	}

	return result, metrics, nil
}

// resolveWithModel calls the disambiguation collaborator under a bounded
// timeout. Every failure mode (transport error, timeout, answer outside
// the offered candidate set) is mapped to a decline so the pipeline
// always has a defined next step.
func (s *PairingService) resolveWithModel(
	ctx context.Context,
	front domain.FeatureRow,
	cands []domain.Candidate,
	ws *workingSet,
) domain.AssistDecision {
	candidateRows := make([]domain.FeatureRow, 0, len(cands))
	for _, c := range cands {
		if row, ok := ws.row(c.BackURL); ok {
			candidateRows = append(candidateRows, row)
		}
	}

	assistCtx, cancel := context.WithTimeout(ctx, s.assistTimeout)
	defer cancel()

	decision, err := s.disambiguator.Resolve(assistCtx, front, candidateRows)
	if err != nil {
		return domain.AssistDecision{
			Declined: true,
			Reason:   fmt.Sprintf("declined despite candidates (assist error: %v)", err),
		}
	}

	if decision == nil || decision.Declined || decision.BackURL == "" {
		reason := "declined despite candidates"
		if decision != nil && decision.Reason != "" {
			reason = decision.Reason
		}
		return domain.AssistDecision{Declined: true, Reason: reason}
	}

	if !offeredCandidate(cands, decision.BackURL) || !ws.isFree(decision.BackURL) {
		return domain.AssistDecision{
			Declined: true,
			Reason:   "declined despite candidates (assist chose image outside candidate set)",
		}
	}

	return *decision
}

// acceptPair claims both URLs and builds the resulting group
func (s *PairingService) acceptPair(
	ws *workingSet,
	stage string,
	front domain.FeatureRow,
	cand domain.Candidate,
	trigger string,
	nextID func() string,
) domain.ProductGroup {
	ws.claim(front.URL)
	ws.claim(cand.BackURL)

	confidence := cand.Score / s.thresholds.MaxScore()
	if confidence > 1 {
		confidence = 1
	}

	if s.audit != nil {
		s.audit.Record(domain.AuditEvent{Stage: stage, Decision: "paired", URL: front.URL})
	}

	return domain.ProductGroup{
		ProductID: nextID(),
		FrontURL:  front.URL,
		BackURL:   cand.BackURL,
		Evidence: domain.Evidence{
			Brand:      front.BrandNorm,
			Product:    strings.Join(front.ProductTokens, " "),
			Variant:    strings.Join(front.VariantTokens, " "),
			MatchScore: cand.Score,
			Confidence: confidence,
			Triggers:   []string{trigger},
		},
	}
}

func (s *PairingService) decline(stats *runStats, stage, url, reason string) {
	stats.addReason(url, reason)
	if s.audit != nil {
		s.audit.Record(domain.AuditEvent{Stage: stage, Decision: "declined", URL: url, Reason: reason})
	}
	if s.enableDebugLogging {
		log.Printf("[PAIR] %s declined %s: %s", stage, url, reason)
	}
}

// freeCandidates filters a candidate list down to backs not yet claimed
// by an earlier decision. Order is preserved.
func freeCandidates(ws *workingSet, cands []domain.Candidate) []domain.Candidate {
	var out []domain.Candidate
	for _, c := range cands {
		if ws.isFree(c.BackURL) {
			out = append(out, c)
		}
	}
	return out
}

func offeredCandidate(cands []domain.Candidate, backURL string) bool {
	for _, c := range cands {
		if c.BackURL == backURL {
			return true
		}
	}
	return false
}

// normalizeBatch validates the batch and fills OriginalRole where the
// feature extractor omitted it
func normalizeBatch(rows []domain.FeatureRow) ([]domain.FeatureRow, error) {
	seen := make(map[string]bool, len(rows))
	out := make([]domain.FeatureRow, 0, len(rows))

	for _, row := range rows {
		if row.URL == "" {
			return nil, fmt.Errorf("%w: row with empty url", domain.ErrInvalidBatch)
		}
		if seen[row.URL] {
			return nil, fmt.Errorf("%w: duplicate url %q", domain.ErrInvalidBatch, row.URL)
		}
		seen[row.URL] = true

		if _, err := domain.ParseRole(string(row.Role)); err != nil {
			return nil, err
		}
		if row.OriginalRole == "" {
			row.OriginalRole = row.Role
		} else if _, err := domain.ParseRole(string(row.OriginalRole)); err != nil {
			return nil, err
		}

		out = append(out, row)
	}

	return out, nil
}

// verifyPartition asserts the output invariant: every input URL appears
// exactly once across groups and singletons
func verifyPartition(rows []domain.FeatureRow, result *domain.PairResult) error {
	counts := make(map[string]int, len(rows))

	for _, g := range result.Products {
		counts[g.FrontURL]++
		if g.BackURL != "" {
			counts[g.BackURL]++
		}
		for _, extra := range g.Extras {
			counts[extra]++
		}
	}
	for _, row := range result.RemainingSingletons {
		counts[row.URL]++
	}

	for _, row := range rows {
		switch counts[row.URL] {
		case 1:
			delete(counts, row.URL)
		case 0:
			return fmt.Errorf("%w: %q dropped from output", domain.ErrPartitionViolation, row.URL)
		default:
			return fmt.Errorf("%w: %q appears %d times", domain.ErrPartitionViolation, row.URL, counts[row.URL])
		}
	}
	for url := range counts {
		return fmt.Errorf("%w: %q not part of the input batch", domain.ErrPartitionViolation, url)
	}

	return nil
}
