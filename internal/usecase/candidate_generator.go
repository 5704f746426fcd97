package usecase

import (
	"log"
	"sort"
	"strings"

	"github.com/gptlisting/backend/internal/domain"
)

// capturePrefixLen is how many leading characters of a filename are
// treated as the capture-session timestamp (e.g. "20240312_" in
// "20240312_143501.jpg"). Two images sharing this prefix were almost
// certainly photographed in the same session.
const capturePrefixLen = 9

// FrontCandidates holds the surviving candidates for one front image,
// ordered by descending score.
type FrontCandidates struct {
	Front      domain.FeatureRow
	Candidates []domain.Candidate
}

// CandidateGenerator scores every back/other image in a batch against
// every front image. Pure: no side effects, output depends only on the
// input rows and thresholds.
type CandidateGenerator struct {
	thresholds         domain.PairingThresholds
	enableDebugLogging bool
}

// NewCandidateGenerator creates a candidate generator with the given thresholds
func NewCandidateGenerator(thresholds domain.PairingThresholds, enableDebugLogging bool) *CandidateGenerator {
	return &CandidateGenerator{
		thresholds:         thresholds,
		enableDebugLogging: enableDebugLogging,
	}
}

// Generate returns one FrontCandidates entry per front row, fronts in
// stable URL order so repeated runs on identical input produce identical
// output. Candidates scoring below MinPreScore are pruned here and never
// reach any later stage.
func (g *CandidateGenerator) Generate(rows []domain.FeatureRow) []FrontCandidates {
	var fronts []domain.FeatureRow
	var others []domain.FeatureRow

	for _, row := range rows {
		switch row.Role {
		case domain.RoleFront:
			fronts = append(fronts, row)
		case domain.RoleBack, domain.RoleOther:
			others = append(others, row)
		}
	}

	sort.SliceStable(fronts, func(i, j int) bool { return fronts[i].URL < fronts[j].URL })

	result := make([]FrontCandidates, 0, len(fronts))
	for _, front := range fronts {
		var candidates []domain.Candidate
		for _, other := range others {
			score := g.scoreCandidate(front, other)
			if score < g.thresholds.MinPreScore {
				continue
			}
			candidates = append(candidates, domain.Candidate{
				FrontURL: front.URL,
				BackURL:  other.URL,
				Score:    score,
			})
		}

		// Descending score, URL as tie-break so ordering is total
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Score != candidates[j].Score {
				return candidates[i].Score > candidates[j].Score
			}
			return candidates[i].BackURL < candidates[j].BackURL
		})

		if g.enableDebugLogging {
			log.Printf("[CANDIDATES] front=%s survivors=%d", front.URL, len(candidates))
		}

		result = append(result, FrontCandidates{Front: front, Candidates: candidates})
	}

	return result
}

// scoreCandidate combines the three pairing signals: brand equality
// (dominant), product/variant token overlap, and capture-session
// filename proximity.
func (g *CandidateGenerator) scoreCandidate(front, other domain.FeatureRow) float64 {
	t := g.thresholds

	var score float64
	if brandsEqual(front.BrandNorm, other.BrandNorm) {
		score += t.BrandMatchWeight
	}
	score += t.ProductTokenWeight * tokenOverlap(front.ProductTokens, other.ProductTokens)
	score += t.VariantTokenWeight * tokenOverlap(front.VariantTokens, other.VariantTokens)
	if sameCaptureSession(front.URL, other.URL) {
		score += t.ProximityBonus
	}

	return score
}

// brandsEqual reports whether two normalized brands match. Empty brands
// never match anything, including each other.
func brandsEqual(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}

// tokenOverlap computes the Jaccard overlap of two token sequences.
// Missing tokens are a data-quality condition, not an error: either side
// empty simply scores zero.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]bool, len(a))
	for _, tok := range a {
		set[strings.ToLower(tok)] = true
	}

	union := make(map[string]bool, len(a)+len(b))
	for tok := range set {
		union[tok] = true
	}

	matched := 0
	seen := make(map[string]bool)
	for _, tok := range b {
		lower := strings.ToLower(tok)
		union[lower] = true
		if set[lower] && !seen[lower] {
			matched++
			seen[lower] = true
		}
	}

	return float64(matched) / float64(len(union))
}

// capturePrefix extracts the capture-session prefix from an image URL:
// the first capturePrefixLen characters of the filename. Returns "" when
// the filename is too short to carry a timestamp.
func capturePrefix(url string) string {
	base := url
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if len(base) < capturePrefixLen {
		return ""
	}
	return base[:capturePrefixLen]
}

// sameCaptureSession reports whether two URLs share a capture-session prefix
func sameCaptureSession(a, b string) bool {
	prefix := capturePrefix(a)
	return prefix != "" && prefix == capturePrefix(b)
}
