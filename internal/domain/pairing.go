package domain

// Candidate is a scored relationship between one front image and one
// potential back/other image from the same batch. Candidates exist only
// during generation and decision; they are never persisted.
type Candidate struct {
	FrontURL string  `json:"frontUrl"`
	BackURL  string  `json:"backUrl"`
	Score    float64 `json:"score"`
}

// Evidence records why a ProductGroup was formed
type Evidence struct {
	Brand      string   `json:"brand,omitempty"`
	Product    string   `json:"product,omitempty"`
	Variant    string   `json:"variant,omitempty"`
	MatchScore float64  `json:"matchScore"`
	Confidence float64  `json:"confidence"` // 0-1
	Triggers   []string `json:"triggers"`
}

// ProductGroup is the unit of output: one front, at most one back, and
// any number of extra images attached during singleton resolution.
// BackURL is empty for solo products.
type ProductGroup struct {
	ProductID string   `json:"productId"`
	FrontURL  string   `json:"frontUrl"`
	BackURL   string   `json:"backUrl"`
	Extras    []string `json:"extras,omitempty"`
	Evidence  Evidence `json:"evidence"`
}

// PairResult is the output handed to the downstream draft-creation step.
// The URLs across Products (front, back, extras) and RemainingSingletons
// partition the input set exactly: no URL duplicated, none dropped.
type PairResult struct {
	Products            []ProductGroup `json:"products"`
	RemainingSingletons []FeatureRow   `json:"remainingSingletons"`
}

// PairingThresholds is the immutable per-run configuration of the engine.
// Scoring weights are exposed here rather than buried as constants so
// they can be tuned from config without a rebuild.
type PairingThresholds struct {
	// MinPreScore prunes candidates before any decision stage; a
	// candidate below it is never auto-paired nor sent to the model.
	MinPreScore float64 `json:"minPreScore"`

	// AutoPairScore and AutoPairGap gate auto-acceptance: the top
	// candidate must both clear the score bar and lead the runner-up
	// by at least the gap.
	AutoPairScore float64 `json:"autoPairScore"`
	AutoPairGap   float64 `json:"autoPairGap"`

	// Looser bar for fronts flagged HairCategory, where packaging
	// variance depresses scores.
	AutoPairHairScore float64 `json:"autoPairHairScore"`
	AutoPairHairGap   float64 `json:"autoPairHairGap"`

	// Candidate scoring weights
	BrandMatchWeight   float64 `json:"brandMatchWeight"`
	ProductTokenWeight float64 `json:"productTokenWeight"`
	VariantTokenWeight float64 `json:"variantTokenWeight"`
	ProximityBonus     float64 `json:"proximityBonus"`
}

// DefaultThresholds returns the tuned production defaults
func DefaultThresholds() PairingThresholds {
	return PairingThresholds{
		MinPreScore:        1.0,
		AutoPairScore:      3.5,
		AutoPairGap:        0.75,
		AutoPairHairScore:  3.0,
		AutoPairHairGap:    0.4,
		BrandMatchWeight:   3.0,
		ProductTokenWeight: 2.0,
		VariantTokenWeight: 1.0,
		ProximityBonus:     0.5,
	}
}

// MaxScore is the highest score a candidate can reach under these
// weights, used to normalize evidence confidence into [0,1].
func (t PairingThresholds) MaxScore() float64 {
	return t.BrandMatchWeight + t.ProductTokenWeight + t.VariantTokenWeight + t.ProximityBonus
}

// AssistDecision is the model-assist collaborator's answer for one
// ambiguous front: either a selected back URL or an explicit decline.
type AssistDecision struct {
	BackURL  string `json:"backUrl,omitempty"`
	Declined bool   `json:"declined,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Pairing rule triggers recorded in Evidence.Triggers
const (
	TriggerAutoPair      = "auto-pair-score-gap"
	TriggerAutoPairHair  = "auto-pair-hair-threshold"
	TriggerModelAssist   = "model-assist"
	TriggerSoloProduct   = "solo-product-unique-brand"
	TriggerExtraAttached = "extra-brand-proximity"
)
