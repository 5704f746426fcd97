package domain

import "time"

// BrandPairStats summarizes pairing success for a single brand
type BrandPairStats struct {
	Fronts   int     `json:"fronts"`
	Paired   int     `json:"paired"`
	PairRate float64 `json:"pairRate"`
}

// PairingMetrics is the write-once summary of one engine run, built from
// the final result after all decisions are made. It exists for threshold
// tuning and operational visibility and never influences pairing output.
type PairingMetrics struct {
	TotalImages    int `json:"totalImages"`
	Fronts         int `json:"fronts"`
	Backs          int `json:"backs"`
	Candidates     int `json:"candidates"`
	AutoPairs      int `json:"autoPairs"`
	ModelPairs     int `json:"modelPairs"`
	SoloProducts   int `json:"soloProducts"`
	ExtrasAttached int `json:"extrasAttached"`
	Singletons     int `json:"singletons"`

	// PerBrand is keyed by lower-cased normalized brand; rows with no
	// brand aggregate under "(none)".
	PerBrand map[string]BrandPairStats `json:"perBrand"`

	// Reasons is a histogram of normalized decline/singleton reasons
	Reasons map[string]int `json:"reasons"`

	Thresholds  PairingThresholds `json:"thresholds"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Duration    time.Duration     `json:"duration"`
}
