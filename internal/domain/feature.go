package domain

import "fmt"

// Role classifies an image within a product photo batch
type Role string

const (
	// RoleFront is the primary product-facing photo, the anchor of a group
	RoleFront Role = "front"

	// RoleBack is a secondary photo (label/ingredient side) of the same product
	RoleBack Role = "back"

	// RoleOther is any additional photo that is neither front nor back
	RoleOther Role = "other"
)

// ParseRole converts a raw string into a Role, rejecting unknown values.
// Role comparisons elsewhere rely on the value being one of the three
// constants, so this is the only place a free-form string is accepted.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleFront, RoleBack, RoleOther:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidBatch, s)
	}
}

// FeatureRow is the per-image output of the feature-extraction step.
// The pairing engine treats it as read-only except for Role; OriginalRole
// preserves the classification assigned by feature extraction.
type FeatureRow struct {
	URL           string   `json:"url" binding:"required"`
	Role          Role     `json:"role"`
	OriginalRole  Role     `json:"originalRole,omitempty"`
	BrandNorm     string   `json:"brandNorm,omitempty"`
	ProductTokens []string `json:"productTokens,omitempty"`
	VariantTokens []string `json:"variantTokens,omitempty"`

	// HairCategory marks fronts from the variance-prone category that
	// pair under the looser hair thresholds. Supplied by feature
	// extraction; the engine never infers it.
	HairCategory bool `json:"hairCategory,omitempty"`
}
