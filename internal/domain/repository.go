package domain

import (
	"context"
	"time"
)

// Disambiguator resolves ambiguous fronts the threshold rules could not
// decide. Implementations call an external model service; any failure is
// surfaced as an error and the caller maps it to a decline.
type Disambiguator interface {
	Resolve(ctx context.Context, front FeatureRow, candidates []FeatureRow) (*AssistDecision, error)
}

// ResultCache caches completed pairing results keyed by a content digest
// of the batch. Sound because the pipeline is deterministic: identical
// input always yields an identical result.
type ResultCache interface {
	Get(ctx context.Context, key string) (*PairResult, error)
	Set(ctx context.Context, key string, result *PairResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// AuditEvent is one structured decision record emitted by the engine
type AuditEvent struct {
	Stage    string `json:"stage"`
	Decision string `json:"decision"`
	URL      string `json:"url"`
	Reason   string `json:"reason,omitempty"`
}

// AuditSink receives audit events. Sinks must not block the pipeline;
// decision logic never depends on sink behavior.
type AuditSink interface {
	Record(event AuditEvent)
}
