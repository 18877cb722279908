// Package job owns the enhancement job state machine: it drives a document
// through extraction, correction and analysis with idempotency, retry and
// timeout policy, and is the only writer to the result store.
package job

import (
	"context"
	"errors"
	"time"

	"docenhance/internal/classify"
	"docenhance/internal/document"
)

// ErrNotFound is returned when no job exists for a document reference.
var ErrNotFound = errors.New("job not found")

// State is a job's position in the enhancement state machine.
type State string

const (
	StatePending    State = "pending"
	StateExtracting State = "extracting"
	StateCorrecting State = "correcting"
	StateAnalyzing  State = "analyzing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether the state is final. Terminal records are
// immutable and retained until explicitly purged.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Record is one enhancement attempt for a document. It is mutated only by
// the orchestrator; everyone else receives copies.
type Record struct {
	ID            string                  `json:"id"`
	Ref           document.Reference      `json:"document_ref"`
	State         State                   `json:"state"`
	RawText       string                  `json:"raw_text,omitempty"`
	CorrectedText string                  `json:"corrected_text,omitempty"`
	Changes       []classify.ChangeRecord `json:"changes,omitempty"`
	Summary       *classify.Summary       `json:"summary,omitempty"`
	Attempts      int                     `json:"attempts"`
	LastError     string                  `json:"last_error,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// Clone returns a copy of the record safe to hand outside the orchestrator.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Changes != nil {
		c.Changes = append([]classify.ChangeRecord(nil), r.Changes...)
	}
	if r.Summary != nil {
		s := *r.Summary
		if s.Counts != nil {
			counts := make(map[classify.Category]int, len(s.Counts))
			for k, v := range s.Counts {
				counts[k] = v
			}
			s.Counts = counts
		}
		c.Summary = &s
	}
	return &c
}

// Store is the durable keyed store of job records. Implementations live in
// internal/store.
type Store interface {
	// Put writes the record under its document key, replacing any previous
	// version.
	Put(ctx context.Context, rec *Record) error

	// Get returns the record for the key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Record, error)

	// List returns all records.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes the record for the key.
	Delete(ctx context.Context, key string) error
}

// Config carries the orchestrator's limits and timing policy. It is an
// explicit value so multiple configurations can coexist in tests.
type Config struct {
	// MaxDocumentBytes rejects oversized source documents before any adapter
	// call.
	MaxDocumentBytes int

	// MaxTextBytes bounds extracted text before correction and analysis.
	MaxTextBytes int

	// MaxAttempts bounds transient-failure retries per adapter call.
	MaxAttempts int

	// RetryBackoff is the first backoff delay; later delays double, with
	// jitter.
	RetryBackoff time.Duration

	// RetryBudget caps the total wall clock spent retrying one adapter call.
	RetryBudget time.Duration

	// TimeoutBase, TimeoutPerMB and TimeoutCeiling shape the per-call
	// deadline from the input size.
	TimeoutBase    time.Duration
	TimeoutPerMB   time.Duration
	TimeoutCeiling time.Duration
}

// DefaultConfig returns the default pipeline policy.
func DefaultConfig() Config {
	return Config{
		MaxDocumentBytes: 10 << 20,
		MaxTextBytes:     10 << 20,
		MaxAttempts:      3,
		RetryBackoff:     2 * time.Second,
		RetryBudget:      2 * time.Minute,
		TimeoutBase:      30 * time.Second,
		TimeoutPerMB:     5 * time.Second,
		TimeoutCeiling:   60 * time.Second,
	}
}

// normalize fills zero fields with defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxDocumentBytes <= 0 {
		c.MaxDocumentBytes = def.MaxDocumentBytes
	}
	if c.MaxTextBytes <= 0 {
		c.MaxTextBytes = def.MaxTextBytes
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = def.RetryBackoff
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = def.RetryBudget
	}
	if c.TimeoutBase <= 0 {
		c.TimeoutBase = def.TimeoutBase
	}
	if c.TimeoutPerMB < 0 {
		c.TimeoutPerMB = def.TimeoutPerMB
	}
	if c.TimeoutCeiling <= 0 {
		c.TimeoutCeiling = def.TimeoutCeiling
	}
	return c
}

// timeoutFor computes the adapter deadline for an input of the given size.
func (c Config) timeoutFor(sizeBytes int) time.Duration {
	mb := (sizeBytes + (1 << 20) - 1) >> 20
	d := c.TimeoutBase + time.Duration(mb)*c.TimeoutPerMB
	if d > c.TimeoutCeiling {
		d = c.TimeoutCeiling
	}
	return d
}
