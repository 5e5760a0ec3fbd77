package numbering

import (
	"context"
	"time"
)

// RuleStore persists numbering rules and sequence counters.
// Implementations return *apperror.AppError values; storage failures carry
// apperror.CodeDatabase and wrap the driver error.
type RuleStore interface {
	// FindApplicableRule returns the rule RuleResolver would pick, or nil when none applies.
	FindApplicableRule(ctx context.Context, documentTypeCode, departmentCode string, date time.Time) (*Rule, error)

	// NextSequence atomically increments the scope's counter and returns the new value.
	// A fresh scope starts at 1. When the counter already equals limit it returns
	// a SEQUENCE_EXHAUSTED error and leaves the counter untouched.
	NextSequence(ctx context.Context, scope SequenceScope, limit int64) (int64, error)

	// NumberExists reports whether a document already carries number.
	NumberExists(ctx context.Context, number string) (bool, error)

	// CreateRule validates and persists a new rule.
	CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error)

	// GetRuleByID returns nil when the rule does not exist.
	GetRuleByID(ctx context.Context, id int64) (*Rule, error)

	// SearchRules returns one page of rules ordered by ID plus the total match count.
	SearchRules(ctx context.Context, filter RuleFilter) (ListResult[*Rule], error)
}

// SequenceAdmin moves counters forward, e.g. to continue numbering imported from
// a legacy system. Both bundled stores implement it.
type SequenceAdmin interface {
	// SetSequence makes value the last issued number of scope. The next allocation
	// returns value+1. Moving a counter backwards fails with SEQUENCE_REWIND.
	SetSequence(ctx context.Context, scope SequenceScope, value int64) error
}
