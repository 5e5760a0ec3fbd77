package numbering

import (
	"context"
	"fmt"

	"docnum/internal/core/apperror"
)

var pow10 = func() [MaxSequenceWidth + 1]int64 {
	var p [MaxSequenceWidth + 1]int64
	p[0] = 1
	for i := 1; i <= MaxSequenceWidth; i++ {
		p[i] = p[i-1] * 10
	}
	return p
}()

// Capacity is the largest sequence value that fits in width digits.
func Capacity(width int) int64 {
	if width < 1 {
		return 0
	}
	if width > MaxSequenceWidth {
		width = MaxSequenceWidth
	}
	return pow10[width] - 1
}

// Allocator hands out per-scope sequence values.
// Atomicity is the store's job; Allocator holds no state of its own so any
// number of processes may share one store.
type Allocator struct {
	store RuleStore
}

// NewAllocator creates an allocator.
func NewAllocator(store RuleStore) *Allocator {
	return &Allocator{store: store}
}

// Next returns the next value of scope, bounded by width digits.
func (a *Allocator) Next(ctx context.Context, scope SequenceScope, width int) (int64, error) {
	if width < 1 || width > MaxSequenceWidth {
		return 0, invalid(CodeInvalidSequenceDigits, ErrInvalidSequenceDigits.Message).
			WithDetail("sequenceWidth", width)
	}

	limit := Capacity(width)
	value, err := a.store.NextSequence(ctx, scope, limit)
	if err != nil {
		return 0, storageErr(err)
	}
	if value < 1 || value > limit {
		return 0, apperror.NewInternal(
			fmt.Errorf("store returned sequence %d outside 1..%d for rule %d", value, limit, scope.RuleID))
	}
	return value, nil
}

// storageErr keeps AppErrors and classifies anything else as a storage failure.
func storageErr(err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewDatabase(err)
}
