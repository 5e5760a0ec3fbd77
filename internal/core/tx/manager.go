// Package tx decouples domain code from a concrete transaction implementation.
package tx

import (
	"context"
)

// Manager runs a function inside one database transaction.
// The implementation lives in infrastructure/storage/postgres.
type Manager interface {
	// RunInTransaction commits when fn returns nil and rolls back otherwise.
	// Nested calls join the transaction already carried by ctx.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
