package domain

import "context"

// Backend is the persistence boundary consumed by the pipeline. It provides
// per-row atomicity but no cross-row transactions: every invariant spanning
// rows is the pipeline's responsibility.
//
// Implementations must return NotFoundError for missing rows and
// ConflictError when an update's expectedVersion does not match the stored
// row. Delete is a soft delete: the patch carries the deletion triple and the
// bumped version, and the row remains readable.
type Backend interface {
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table, id string, patch Row, expectedVersion *int64) (Row, error)
	Get(ctx context.Context, table, id string) (Row, error)
	Delete(ctx context.Context, table, id string, patch Row) (Row, error)
	// List enumerates every row of a table, including soft-deleted ones. The
	// cascade planner and the closure rebuild consume it.
	List(ctx context.Context, table string) ([]Row, error)
}
