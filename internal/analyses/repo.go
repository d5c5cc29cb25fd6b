package analyses

import "context"

// Store persists analyses. Records are append-only and immutable once created.
type Store interface {
	// CreateAnalysis assigns the next id and a creation timestamp atomically.
	CreateAnalysis(ctx context.Context, in InsertAnalysis) (Analysis, error)
	GetAnalysis(ctx context.Context, id int64) (Analysis, error)
	// GetLatestAnalysis returns the record with the highest id, or ErrNotFound.
	GetLatestAnalysis(ctx context.Context) (Analysis, error)
}
