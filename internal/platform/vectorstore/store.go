package vectorstore

import "context"

// Point is a single vector plus payload stored in the vector database.
type Point struct {
	ID      string
	Values  []float32
	Payload map[string]any
}

// Match is one nearest-neighbor result.
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store is the narrow vector-database contract the engine depends on.
// Cosine similarity semantics are assumed throughout.
type Store interface {
	// EnsureCollection creates the collection with the given vector
	// dimensionality when absent; a pre-existing collection is left as-is.
	EnsureCollection(ctx context.Context, collection string, dim int) error

	// EnsurePayloadIndex creates a payload field index when absent, so
	// delete-by-filter and filtered search stay efficient.
	EnsurePayloadIndex(ctx context.Context, collection, field, kind string) error

	Upsert(ctx context.Context, collection string, points []Point) error

	// DeleteByFilter removes every point whose payload matches the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	DeleteIDs(ctx context.Context, collection string, ids []string) error

	// Query returns up to topK nearest neighbors above threshold, most
	// similar first, restricted by the optional payload filter.
	Query(ctx context.Context, collection string, vector []float32, topK int, threshold float64, filter map[string]any) ([]Match, error)

	// FetchByFilter returns stored points (with vectors) matching the
	// filter, used to seed similarity search from a record's own vectors.
	FetchByFilter(ctx context.Context, collection string, filter map[string]any, limit int) ([]Point, error)
}
