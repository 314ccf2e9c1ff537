package facestore

// HNSW index parameters for 512-dim face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier is the factor to request more candidates from
	// the index to ensure enough survive tenant and threshold filtering.
	HNSWSearchMultiplier = 3

	// HNSWMinSearchK is the floor for the candidate pool during filtered
	// searches, for better recall on small result limits.
	HNSWMinSearchK = 100
)

// DefaultSearchLimit caps similarity searches when the caller does not
// specify a limit.
const DefaultSearchLimit = 500
