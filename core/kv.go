package core

import "context"

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// KVStore reads and writes string values in a single remote collection.
// Implementations are safe for concurrent use.
type KVStore interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	// GetValues returns every entry of the collection, in whatever order the
	// remote returns them.
	GetValues(ctx context.Context) ([]*KeyValue, error)
	DeleteAllKeys(ctx context.Context) error
}
