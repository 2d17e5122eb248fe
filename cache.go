package streams

import "context"

// IdList is a cached, id-descending list of activity ids. Truncated is set
// when older ids of the stream exist beyond the end of Ids.
type IdList struct {
	Ids       []int64 `json:"ids"`
	Truncated bool    `json:"truncated"`
}

// Cache is a key-value cache with ordered id lists. Nothing is atomic across
// keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// MultiGet returns the subset of keys present in the cache.
	MultiGet(ctx context.Context, keys []string) (map[string][]byte, error)

	Set(ctx context.Context, key string, value []byte) error

	Delete(ctx context.Context, key string) error

	GetList(ctx context.Context, key string) (IdList, bool, error)

	// SetList stores list, cutting it to the list limit of the cache. A cut
	// list is stored as truncated.
	SetList(ctx context.Context, key string, list IdList) error

	// AddToTop prepends id to an existing list. Missing lists are left alone,
	// they get built from the store on the next read. Ids pushed past the
	// list limit mark the list truncated.
	AddToTop(ctx context.Context, key string, id int64) error

	// RemoveFromList keeps the truncation mark of the list.
	RemoveFromList(ctx context.Context, key string, id int64) error
}
