package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/Yiling-J/theine-go"
	"github.com/buzkaaclicker/streams"
)

const (
	defaultCacheEntries = 100_000
	DefaultListLimit    = 1000
)

// Cache is an in-process streams.Cache. Values and lists are copied on the
// way in and out.
type Cache struct {
	// ListLimit truncates lists on every write. Zero means DefaultListLimit.
	ListLimit int

	values *theine.Cache[string, []byte]
	lists  *theine.Cache[string, streams.IdList]

	// serializes read-modify-write of lists
	listMutex sync.Mutex
}

var _ streams.Cache = (*Cache)(nil)

func NewCache(maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	values, err := theine.NewBuilder[string, []byte](maxEntries).Build()
	if err != nil {
		return nil, fmt.Errorf("build value cache: %w", err)
	}
	lists, err := theine.NewBuilder[string, streams.IdList](maxEntries).Build()
	if err != nil {
		values.Close()
		return nil, fmt.Errorf("build list cache: %w", err)
	}
	return &Cache{values: values, lists: lists}, nil
}

func (c *Cache) Close() {
	c.values.Close()
	c.lists.Close()
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := c.values.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (c *Cache) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	found := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := c.values.Get(key); ok {
			found[key] = append([]byte(nil), v...)
		}
	}
	return found, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	c.values.Set(key, append([]byte(nil), value...), 1)
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.values.Delete(key)
	c.listMutex.Lock()
	c.lists.Delete(key)
	c.listMutex.Unlock()
	return nil
}

func (c *Cache) GetList(ctx context.Context, key string) (streams.IdList, bool, error) {
	c.listMutex.Lock()
	defer c.listMutex.Unlock()

	list, ok := c.lists.Get(key)
	if !ok {
		return streams.IdList{}, false, nil
	}
	return streams.IdList{Ids: append([]int64{}, list.Ids...), Truncated: list.Truncated}, true, nil
}

func (c *Cache) SetList(ctx context.Context, key string, list streams.IdList) error {
	c.listMutex.Lock()
	defer c.listMutex.Unlock()

	c.setList(key, append([]int64{}, list.Ids...), list.Truncated)
	return nil
}

func (c *Cache) AddToTop(ctx context.Context, key string, id int64) error {
	c.listMutex.Lock()
	defer c.listMutex.Unlock()

	list, ok := c.lists.Get(key)
	if !ok {
		return nil
	}
	updated := make([]int64, 0, len(list.Ids)+1)
	updated = append(updated, id)
	for _, existing := range list.Ids {
		if existing != id {
			updated = append(updated, existing)
		}
	}
	c.setList(key, updated, list.Truncated)
	return nil
}

func (c *Cache) RemoveFromList(ctx context.Context, key string, id int64) error {
	c.listMutex.Lock()
	defer c.listMutex.Unlock()

	list, ok := c.lists.Get(key)
	if !ok {
		return nil
	}
	updated := make([]int64, 0, len(list.Ids))
	for _, existing := range list.Ids {
		if existing != id {
			updated = append(updated, existing)
		}
	}
	c.setList(key, updated, list.Truncated)
	return nil
}

// setList must be called with listMutex held.
func (c *Cache) setList(key string, ids []int64, truncated bool) {
	limit := c.ListLimit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(ids) > limit {
		ids = ids[:limit]
		truncated = true
	}
	c.lists.Set(key, streams.IdList{Ids: ids, Truncated: truncated}, 1)
}
