package persistent

import (
	"context"
	"testing"

	"github.com/buzkaaclicker/streams"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/buntdb"
)

func newTestCache(t *testing.T, limit int) *Cache {
	bdb, err := buntdb.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bdb.Close() })
	return &Cache{Buntdb: bdb, ListLimit: limit}
}

func TestCacheValues(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cache := newTestCache(t, 0)

	_, found, err := cache.Get(ctx, "activity:1")
	assert.NoError(err)
	assert.False(found)

	assert.NoError(cache.Set(ctx, "activity:1", []byte{0x81, 0xa2}))
	assert.NoError(cache.Set(ctx, "activity:2", []byte("two")))

	value, found, err := cache.Get(ctx, "activity:1")
	if !assert.NoError(err) {
		return
	}
	assert.True(found)
	assert.Equal([]byte{0x81, 0xa2}, value)

	values, err := cache.MultiGet(ctx, []string{"activity:1", "activity:3", "activity:2"})
	if !assert.NoError(err) {
		return
	}
	assert.Equal(map[string][]byte{
		"activity:1": {0x81, 0xa2},
		"activity:2": []byte("two"),
	}, values)

	assert.NoError(cache.Delete(ctx, "activity:1"))
	assert.NoError(cache.Delete(ctx, "activity:404"))
	_, found, _ = cache.Get(ctx, "activity:1")
	assert.False(found)
}

func TestCacheLists(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cache := newTestCache(t, 4)

	assert.NoError(cache.AddToTop(ctx, "ids:all", 9))
	_, found, err := cache.GetList(ctx, "ids:all")
	assert.NoError(err)
	assert.False(found, "missing lists are not created")

	assert.NoError(cache.SetList(ctx, "ids:all", streams.IdList{}))
	list, found, err := cache.GetList(ctx, "ids:all")
	if !assert.NoError(err) {
		return
	}
	assert.True(found)
	assert.Equal(streams.IdList{Ids: []int64{}}, list)

	assert.NoError(cache.SetList(ctx, "ids:all", streams.IdList{Ids: []int64{3, 2, 1}}))
	assert.NoError(cache.AddToTop(ctx, "ids:all", 4))
	list, _, _ = cache.GetList(ctx, "ids:all")
	assert.Equal(streams.IdList{Ids: []int64{4, 3, 2, 1}}, list, "full but complete")

	assert.NoError(cache.AddToTop(ctx, "ids:all", 5))
	list, _, _ = cache.GetList(ctx, "ids:all")
	assert.Equal(streams.IdList{Ids: []int64{5, 4, 3, 2}, Truncated: true}, list, "pushed past the limit")

	assert.NoError(cache.SetList(ctx, "ids:all", streams.IdList{Ids: []int64{5, 4, 3, 2, 1}}))
	list, _, _ = cache.GetList(ctx, "ids:all")
	assert.Equal(streams.IdList{Ids: []int64{5, 4, 3, 2}, Truncated: true}, list, "cut to limit")

	assert.NoError(cache.AddToTop(ctx, "ids:all", 6))
	assert.NoError(cache.AddToTop(ctx, "ids:all", 4))
	list, _, _ = cache.GetList(ctx, "ids:all")
	assert.Equal([]int64{4, 6, 5, 3}, list.Ids)

	assert.NoError(cache.RemoveFromList(ctx, "ids:all", 5))
	list, _, _ = cache.GetList(ctx, "ids:all")
	assert.Equal(streams.IdList{Ids: []int64{4, 6, 3}, Truncated: true}, list, "removal keeps the mark")

	assert.NoError(cache.Set(ctx, "ids:all", []byte("value")))
	assert.NoError(cache.Delete(ctx, "ids:all"))
	_, found, _ = cache.GetList(ctx, "ids:all")
	assert.False(found)
	_, found, _ = cache.Get(ctx, "ids:all")
	assert.False(found)
}
