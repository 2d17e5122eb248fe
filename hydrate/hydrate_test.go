package hydrate

import (
	"context"
	"errors"
	"testing"

	"github.com/buzkaaclicker/streams"
	"github.com/buzkaaclicker/streams/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/vmihailenco/msgpack/v5"
)

type countingCache struct {
	streams.Cache
	sets []string
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte) error {
	c.sets = append(c.sets, key)
	return c.Cache.Set(ctx, key, value)
}

type record struct {
	Id     int64  `msgpack:"id"`
	Title  string `msgpack:"title"`
	Viewer int64  `msgpack:"-"`
}

func newTestMapper(t *testing.T, store map[int64]record, loads *[][]int64) (*Mapper[record], *countingCache) {
	c, err := inmem.NewCache(100)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	cache := &countingCache{Cache: c}
	return &Mapper[record]{
		Kind:  "record",
		Cache: cache,
		Load: func(ctx context.Context, ids []int64) ([]record, error) {
			*loads = append(*loads, append([]int64{}, ids...))
			out := []record{}
			for _, id := range ids {
				if r, ok := store[id]; ok {
					out = append(out, r)
				}
			}
			return out, nil
		},
		Id: func(r record) int64 { return r.Id },
		Patch: func(ctx context.Context, records []record) error {
			for i := range records {
				records[i].Viewer = 42
			}
			return nil
		},
	}, cache
}

func TestHydrateCacheMiss(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := map[int64]record{1: {Id: 1, Title: "one"}, 2: {Id: 2, Title: "two"}, 3: {Id: 3, Title: "three"}}
	var loads [][]int64
	mapper, cache := newTestMapper(t, store, &loads)

	raw, err := msgpack.Marshal(store[2])
	if !assert.NoError(err) {
		return
	}
	if !assert.NoError(cache.Cache.Set(ctx, "record:2", raw)) {
		return
	}

	records, err := mapper.Hydrate(ctx, []int64{1, 2, 3})
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]record{
		{Id: 1, Title: "one", Viewer: 42},
		{Id: 2, Title: "two", Viewer: 42},
		{Id: 3, Title: "three", Viewer: 42},
	}, records)
	assert.Equal([][]int64{{1, 3}}, loads)
	assert.Equal([]string{"record:1", "record:3"}, cache.sets)

	// second read is served from cache, viewer fields are patched again
	records, err = mapper.Hydrate(ctx, []int64{3, 1})
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]record{{Id: 3, Title: "three", Viewer: 42}, {Id: 1, Title: "one", Viewer: 42}}, records)
	assert.Equal(1, len(loads))

	cached, ok, err := cache.Get(ctx, "record:1")
	if assert.NoError(err) && assert.True(ok) {
		var r record
		assert.NoError(msgpack.Unmarshal(cached, &r))
		assert.Equal(int64(0), r.Viewer, "viewer fields must not be cached")
	}
}

func TestHydrateOmitsMissing(t *testing.T) {
	assert := assert.New(t)

	store := map[int64]record{5: {Id: 5}, 7: {Id: 7}}
	var loads [][]int64
	mapper, cache := newTestMapper(t, store, &loads)

	records, err := mapper.Hydrate(context.Background(), []int64{9, 7, 6, 5})
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]record{{Id: 7, Viewer: 42}, {Id: 5, Viewer: 42}}, records)
	assert.Equal([]string{"record:7", "record:5"}, cache.sets)
}

func TestHydrateEmpty(t *testing.T) {
	assert := assert.New(t)

	var loads [][]int64
	mapper, _ := newTestMapper(t, nil, &loads)
	records, err := mapper.Hydrate(context.Background(), nil)
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]record{}, records)
	assert.Empty(loads)
}

func TestHydrateStoreFailure(t *testing.T) {
	assert := assert.New(t)

	var loads [][]int64
	mapper, _ := newTestMapper(t, nil, &loads)
	storeErr := errors.New("db down")
	mapper.Load = func(ctx context.Context, ids []int64) ([]record, error) {
		return nil, storeErr
	}
	records, err := mapper.Hydrate(context.Background(), []int64{1})
	assert.ErrorIs(err, storeErr)
	assert.Nil(records)
}

func TestHydrateUndecodableEntryIsMiss(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := map[int64]record{1: {Id: 1, Title: "fresh"}}
	var loads [][]int64
	mapper, cache := newTestMapper(t, store, &loads)
	assert.NoError(cache.Cache.Set(ctx, "record:1", []byte{0xc1}))

	records, err := mapper.Hydrate(ctx, []int64{1})
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]record{{Id: 1, Title: "fresh", Viewer: 42}}, records)
	assert.Equal([][]int64{{1}}, loads)
}
