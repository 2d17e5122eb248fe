package hydrate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/buzkaaclicker/streams"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streams",
		Subsystem: "hydrate",
		Name:      "cache_hits_total",
		Help:      "Records served from cache.",
	}, []string{"kind"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streams",
		Subsystem: "hydrate",
		Name:      "cache_misses_total",
		Help:      "Records loaded from the backing store.",
	}, []string{"kind"})
)

// Mapper turns ordered ids into ordered records through the cache. Records
// are cached under "<Kind>:<id>" in msgpack form, so fields tagged
// msgpack:"-" never reach the cache.
type Mapper[T any] struct {
	Kind  string
	Cache streams.Cache

	// Load reads records from the backing store in any order, omitting
	// missing ids.
	Load func(ctx context.Context, ids []int64) ([]T, error)
	Id   func(record T) int64

	// Populate fills cross references of freshly loaded records before they
	// are cached. Optional.
	Populate func(ctx context.Context, records []T) error
	// Patch sets viewer-relative fields on every returned record, on every
	// call. Optional.
	Patch func(ctx context.Context, records []T) error
}

// Key returns the cache key of the kind record with id.
func Key(kind string, id int64) string {
	return kind + ":" + strconv.FormatInt(id, 10)
}

func (m *Mapper[T]) Key(id int64) string {
	return Key(m.Kind, id)
}

// Hydrate returns one record per id that exists, in the order of ids.
func (m *Mapper[T]) Hydrate(ctx context.Context, ids []int64) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	log := logrus.WithField("kind", m.Kind)

	unique := make([]int64, 0, len(ids))
	keys := make([]string, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
		keys = append(keys, m.Key(id))
	}

	cached, err := m.Cache.MultiGet(ctx, keys)
	if err != nil {
		log.WithError(err).Warningln("Cache multi get failed, loading from store.")
		cached = map[string][]byte{}
	}

	found := make(map[int64]T, len(unique))
	missing := make([]int64, 0, len(unique))
	for i, id := range unique {
		key := keys[i]
		raw, ok := cached[key]
		if !ok || len(raw) == 0 {
			missing = append(missing, id)
			continue
		}
		var record T
		if err := msgpack.Unmarshal(raw, &record); err != nil {
			log.WithError(err).WithField("key", key).Warningln("Undecodable cache entry.")
			missing = append(missing, id)
			continue
		}
		found[id] = record
	}
	cacheHits.WithLabelValues(m.Kind).Add(float64(len(found)))
	cacheMisses.WithLabelValues(m.Kind).Add(float64(len(missing)))

	if len(missing) > 0 {
		loaded, err := m.Load(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load %d %s records: %w", len(missing), m.Kind, err)
		}
		if m.Populate != nil && len(loaded) > 0 {
			if err := m.Populate(ctx, loaded); err != nil {
				return nil, fmt.Errorf("populate %s records: %w", m.Kind, err)
			}
		}
		for _, record := range loaded {
			id := m.Id(record)
			found[id] = record

			raw, err := msgpack.Marshal(record)
			if err != nil {
				log.WithError(err).WithField("id", id).Warningln("Could not encode record.")
				continue
			}
			if err := m.Cache.Set(ctx, m.Key(id), raw); err != nil {
				log.WithError(err).WithField("id", id).Warningln("Could not cache record.")
			}
		}
	}

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if record, ok := found[id]; ok {
			out = append(out, record)
		}
	}
	if m.Patch != nil && len(out) > 0 {
		if err := m.Patch(ctx, out); err != nil {
			return nil, fmt.Errorf("patch %s records: %w", m.Kind, err)
		}
	}
	return out, nil
}

// Invalidate drops the cached record of id.
func (m *Mapper[T]) Invalidate(ctx context.Context, id int64) error {
	return m.Cache.Delete(ctx, m.Key(id))
}
