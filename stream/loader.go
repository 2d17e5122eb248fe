package stream

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
	"github.com/sirupsen/logrus"
)

const DefaultMaxListSize = 1000

// Loader is the id-descending source of stream ids. Lists with a cache key
// are kept in Cache up to MaxListSize ids; pages past the cached window are
// read from the store directly.
type Loader struct {
	Cache streams.Cache
	Ids   streams.IdStore
	Stars streams.StarStore
	// MaxListSize bounds cached lists. Zero means DefaultMaxListSize.
	MaxListSize int
}

var _ streams.OrderedSource = (*Loader)(nil)

func (l *Loader) Order() streams.Order {
	return streams.OrderIdDescending
}

func (l *Loader) Fetch(ctx context.Context, filter streams.Filter, viewer streams.UserId,
	count int) ([]int64, bool, error) {
	if filter.Stream == nil {
		return nil, false, nil
	}
	resolved := filter.Stream
	if resolved.Restriction.Empty || count <= 0 {
		return []int64{}, true, nil
	}

	if resolved.Restriction.StarredBy != 0 {
		ids, err := l.Stars.StarredIds(ctx, resolved.Restriction.StarredBy, filter.MaxId, count)
		if err != nil {
			return nil, false, fmt.Errorf("starred ids: %w", err)
		}
		return ids, true, nil
	}

	if resolved.CacheKey == "" {
		ids, err := l.Ids.StreamIds(ctx, resolved.Restriction, filter.MaxId, count)
		if err != nil {
			return nil, false, fmt.Errorf("stream ids: %w", err)
		}
		return ids, true, nil
	}

	list, err := l.list(ctx, resolved)
	if err != nil {
		return nil, false, err
	}
	window := windowBefore(list.Ids, filter.MaxId, count)
	if len(window) < count && list.Truncated {
		// the cached list is truncated, the rest lives in the store only
		ids, err := l.Ids.StreamIds(ctx, resolved.Restriction, filter.MaxId, count)
		if err != nil {
			return nil, false, fmt.Errorf("stream ids past cached list: %w", err)
		}
		return ids, true, nil
	}
	return window, true, nil
}

func (l *Loader) maxListSize() int {
	if l.MaxListSize <= 0 {
		return DefaultMaxListSize
	}
	return l.MaxListSize
}

// list returns the cached id list of resolved, building it on a miss. One id
// more than fits is read so a built list knows whether it is truncated.
func (l *Loader) list(ctx context.Context, resolved *streams.ResolvedStream) (streams.IdList, error) {
	log := logrus.WithField("key", resolved.CacheKey)

	list, ok, err := l.Cache.GetList(ctx, resolved.CacheKey)
	if err != nil {
		log.WithError(err).Warnln("Could not read cached id list.")
	} else if ok {
		return list, nil
	}

	limit := l.maxListSize()
	ids, err := l.Ids.StreamIds(ctx, resolved.Restriction, 0, limit+1)
	if err != nil {
		return streams.IdList{}, fmt.Errorf("build id list %s: %w", resolved.CacheKey, err)
	}
	list = streams.IdList{Ids: ids}
	if len(ids) > limit {
		list = streams.IdList{Ids: ids[:limit], Truncated: true}
	}
	if err := l.Cache.SetList(ctx, resolved.CacheKey, list); err != nil {
		log.WithError(err).Warnln("Could not cache id list.")
	}
	return list, nil
}

// windowBefore returns up to count ids of the descending list that are
// lower than beforeId.
func windowBefore(list []int64, beforeId int64, count int) []int64 {
	start := 0
	if beforeId > 0 {
		for start < len(list) && list[start] >= beforeId {
			start++
		}
	}
	end := start + count
	if end > len(list) {
		end = len(list)
	}
	window := make([]int64, end-start)
	copy(window, list[start:end])
	return window
}
