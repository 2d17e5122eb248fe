package stream

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
)

// Registry dispatches stream definitions to the strategy of their kind.
type Registry map[streams.StreamKind]Strategy

func NewRegistry(strategies ...Strategy) Registry {
	r := make(Registry, len(strategies))
	for _, s := range strategies {
		if _, ok := r[s.Kind()]; ok {
			panic("Duplicated stream strategy: `" + string(s.Kind()) + "`!")
		}
		r[s.Kind()] = s
	}
	return r
}

// Resolve computes the restriction and list cache key of def for viewer.
func (r Registry) Resolve(ctx context.Context, def streams.StreamDefinition,
	viewer streams.UserId) (streams.ResolvedStream, error) {
	strategy, ok := r[def.Kind]
	if !ok {
		return streams.ResolvedStream{}, fmt.Errorf("%w: no strategy for stream kind %q",
			streams.ErrMalformedRequest, def.Kind)
	}
	restriction, err := strategy.Restriction(ctx, def, viewer)
	if err != nil {
		return streams.ResolvedStream{}, fmt.Errorf("%s restriction: %w", def.Kind, err)
	}
	resolved := streams.ResolvedStream{Kind: def.Kind, Restriction: restriction}
	if restriction.Empty || def.Kind == streams.KindStarred {
		return resolved, nil
	}
	resolved.CacheKey, err = strategy.CacheKey(ctx, def, viewer)
	if err != nil {
		return streams.ResolvedStream{}, fmt.Errorf("%s cache key: %w", def.Kind, err)
	}
	return resolved, nil
}
