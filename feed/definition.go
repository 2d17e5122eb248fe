package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/buzkaaclicker/streams"
	"github.com/buzkaaclicker/streams/stream"
)

// SaveStream creates or updates a stream definition owned by viewer.
func (s *Service) SaveStream(ctx context.Context, viewer streams.UserId,
	def streams.StreamDefinition) (streams.StreamDefinition, error) {
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return streams.StreamDefinition{}, fmt.Errorf("%w: missing stream name", streams.ErrMalformedRequest)
	}
	if !def.Kind.Valid() {
		return streams.StreamDefinition{}, fmt.Errorf("%w: unknown stream kind %q", streams.ErrMalformedRequest, def.Kind)
	}
	if def.Kind != streams.KindCustom && len(def.Scopes) > 0 {
		return streams.StreamDefinition{}, fmt.Errorf("%w: scopes only allowed in custom streams", streams.ErrMalformedRequest)
	}
	if def.Id != 0 {
		if _, err := s.savedDefinition(ctx, viewer, def.Id); err != nil {
			return streams.StreamDefinition{}, err
		}
	}
	def.Owner = viewer

	var saved streams.StreamDefinition
	err := s.write(ctx, func(ctx context.Context, e *effects) error {
		var err error
		saved, err = s.Definitions.Save(ctx, def)
		if err != nil {
			return fmt.Errorf("save stream definition: %w", err)
		}
		e.invalidate(ctx, streamDefKey(saved.Id), stream.CustomKey(saved.Id))
		return nil
	})
	if err != nil {
		return streams.StreamDefinition{}, err
	}
	return saved, nil
}

// Streams lists the saved definitions of viewer.
func (s *Service) Streams(ctx context.Context, viewer streams.UserId) ([]streams.StreamDefinition, error) {
	ids, err := s.Definitions.IdsByOwner(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("stream definitions of %d: %w", viewer, err)
	}
	defs, err := s.definitionMapper().Hydrate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate stream definitions: %w", err)
	}
	return defs, nil
}
