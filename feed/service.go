package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/buzkaaclicker/streams"
	"github.com/buzkaaclicker/streams/hydrate"
	"github.com/buzkaaclicker/streams/page"
	"github.com/buzkaaclicker/streams/stream"
	"github.com/sirupsen/logrus"
)

const (
	activityKind  = "activity"
	streamDefKind = "streamdef"
)

// Service runs feed queries and activity writes for one viewer at a time.
type Service struct {
	Cache    streams.Cache
	Tx       streams.Transactor
	Tasks    streams.TaskQueue
	Registry stream.Registry
	Resolver *page.Resolver

	Activities   streams.ActivityStore
	Comments     streams.CommentStore
	Likes        streams.LikeStore
	Stars        streams.StarStore
	Groups       streams.GroupStore
	Orgs         streams.OrgStore
	Follows      streams.FollowStore
	Definitions  streams.StreamDefinitionStore
	Destinations streams.DestinationStore
	Identities   streams.IdentityResolver

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Page resolves one page of req for viewer.
func (s *Service) Page(ctx context.Context, viewer streams.UserId, req streams.FeedRequest) ([]streams.Activity, error) {
	def, err := s.definition(ctx, viewer, req)
	if err != nil {
		return nil, err
	}
	keywords := req.Keywords
	if keywords == "" {
		keywords = def.Keywords
	}

	resolved, err := s.Registry.Resolve(ctx, def, viewer)
	if err != nil {
		return nil, fmt.Errorf("resolve stream: %w", err)
	}
	filter := streams.Filter{
		Stream:   &resolved,
		Keywords: keywords,
		SortBy:   req.SortBy,
		MinId:    req.Page.MinId,
		MaxId:    req.Page.MaxId,
	}
	scope := page.NewVisibilityScope(viewer, s.Groups)
	ids, err := s.Resolver.ResolvePage(ctx, filter, scope, req.Page)
	if err != nil {
		return nil, fmt.Errorf("resolve page: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"viewer": viewer,
		"kind":   def.Kind,
		"ids":    len(ids),
	}).Debugln("Feed page resolved.")

	activities, err := s.activityMapper(viewer).Hydrate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate page: %w", err)
	}
	return activities, nil
}

// definition picks the stream definition of req: inline, saved or all.
func (s *Service) definition(ctx context.Context, viewer streams.UserId,
	req streams.FeedRequest) (streams.StreamDefinition, error) {
	switch {
	case req.Inline != nil:
		def := *req.Inline
		def.Id = 0
		def.Owner = viewer
		return def, nil
	case req.StreamId != 0:
		return s.savedDefinition(ctx, viewer, req.StreamId)
	default:
		return streams.StreamDefinition{Kind: streams.KindAll}, nil
	}
}

func (s *Service) savedDefinition(ctx context.Context, viewer streams.UserId, id int64) (streams.StreamDefinition, error) {
	defs, err := s.definitionMapper().Hydrate(ctx, []int64{id})
	if err != nil {
		return streams.StreamDefinition{}, fmt.Errorf("stream definition %d: %w", id, err)
	}
	if len(defs) == 0 {
		return streams.StreamDefinition{}, streams.ErrStreamNotFound
	}
	if defs[0].Owner != viewer {
		return streams.StreamDefinition{}, streams.ErrForbidden
	}
	return defs[0], nil
}

// Activity returns a single activity viewer may see.
func (s *Service) Activity(ctx context.Context, viewer streams.UserId, id int64) (streams.Activity, error) {
	if err := s.requireVisible(ctx, viewer, id); err != nil {
		return streams.Activity{}, err
	}
	activities, err := s.activityMapper(viewer).Hydrate(ctx, []int64{id})
	if err != nil {
		return streams.Activity{}, fmt.Errorf("hydrate activity %d: %w", id, err)
	}
	if len(activities) == 0 {
		return streams.Activity{}, streams.ErrActivityNotFound
	}
	return activities[0], nil
}

// requireVisible fails with ErrActivityNotFound unless viewer may see id.
func (s *Service) requireVisible(ctx context.Context, viewer streams.UserId, id int64) error {
	scope := page.NewVisibilityScope(viewer, s.Groups)
	visible, err := s.Resolver.Trimmer.Trim(ctx, []int64{id}, scope)
	if err != nil {
		return fmt.Errorf("visibility of %d: %w", id, err)
	}
	if len(visible) == 0 {
		return streams.ErrActivityNotFound
	}
	return nil
}

func activityKey(id int64) string {
	return hydrate.Key(activityKind, id)
}

func streamDefKey(id int64) string {
	return hydrate.Key(streamDefKind, id)
}
