package feed

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
	"github.com/buzkaaclicker/streams/hydrate"
)

func (s *Service) activityMapper(viewer streams.UserId) *hydrate.Mapper[streams.Activity] {
	return &hydrate.Mapper[streams.Activity]{
		Kind:     activityKind,
		Cache:    s.Cache,
		Load:     s.Activities.ByIds,
		Id:       func(a streams.Activity) int64 { return a.Id },
		Populate: s.populateIdentities,
		Patch: func(ctx context.Context, activities []streams.Activity) error {
			return s.patchViewer(ctx, viewer, activities)
		},
	}
}

func (s *Service) definitionMapper() *hydrate.Mapper[streams.StreamDefinition] {
	return &hydrate.Mapper[streams.StreamDefinition]{
		Kind:  streamDefKind,
		Cache: s.Cache,
		Load:  s.Definitions.ByIds,
		Id:    func(d streams.StreamDefinition) int64 { return d.Id },
	}
}

// populateIdentities fills author and destination display fields.
func (s *Service) populateIdentities(ctx context.Context, activities []streams.Activity) error {
	refs := make([]streams.EntityRef, 0, 2*len(activities))
	seen := make(map[streams.EntityRef]struct{}, 2*len(activities))
	add := func(ref streams.EntityRef) {
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	for _, a := range activities {
		add(authorRef(a))
		add(destinationRef(a))
	}

	identities, err := s.Identities.Identities(ctx, refs)
	if err != nil {
		return fmt.Errorf("identities: %w", err)
	}
	for i := range activities {
		a := &activities[i]
		author := identities[authorRef(*a)]
		a.AuthorName, a.AuthorAvatar = author.Name, author.AvatarUrl
		a.DestinationName = identities[destinationRef(*a)].Name
	}
	return nil
}

func authorRef(a streams.Activity) streams.EntityRef {
	return streams.EntityRef{Type: streams.DestinationPerson, Id: int64(a.Author)}
}

func destinationRef(a streams.Activity) streams.EntityRef {
	return streams.EntityRef{Type: a.Destination.Type, Id: a.Destination.EntityId}
}

// patchViewer sets the fields that depend on who is looking.
func (s *Service) patchViewer(ctx context.Context, viewer streams.UserId, activities []streams.Activity) error {
	ids := make([]int64, len(activities))
	for i, a := range activities {
		ids[i] = a.Id
	}
	starred, err := s.Stars.StarredAmong(ctx, viewer, ids)
	if err != nil {
		return fmt.Errorf("starred among: %w", err)
	}
	liked, err := s.Likes.LikedAmong(ctx, viewer, ids)
	if err != nil {
		return fmt.Errorf("liked among: %w", err)
	}
	deletable, err := s.deletable(ctx, viewer, activities)
	if err != nil {
		return err
	}

	now := s.now()
	for i := range activities {
		a := &activities[i]
		a.Starred = starred[a.Id]
		a.Liked = liked[a.Id]
		a.Deletable = deletable[a.Id]
		a.ServerTime = now
	}
	return nil
}

// deletable reports the activities viewer authored, received on their own
// stream or received by a group they coordinate. Coordinated groups are read
// only when a group activity needs them.
func (s *Service) deletable(ctx context.Context, viewer streams.UserId, activities []streams.Activity) (map[int64]bool, error) {
	result := make(map[int64]bool, len(activities))
	var coordinated map[streams.GroupId]struct{}
	for _, a := range activities {
		switch {
		case a.Author == viewer:
		case a.Destination.Type == streams.DestinationPerson && a.Destination.EntityId == int64(viewer):
		case a.Destination.Type == streams.DestinationGroup:
			if coordinated == nil {
				ids, err := s.Groups.CoordinatedGroupIds(ctx, viewer)
				if err != nil {
					return nil, fmt.Errorf("coordinated groups of %d: %w", viewer, err)
				}
				coordinated = make(map[streams.GroupId]struct{}, len(ids))
				for _, id := range ids {
					coordinated[id] = struct{}{}
				}
			}
			if _, ok := coordinated[streams.GroupId(a.Destination.EntityId)]; !ok {
				continue
			}
		default:
			continue
		}
		result[a.Id] = true
	}
	return result, nil
}
