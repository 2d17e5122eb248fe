package stream

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
)

// Strategy turns a stream definition of one kind into backing-store
// restrictions and names the cache key of the resulting id list.
type Strategy interface {
	Kind() streams.StreamKind

	Restriction(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (streams.Restriction, error)

	// CacheKey returns the list key for def as seen by viewer. An empty key
	// means the list is not cached.
	CacheKey(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (string, error)
}

type All struct{}

func (All) Kind() streams.StreamKind {
	return streams.KindAll
}

func (All) Restriction(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (streams.Restriction, error) {
	return streams.Restriction{All: true}, nil
}

func (All) CacheKey(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (string, error) {
	return AllKey(), nil
}

// Custom ORs explicit person and group streams with the subtrees of the
// named organizations.
type Custom struct {
	Orgs streams.OrgStore
}

func (Custom) Kind() streams.StreamKind {
	return streams.KindCustom
}

func (s Custom) Restriction(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (streams.Restriction, error) {
	var r streams.Restriction
	seenOrgs := map[streams.OrgId]struct{}{}
	for _, scope := range def.Scopes {
		switch scope.Type {
		case streams.ScopePerson, streams.ScopeGroup:
			r.StreamIds = append(r.StreamIds, scope.Id)
		case streams.ScopeOrg:
			subtree, err := s.Orgs.Subtree(ctx, streams.OrgId(scope.Id))
			if err != nil {
				return streams.Restriction{}, fmt.Errorf("subtree of org %d: %w", scope.Id, err)
			}
			for _, org := range subtree {
				if _, ok := seenOrgs[org]; !ok {
					seenOrgs[org] = struct{}{}
					r.OrgIds = append(r.OrgIds, org)
				}
			}
		}
	}
	if len(r.StreamIds) == 0 && len(r.OrgIds) == 0 {
		return streams.Restriction{Empty: true}, nil
	}
	return r, nil
}

// CacheKey keys saved definitions by id. An inline definition naming a
// single person or group shares the list of that stream, other inline
// definitions are not cached.
func (Custom) CacheKey(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (string, error) {
	if def.Id != 0 {
		return CustomKey(def.Id), nil
	}
	if len(def.Scopes) == 1 && def.Scopes[0].Type != streams.ScopeOrg {
		return StreamKey(def.Scopes[0].Id), nil
	}
	return "", nil
}

// Followed shows the streams of everything the viewer follows.
type Followed struct {
	Follows streams.FollowStore
}

func (Followed) Kind() streams.StreamKind {
	return streams.KindFollowed
}

func (s Followed) Restriction(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (streams.Restriction, error) {
	ids, err := s.Follows.FollowedStreamIds(ctx, viewer)
	if err != nil {
		return streams.Restriction{}, fmt.Errorf("followed streams of %d: %w", viewer, err)
	}
	if len(ids) == 0 {
		return streams.Restriction{Empty: true}, nil
	}
	return streams.Restriction{StreamIds: ids}, nil
}

func (Followed) CacheKey(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (string, error) {
	return FollowingKey(viewer), nil
}

// ParentOrg shows the organization subtree rooted at the viewer's parent
// organization. Its list is shared by every viewer of that organization.
type ParentOrg struct {
	Users streams.UserStore
	Orgs  streams.OrgStore
}

func (ParentOrg) Kind() streams.StreamKind {
	return streams.KindParentOrg
}

func (s ParentOrg) parentOrg(ctx context.Context, viewer streams.UserId) (streams.OrgId, error) {
	user, err := s.Users.ById(ctx, viewer)
	if err != nil {
		return 0, fmt.Errorf("user %d: %w", viewer, err)
	}
	return user.ParentOrgId, nil
}

func (s ParentOrg) Restriction(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (streams.Restriction, error) {
	org, err := s.parentOrg(ctx, viewer)
	if err != nil {
		return streams.Restriction{}, err
	}
	subtree, err := s.Orgs.Subtree(ctx, org)
	if err != nil {
		return streams.Restriction{}, fmt.Errorf("subtree of org %d: %w", org, err)
	}
	if len(subtree) == 0 {
		return streams.Restriction{Empty: true}, nil
	}
	return streams.Restriction{OrgIds: subtree}, nil
}

func (s ParentOrg) CacheKey(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (string, error) {
	org, err := s.parentOrg(ctx, viewer)
	if err != nil {
		return "", err
	}
	return ParentOrgKey(org), nil
}

// Starred reads the viewer's starred activities straight from the star
// store. Its ids are never cached under a stream key.
type Starred struct{}

func (Starred) Kind() streams.StreamKind {
	return streams.KindStarred
}

func (Starred) Restriction(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (streams.Restriction, error) {
	return streams.Restriction{StarredBy: viewer}, nil
}

func (Starred) CacheKey(ctx context.Context, def streams.StreamDefinition, viewer streams.UserId) (string, error) {
	return "", fmt.Errorf("%w: starred streams have no id list cache", streams.ErrUnsupportedOperation)
}
