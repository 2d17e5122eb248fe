package streams

import "context"

type FollowStore interface {
	// FollowedStreamIds returns the streams of every person and group viewer
	// follows.
	FollowedStreamIds(ctx context.Context, viewer UserId) ([]int64, error)

	Followers(ctx context.Context, streamId int64) ([]UserId, error)
}

type StarStore interface {
	Star(ctx context.Context, viewer UserId, activityId int64) error

	Unstar(ctx context.Context, viewer UserId, activityId int64) error

	// StarredIds returns up to limit starred activity ids lower than
	// beforeId, newest first. A beforeId lower or equal 0 starts at the
	// newest activity.
	StarredIds(ctx context.Context, viewer UserId, beforeId int64, limit int) ([]int64, error)

	StarredAmong(ctx context.Context, viewer UserId, ids []int64) (map[int64]bool, error)
}

type LikeStore interface {
	// Like reports whether a like was added.
	Like(ctx context.Context, viewer UserId, activityId int64) (bool, error)

	// Unlike reports whether a like was removed.
	Unlike(ctx context.Context, viewer UserId, activityId int64) (bool, error)

	LikedAmong(ctx context.Context, viewer UserId, ids []int64) (map[int64]bool, error)
}

type GroupStore interface {
	GroupScopeSource

	CoordinatedGroupIds(ctx context.Context, viewer UserId) ([]GroupId, error)
}

type OrgStore interface {
	// Subtree returns org and all of its descendants.
	Subtree(ctx context.Context, org OrgId) ([]OrgId, error)

	// Ancestors returns org followed by its parents up to the root.
	Ancestors(ctx context.Context, org OrgId) ([]OrgId, error)
}

type EntityRef struct {
	Type DestinationType
	Id   int64
}

type Identity struct {
	Name      string
	AvatarUrl string
}

// IdentityResolver supplies display names and avatars of people, groups and
// resources.
type IdentityResolver interface {
	Identities(ctx context.Context, refs []EntityRef) (map[EntityRef]Identity, error)
}

type DestinationStore interface {
	// Destination resolves the stream a person, group or resource posts to.
	Destination(ctx context.Context, ref EntityRef) (Destination, error)
}
