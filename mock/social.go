package mock

import (
	"context"

	"github.com/buzkaaclicker/streams"
)

type UserStore struct {
	ByIdFn func(ctx context.Context, userId streams.UserId) (streams.User, error)
}

func (s UserStore) ById(ctx context.Context, userId streams.UserId) (streams.User, error) {
	return s.ByIdFn(ctx, userId)
}

type FollowStore struct {
	FollowedStreamIdsFn func(ctx context.Context, viewer streams.UserId) ([]int64, error)

	FollowersFn func(ctx context.Context, streamId int64) ([]streams.UserId, error)
}

func (s FollowStore) FollowedStreamIds(ctx context.Context, viewer streams.UserId) ([]int64, error) {
	return s.FollowedStreamIdsFn(ctx, viewer)
}

func (s FollowStore) Followers(ctx context.Context, streamId int64) ([]streams.UserId, error) {
	return s.FollowersFn(ctx, streamId)
}

type OrgStore struct {
	SubtreeFn func(ctx context.Context, org streams.OrgId) ([]streams.OrgId, error)

	AncestorsFn func(ctx context.Context, org streams.OrgId) ([]streams.OrgId, error)
}

func (s OrgStore) Subtree(ctx context.Context, org streams.OrgId) ([]streams.OrgId, error) {
	return s.SubtreeFn(ctx, org)
}

func (s OrgStore) Ancestors(ctx context.Context, org streams.OrgId) ([]streams.OrgId, error) {
	return s.AncestorsFn(ctx, org)
}

type StarStore struct {
	StarFn func(ctx context.Context, viewer streams.UserId, activityId int64) error

	UnstarFn func(ctx context.Context, viewer streams.UserId, activityId int64) error

	StarredIdsFn func(ctx context.Context, viewer streams.UserId, beforeId int64, limit int) ([]int64, error)

	StarredAmongFn func(ctx context.Context, viewer streams.UserId, ids []int64) (map[int64]bool, error)
}

func (s StarStore) Star(ctx context.Context, viewer streams.UserId, activityId int64) error {
	return s.StarFn(ctx, viewer, activityId)
}

func (s StarStore) Unstar(ctx context.Context, viewer streams.UserId, activityId int64) error {
	return s.UnstarFn(ctx, viewer, activityId)
}

func (s StarStore) StarredIds(ctx context.Context, viewer streams.UserId, beforeId int64, limit int) ([]int64, error) {
	return s.StarredIdsFn(ctx, viewer, beforeId, limit)
}

func (s StarStore) StarredAmong(ctx context.Context, viewer streams.UserId, ids []int64) (map[int64]bool, error) {
	return s.StarredAmongFn(ctx, viewer, ids)
}

type LikeStore struct {
	LikeFn func(ctx context.Context, viewer streams.UserId, activityId int64) (bool, error)

	UnlikeFn func(ctx context.Context, viewer streams.UserId, activityId int64) (bool, error)

	LikedAmongFn func(ctx context.Context, viewer streams.UserId, ids []int64) (map[int64]bool, error)
}

func (s LikeStore) Like(ctx context.Context, viewer streams.UserId, activityId int64) (bool, error) {
	return s.LikeFn(ctx, viewer, activityId)
}

func (s LikeStore) Unlike(ctx context.Context, viewer streams.UserId, activityId int64) (bool, error) {
	return s.UnlikeFn(ctx, viewer, activityId)
}

func (s LikeStore) LikedAmong(ctx context.Context, viewer streams.UserId, ids []int64) (map[int64]bool, error) {
	return s.LikedAmongFn(ctx, viewer, ids)
}

type IdentityResolver struct {
	IdentitiesFn func(ctx context.Context, refs []streams.EntityRef) (map[streams.EntityRef]streams.Identity, error)
}

func (r IdentityResolver) Identities(ctx context.Context, refs []streams.EntityRef) (map[streams.EntityRef]streams.Identity, error) {
	return r.IdentitiesFn(ctx, refs)
}

type StreamDefinitionStore struct {
	SaveFn func(ctx context.Context, def streams.StreamDefinition) (streams.StreamDefinition, error)

	ByIdsFn func(ctx context.Context, ids []int64) ([]streams.StreamDefinition, error)

	IdsByOwnerFn func(ctx context.Context, owner streams.UserId) ([]int64, error)

	ReferencingFn func(ctx context.Context, streamId int64, orgs []streams.OrgId) ([]int64, error)
}

func (s StreamDefinitionStore) Save(ctx context.Context, def streams.StreamDefinition) (streams.StreamDefinition, error) {
	return s.SaveFn(ctx, def)
}

func (s StreamDefinitionStore) ByIds(ctx context.Context, ids []int64) ([]streams.StreamDefinition, error) {
	return s.ByIdsFn(ctx, ids)
}

func (s StreamDefinitionStore) IdsByOwner(ctx context.Context, owner streams.UserId) ([]int64, error) {
	return s.IdsByOwnerFn(ctx, owner)
}

func (s StreamDefinitionStore) Referencing(ctx context.Context, streamId int64, orgs []streams.OrgId) ([]int64, error) {
	return s.ReferencingFn(ctx, streamId, orgs)
}

type DestinationStore struct {
	DestinationFn func(ctx context.Context, ref streams.EntityRef) (streams.Destination, error)
}

func (s DestinationStore) Destination(ctx context.Context, ref streams.EntityRef) (streams.Destination, error) {
	return s.DestinationFn(ctx, ref)
}
