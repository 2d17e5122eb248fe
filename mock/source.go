package mock

import (
	"context"

	"github.com/buzkaaclicker/streams"
)

type OrderedSource struct {
	OrderValue streams.Order

	FetchFn func(ctx context.Context, filter streams.Filter, viewer streams.UserId, count int) ([]int64, bool, error)
}

func (s OrderedSource) Order() streams.Order {
	return s.OrderValue
}

func (s OrderedSource) Fetch(ctx context.Context, filter streams.Filter, viewer streams.UserId, count int) ([]int64, bool, error) {
	return s.FetchFn(ctx, filter, viewer, count)
}

type VisibilityRecordStore struct {
	VisibilityRecordsFn func(ctx context.Context, ids []int64) ([]streams.VisibilityRecord, error)
}

func (s VisibilityRecordStore) VisibilityRecords(ctx context.Context, ids []int64) ([]streams.VisibilityRecord, error) {
	return s.VisibilityRecordsFn(ctx, ids)
}

type GroupStore struct {
	VisibleGroupIdsFn func(ctx context.Context, viewer streams.UserId) ([]streams.GroupId, error)

	CoordinatedGroupIdsFn func(ctx context.Context, viewer streams.UserId) ([]streams.GroupId, error)
}

func (s GroupStore) VisibleGroupIds(ctx context.Context, viewer streams.UserId) ([]streams.GroupId, error) {
	return s.VisibleGroupIdsFn(ctx, viewer)
}

func (s GroupStore) CoordinatedGroupIds(ctx context.Context, viewer streams.UserId) ([]streams.GroupId, error) {
	return s.CoordinatedGroupIdsFn(ctx, viewer)
}

type IdStore struct {
	StreamIdsFn func(ctx context.Context, restriction streams.Restriction, beforeId int64, limit int) ([]int64, error)
}

func (s IdStore) StreamIds(ctx context.Context, restriction streams.Restriction, beforeId int64, limit int) ([]int64, error) {
	return s.StreamIdsFn(ctx, restriction, beforeId, limit)
}
