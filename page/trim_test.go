package page

import (
	"context"
	"errors"
	"testing"

	"github.com/buzkaaclicker/streams"
	"github.com/buzkaaclicker/streams/mock"
	"github.com/stretchr/testify/assert"
)

const (
	groupPublic   streams.GroupId = 1
	groupVisible  streams.GroupId = 2
	groupInvisible streams.GroupId = 3
)

type fixture struct {
	records      map[int64]streams.VisibilityRecord
	recordCalls  int
	visibleCalls int
}

func newFixture() *fixture {
	return &fixture{records: map[int64]streams.VisibilityRecord{}}
}

func (f *fixture) add(id int64, group streams.GroupId) {
	f.records[id] = streams.VisibilityRecord{Id: id, Exists: true, Public: group == groupPublic, GroupId: group}
}

func (f *fixture) trimmer() Trimmer {
	return Trimmer{Records: mock.VisibilityRecordStore{
		VisibilityRecordsFn: func(ctx context.Context, ids []int64) ([]streams.VisibilityRecord, error) {
			f.recordCalls++
			records := make([]streams.VisibilityRecord, 0, len(ids))
			// reversed to make sure the trimmer does not rely on store order
			for i := len(ids) - 1; i >= 0; i-- {
				if r, ok := f.records[ids[i]]; ok {
					records = append(records, r)
				}
			}
			return records, nil
		},
	}}
}

func (f *fixture) scope(viewer streams.UserId) *VisibilityScope {
	return NewVisibilityScope(viewer, mock.GroupStore{
		VisibleGroupIdsFn: func(ctx context.Context, v streams.UserId) ([]streams.GroupId, error) {
			f.visibleCalls++
			return []streams.GroupId{groupVisible}, nil
		},
	})
}

func TestTrimKeepsVisibleInOrder(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := newFixture()
	f.add(10, groupPublic)
	f.add(9, groupInvisible)
	f.add(8, groupVisible)
	f.add(6, groupVisible)
	f.records[5] = streams.VisibilityRecord{Id: 5, Exists: false, Public: true}
	f.add(4, groupPublic)

	trimmer := f.trimmer()
	scope := f.scope(7)

	ids := []int64{10, 9, 8, 7, 6, 5, 4}
	visible, err := trimmer.Trim(ctx, ids, scope)
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int64{10, 8, 6, 4}, visible)

	again, err := trimmer.Trim(ctx, visible, scope)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(visible, again)
	assert.Equal(1, f.visibleCalls, "scope should be resolved once per request")
}

func TestTrimEmptyInput(t *testing.T) {
	assert := assert.New(t)

	f := newFixture()
	visible, err := f.trimmer().Trim(context.Background(), nil, f.scope(1))
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int64{}, visible)
	assert.Equal(0, f.recordCalls)
}

func TestTrimPublicOnlyDoesNotResolveScope(t *testing.T) {
	assert := assert.New(t)

	f := newFixture()
	f.add(3, groupPublic)
	f.add(2, groupPublic)
	scope := f.scope(1)

	visible, err := f.trimmer().Trim(context.Background(), []int64{3, 2, 1}, scope)
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int64{3, 2}, visible)
	assert.Equal(0, f.visibleCalls)
	assert.False(scope.Resolved())
}

func TestTrimScopeError(t *testing.T) {
	assert := assert.New(t)

	f := newFixture()
	f.add(3, groupVisible)
	scopeErr := errors.New("groups down")
	scope := NewVisibilityScope(1, mock.GroupStore{
		VisibleGroupIdsFn: func(ctx context.Context, v streams.UserId) ([]streams.GroupId, error) {
			return nil, scopeErr
		},
	})

	_, err := f.trimmer().Trim(context.Background(), []int64{3}, scope)
	assert.ErrorIs(err, scopeErr)
}
