package streams

import "context"

type SortMode int

const (
	SortById SortMode = iota
	SortCustom
)

const (
	SortByDate     = "date"
	SortByLikes    = "likes"
	SortByComments = "comments"
)

// PageRequest asks for at most Size ids strictly between MinId and MaxId.
// A zero bound is unbounded.
type PageRequest struct {
	Size  int
	MinId int64
	MaxId int64
	Sort  SortMode
}

func (r PageRequest) InBounds(id int64) bool {
	if r.MinId > 0 && id <= r.MinId {
		return false
	}
	if r.MaxId > 0 && id >= r.MaxId {
		return false
	}
	return true
}

// Filter is what ordered sources see of a feed query.
type Filter struct {
	Stream   *ResolvedStream
	Keywords string
	SortBy   string
	MinId    int64
	MaxId    int64
}

type Order int

const (
	OrderIdDescending Order = iota
	OrderCallerSort
)

// OrderedSource returns up to count ids matching filter. ok is false when
// the source does not apply to filter at all, which differs from applying
// and finding nothing.
type OrderedSource interface {
	Order() Order
	Fetch(ctx context.Context, filter Filter, viewer UserId, count int) (ids []int64, ok bool, err error)
}

// VisibilityRecord is the lightweight view of an activity needed to decide
// whether a viewer may see it.
type VisibilityRecord struct {
	Id      int64
	Exists  bool
	Public  bool
	GroupId GroupId
}

type VisibilityRecordStore interface {
	VisibilityRecords(ctx context.Context, ids []int64) ([]VisibilityRecord, error)
}

// GroupScopeSource lists the non-public groups a viewer may see activity
// for: groups followed, groups coordinated and groups under an organization
// the viewer coordinates.
type GroupScopeSource interface {
	VisibleGroupIds(ctx context.Context, viewer UserId) ([]GroupId, error)
}
