package streams

import "context"

type StreamKind string

const (
	KindAll       StreamKind = "all"
	KindCustom    StreamKind = "custom"
	KindFollowed  StreamKind = "followed"
	KindParentOrg StreamKind = "parentorg"
	KindStarred   StreamKind = "starred"
)

func (k StreamKind) Valid() bool {
	switch k {
	case KindAll, KindCustom, KindFollowed, KindParentOrg, KindStarred:
		return true
	default:
		return false
	}
}

type ScopeType string

const (
	ScopePerson ScopeType = "person"
	ScopeGroup  ScopeType = "group"
	ScopeOrg    ScopeType = "org"
)

// Scope is one entry of a custom stream. Person and group scopes carry a
// stream id, organization scopes carry an org id.
type Scope struct {
	Type ScopeType `msgpack:"type" json:"type"`
	Id   int64     `msgpack:"id" json:"id"`
}

// StreamDefinition describes which activities appear in a feed. Id is zero
// for definitions built inline from a request. A definition with keywords
// is a saved search.
type StreamDefinition struct {
	Id       int64      `msgpack:"id"`
	Owner    UserId     `msgpack:"owner"`
	Name     string     `msgpack:"name"`
	Kind     StreamKind `msgpack:"kind"`
	Scopes   []Scope    `msgpack:"scopes"`
	Keywords string     `msgpack:"keywords"`
}

// Restriction is the backing-store filter a stream kind resolves to.
type Restriction struct {
	// All means no restriction at all.
	All bool
	// Empty short-circuits to zero results without querying.
	Empty bool

	StreamIds []int64
	// OrgIds is an already expanded set of organizations; activities whose
	// destination belongs to any of them match.
	OrgIds []OrgId

	StarredBy UserId
}

// ResolvedStream is a stream definition after restriction lookup for one
// viewer. An empty CacheKey means the id list is read straight from the store.
type ResolvedStream struct {
	Kind        StreamKind
	Restriction Restriction
	CacheKey    string
}

type StreamDefinitionStore interface {
	Save(ctx context.Context, def StreamDefinition) (StreamDefinition, error)

	// ByIds returns the definitions found for ids, in no particular order.
	ByIds(ctx context.Context, ids []int64) ([]StreamDefinition, error)

	IdsByOwner(ctx context.Context, owner UserId) ([]int64, error)

	// Referencing returns ids of custom definitions naming streamId or any
	// of orgs in their scopes.
	Referencing(ctx context.Context, streamId int64, orgs []OrgId) ([]int64, error)
}

// IdStore answers id lists for restrictions, newest first.
type IdStore interface {
	// StreamIds returns up to limit ids lower than beforeId. A beforeId lower
	// or equal 0 starts at the newest activity.
	StreamIds(ctx context.Context, restriction Restriction, beforeId int64, limit int) ([]int64, error)
}
