package streams

import (
	"context"
	"time"
)

type DestinationType string

const (
	DestinationPerson   DestinationType = "person"
	DestinationGroup    DestinationType = "group"
	DestinationResource DestinationType = "resource"
)

// Destination is the stream an activity was posted to.
type Destination struct {
	Type        DestinationType `msgpack:"type"`
	StreamId    int64           `msgpack:"stream_id"`
	EntityId    int64           `msgpack:"entity_id"`
	Public      bool            `msgpack:"public"`
	ParentOrgId OrgId           `msgpack:"parent_org_id"`
}

type Comment struct {
	Id         int64     `msgpack:"id"`
	ActivityId int64     `msgpack:"activity_id"`
	Author     UserId    `msgpack:"author"`
	Body       string    `msgpack:"body"`
	CreatedAt  time.Time `msgpack:"created_at"`
}

// Activity is the hydrated, viewer-agnostic representation of a posted
// activity. Fields tagged msgpack:"-" are computed per viewer and never
// reach the cache.
type Activity struct {
	Id              int64                  `msgpack:"id"`
	CreatedAt       time.Time              `msgpack:"created_at"`
	Author          UserId                 `msgpack:"author"`
	AuthorName      string                 `msgpack:"author_name"`
	AuthorAvatar    string                 `msgpack:"author_avatar"`
	Destination     Destination            `msgpack:"destination"`
	DestinationName string                 `msgpack:"destination_name"`
	Verb            string                 `msgpack:"verb"`
	Properties      map[string]interface{} `msgpack:"properties"`
	FirstComment    *Comment               `msgpack:"first_comment"`
	LastComment     *Comment               `msgpack:"last_comment"`
	CommentCount    int                    `msgpack:"comment_count"`
	LikeCount       int                    `msgpack:"like_count"`

	Starred    bool      `msgpack:"-"`
	Liked      bool      `msgpack:"-"`
	Deletable  bool      `msgpack:"-"`
	ServerTime time.Time `msgpack:"-"`
}

// Draft is an activity about to be posted.
type Draft struct {
	Destination Destination
	Verb        string
	Properties  map[string]interface{}
	Keywords    string
}

// SummarizeComments returns the oldest and newest comment together with the
// total count. Comments may come in any order.
func SummarizeComments(comments []Comment) (first *Comment, last *Comment, count int) {
	for i := range comments {
		c := &comments[i]
		if first == nil || c.Id < first.Id {
			first = c
		}
		if last == nil || c.Id > last.Id {
			last = c
		}
	}
	if first != nil {
		f := *first
		first = &f
	}
	if last != nil {
		l := *last
		last = &l
	}
	return first, last, len(comments)
}

type ActivityStore interface {
	Insert(ctx context.Context, author UserId, draft Draft) (Activity, error)

	// ByIds returns the viewer-agnostic records found for ids, in no
	// particular order. Missing ids are omitted.
	ByIds(ctx context.Context, ids []int64) ([]Activity, error)

	Delete(ctx context.Context, id int64) error

	AddLikes(ctx context.Context, id int64, delta int) error
}

type CommentStore interface {
	Add(ctx context.Context, activityId int64, author UserId, body string) (Comment, error)

	ById(ctx context.Context, id int64) (Comment, error)

	Delete(ctx context.Context, id int64) error
}
