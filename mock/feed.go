package mock

import (
	"context"

	"github.com/buzkaaclicker/streams"
)

type Feed struct {
	PageFn     func(ctx context.Context, viewer streams.UserId, req streams.FeedRequest) ([]streams.Activity, error)
	ActivityFn func(ctx context.Context, viewer streams.UserId, id int64) (streams.Activity, error)

	PostFn   func(ctx context.Context, viewer streams.UserId, to streams.EntityRef, draft streams.Draft) (streams.Activity, error)
	DeleteFn func(ctx context.Context, viewer streams.UserId, id int64) error

	CommentFn       func(ctx context.Context, viewer streams.UserId, activityId int64, body string) (streams.Comment, error)
	DeleteCommentFn func(ctx context.Context, viewer streams.UserId, commentId int64) error

	LikeFn   func(ctx context.Context, viewer streams.UserId, activityId int64) error
	UnlikeFn func(ctx context.Context, viewer streams.UserId, activityId int64) error
	StarFn   func(ctx context.Context, viewer streams.UserId, activityId int64) error
	UnstarFn func(ctx context.Context, viewer streams.UserId, activityId int64) error

	SaveStreamFn func(ctx context.Context, viewer streams.UserId, def streams.StreamDefinition) (streams.StreamDefinition, error)
	StreamsFn    func(ctx context.Context, viewer streams.UserId) ([]streams.StreamDefinition, error)
}

func (f Feed) Page(ctx context.Context, viewer streams.UserId, req streams.FeedRequest) ([]streams.Activity, error) {
	return f.PageFn(ctx, viewer, req)
}

func (f Feed) Activity(ctx context.Context, viewer streams.UserId, id int64) (streams.Activity, error) {
	return f.ActivityFn(ctx, viewer, id)
}

func (f Feed) Post(ctx context.Context, viewer streams.UserId, to streams.EntityRef, draft streams.Draft) (streams.Activity, error) {
	return f.PostFn(ctx, viewer, to, draft)
}

func (f Feed) Delete(ctx context.Context, viewer streams.UserId, id int64) error {
	return f.DeleteFn(ctx, viewer, id)
}

func (f Feed) Comment(ctx context.Context, viewer streams.UserId, activityId int64, body string) (streams.Comment, error) {
	return f.CommentFn(ctx, viewer, activityId, body)
}

func (f Feed) DeleteComment(ctx context.Context, viewer streams.UserId, commentId int64) error {
	return f.DeleteCommentFn(ctx, viewer, commentId)
}

func (f Feed) Like(ctx context.Context, viewer streams.UserId, activityId int64) error {
	return f.LikeFn(ctx, viewer, activityId)
}

func (f Feed) Unlike(ctx context.Context, viewer streams.UserId, activityId int64) error {
	return f.UnlikeFn(ctx, viewer, activityId)
}

func (f Feed) Star(ctx context.Context, viewer streams.UserId, activityId int64) error {
	return f.StarFn(ctx, viewer, activityId)
}

func (f Feed) Unstar(ctx context.Context, viewer streams.UserId, activityId int64) error {
	return f.UnstarFn(ctx, viewer, activityId)
}

func (f Feed) SaveStream(ctx context.Context, viewer streams.UserId, def streams.StreamDefinition) (streams.StreamDefinition, error) {
	return f.SaveStreamFn(ctx, viewer, def)
}

func (f Feed) Streams(ctx context.Context, viewer streams.UserId) ([]streams.StreamDefinition, error) {
	return f.StreamsFn(ctx, viewer)
}
