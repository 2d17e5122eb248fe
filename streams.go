package streams

import (
	"context"
	"errors"
)

var (
	ErrActivityNotFound     = errors.New("activity not found")
	ErrCommentNotFound      = errors.New("comment not found")
	ErrStreamNotFound       = errors.New("stream not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrForbidden            = errors.New("forbidden")
	ErrMalformedRequest     = errors.New("malformed request")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

type UserId int64

type GroupId int64

type OrgId int64

type User struct {
	Id          UserId
	Name        string
	AvatarUrl   string
	StreamId    int64
	ParentOrgId OrgId
}

type UserStore interface {
	ById(ctx context.Context, userId UserId) (User, error)
}

// Transactor runs fn inside a single backing-store transaction. Stores called
// with the ctx handed to fn take part in that transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskQueue accepts work to be executed asynchronously after the caller
// returns.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
}
