package persistent

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/buzkaaclicker/streams"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:user"`

	Id          int64     `bun:",pk,autoincrement"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	StreamId    int64     `bun:",notnull"`
	ParentOrgId int64     `bun:",nullzero"`
	Profile     *Profile  `bun:"rel:has-one,join:id=user_id"`
}

func (u User) ToDomain() streams.User {
	user := streams.User{
		Id:          streams.UserId(u.Id),
		StreamId:    u.StreamId,
		ParentOrgId: streams.OrgId(u.ParentOrgId),
	}
	if u.Profile != nil {
		user.Name = u.Profile.Name
		user.AvatarUrl = u.Profile.AvatarUrl
	}
	return user
}

type Profile struct {
	bun.BaseModel `bun:"table:profile"`

	Id        int64  `bun:",pk,autoincrement"`
	UserId    int64  `bun:",unique,notnull"`
	Name      string `bun:",notnull"`
	AvatarUrl string
}

// Stream is the destination of a person, group or resource.
type Stream struct {
	bun.BaseModel `bun:"table:stream"`

	Id          int64  `bun:",pk,autoincrement"`
	Type        string `bun:",notnull,unique:stream_entity"`
	EntityId    int64  `bun:",notnull,unique:stream_entity"`
	Public      bool   `bun:",notnull"`
	ParentOrgId int64  `bun:",nullzero"`
}

func (s Stream) ToDomain() streams.Destination {
	return streams.Destination{
		Type:        streams.DestinationType(s.Type),
		StreamId:    s.Id,
		EntityId:    s.EntityId,
		Public:      s.Public,
		ParentOrgId: streams.OrgId(s.ParentOrgId),
	}
}

type Group struct {
	bun.BaseModel `bun:"table:group"`

	Id        int64  `bun:",pk,autoincrement"`
	Name      string `bun:",notnull"`
	AvatarUrl string
	OrgId     int64 `bun:",nullzero"`
}

type GroupMember struct {
	bun.BaseModel `bun:"table:group_member"`

	GroupId     int64 `bun:",pk"`
	UserId      int64 `bun:",pk"`
	Coordinator bool  `bun:",notnull"`
}

type Organization struct {
	bun.BaseModel `bun:"table:organization"`

	Id       int64  `bun:",pk,autoincrement"`
	ParentId int64  `bun:",nullzero"`
	Name     string `bun:",notnull"`
}

type OrgCoordinator struct {
	bun.BaseModel `bun:"table:org_coordinator"`

	OrgId  int64 `bun:",pk"`
	UserId int64 `bun:",pk"`
}

type Resource struct {
	bun.BaseModel `bun:"table:resource"`

	Id        int64  `bun:",pk,autoincrement"`
	Name      string `bun:",notnull"`
	AvatarUrl string
}

type Follow struct {
	bun.BaseModel `bun:"table:follow"`

	UserId   int64 `bun:",pk"`
	StreamId int64 `bun:",pk"`
}

type Activity struct {
	bun.BaseModel `bun:"table:activity"`

	Id              int64                  `bun:",pk,autoincrement"`
	CreatedAt       time.Time              `bun:",nullzero,notnull,default:current_timestamp"`
	AuthorId        int64                  `bun:",notnull"`
	StreamId        int64                  `bun:",notnull"`
	DestinationType string                 `bun:",notnull"`
	EntityId        int64                  `bun:",notnull"`
	Public          bool                   `bun:",notnull"`
	ParentOrgId     int64                  `bun:",nullzero"`
	Verb            string                 `bun:",notnull"`
	Properties      map[string]interface{} `bun:",notnull"`
	Keywords        string                 `bun:",notnull"`
	LikeCount       int                    `bun:",notnull"`
}

func (a Activity) ToDomain() streams.Activity {
	return streams.Activity{
		Id:        a.Id,
		CreatedAt: a.CreatedAt,
		Author:    streams.UserId(a.AuthorId),
		Destination: streams.Destination{
			Type:        streams.DestinationType(a.DestinationType),
			StreamId:    a.StreamId,
			EntityId:    a.EntityId,
			Public:      a.Public,
			ParentOrgId: streams.OrgId(a.ParentOrgId),
		},
		Verb:       a.Verb,
		Properties: a.Properties,
		LikeCount:  a.LikeCount,
	}
}

type Comment struct {
	bun.BaseModel `bun:"table:comment"`

	Id         int64     `bun:",pk,autoincrement"`
	ActivityId int64     `bun:",notnull"`
	AuthorId   int64     `bun:",notnull"`
	Body       string    `bun:",notnull"`
	CreatedAt  time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (c Comment) ToDomain() streams.Comment {
	return streams.Comment{
		Id:         c.Id,
		ActivityId: c.ActivityId,
		Author:     streams.UserId(c.AuthorId),
		Body:       c.Body,
		CreatedAt:  c.CreatedAt,
	}
}

type Star struct {
	bun.BaseModel `bun:"table:star"`

	UserId     int64     `bun:",pk"`
	ActivityId int64     `bun:",pk"`
	CreatedAt  time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

type Like struct {
	bun.BaseModel `bun:"table:like"`

	UserId     int64 `bun:",pk"`
	ActivityId int64 `bun:",pk"`
}

type StreamDefinition struct {
	bun.BaseModel `bun:"table:stream_definition"`

	Id       int64           `bun:",pk,autoincrement"`
	OwnerId  int64           `bun:",notnull"`
	Name     string          `bun:",notnull"`
	Kind     string          `bun:",notnull"`
	Scopes   []streams.Scope `bun:"type:jsonb,notnull"`
	Keywords string          `bun:",notnull"`
}

func (d StreamDefinition) ToDomain() streams.StreamDefinition {
	return streams.StreamDefinition{
		Id:       d.Id,
		Owner:    streams.UserId(d.OwnerId),
		Name:     d.Name,
		Kind:     streams.StreamKind(d.Kind),
		Scopes:   d.Scopes,
		Keywords: d.Keywords,
	}
}

func Models() []interface{} {
	return []interface{}{
		(*User)(nil),
		(*Profile)(nil),
		(*Stream)(nil),
		(*Group)(nil),
		(*GroupMember)(nil),
		(*Organization)(nil),
		(*OrgCoordinator)(nil),
		(*Resource)(nil),
		(*Follow)(nil),
		(*Activity)(nil),
		(*Comment)(nil),
		(*Star)(nil),
		(*Like)(nil),
		(*StreamDefinition)(nil),
	}
}

// CreateSchema creates missing tables of every model.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range Models() {
		modelType := reflect.TypeOf(model)
		logrus.WithField("model", modelType).Debugln("Creating table.")
		_, err := db.NewCreateTable().IfNotExists().Model(model).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create table of %s: %w", modelType, err)
		}
	}
	return nil
}

// Truncate empties every table, integration tests start from a clean state.
func Truncate(ctx context.Context, db *bun.DB) error {
	for _, model := range Models() {
		if _, err := db.NewTruncateTable().Model(model).Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("truncate %s: %w", reflect.TypeOf(model), err)
		}
	}
	return nil
}
