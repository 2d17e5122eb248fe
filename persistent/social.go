package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/buzkaaclicker/streams"
	"github.com/uptrace/bun"
)

type UserStore struct {
	DB *bun.DB
}

var _ streams.UserStore = (*UserStore)(nil)

func (s *UserStore) ById(ctx context.Context, userId streams.UserId) (streams.User, error) {
	user := new(User)
	err := idb(ctx, s.DB).NewSelect().
		Model(user).
		Where(`"user"."id"=?`, userId).
		Relation("Profile").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return streams.User{}, streams.ErrUserNotFound
		}
		return streams.User{}, fmt.Errorf("select user: %w", err)
	}
	return user.ToDomain(), nil
}

type FollowStore struct {
	DB *bun.DB
}

var _ streams.FollowStore = (*FollowStore)(nil)

func (s *FollowStore) FollowedStreamIds(ctx context.Context, viewer streams.UserId) ([]int64, error) {
	ids := []int64{}
	err := idb(ctx, s.DB).NewSelect().
		Model((*Follow)(nil)).
		Column("stream_id").
		Where("user_id=?", viewer).
		Order("stream_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select followed streams: %w", err)
	}
	return ids, nil
}

func (s *FollowStore) Followers(ctx context.Context, streamId int64) ([]streams.UserId, error) {
	ids := []streams.UserId{}
	err := idb(ctx, s.DB).NewSelect().
		Model((*Follow)(nil)).
		Column("user_id").
		Where("stream_id=?", streamId).
		Order("user_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select followers: %w", err)
	}
	return ids, nil
}

type StarStore struct {
	DB *bun.DB
}

var _ streams.StarStore = (*StarStore)(nil)

func (s *StarStore) Star(ctx context.Context, viewer streams.UserId, activityId int64) error {
	_, err := idb(ctx, s.DB).NewInsert().
		Model(&Star{UserId: int64(viewer), ActivityId: activityId}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert star: %w", err)
	}
	return nil
}

func (s *StarStore) Unstar(ctx context.Context, viewer streams.UserId, activityId int64) error {
	_, err := idb(ctx, s.DB).NewDelete().
		Model((*Star)(nil)).
		Where("user_id=? AND activity_id=?", viewer, activityId).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete star: %w", err)
	}
	return nil
}

func (s *StarStore) StarredIds(ctx context.Context, viewer streams.UserId, beforeId int64, limit int) ([]int64, error) {
	ids := []int64{}
	if limit <= 0 {
		return ids, nil
	}
	q := idb(ctx, s.DB).NewSelect().
		Model((*Star)(nil)).
		Column("activity_id").
		Where("user_id=?", viewer).
		OrderExpr("activity_id DESC").
		Limit(limit)
	if beforeId > 0 {
		q = q.Where("activity_id < ?", beforeId)
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("select starred ids: %w", err)
	}
	return ids, nil
}

func (s *StarStore) StarredAmong(ctx context.Context, viewer streams.UserId, ids []int64) (map[int64]bool, error) {
	return among(ctx, idb(ctx, s.DB).NewSelect().Model((*Star)(nil)), viewer, ids)
}

type LikeStore struct {
	DB *bun.DB
}

var _ streams.LikeStore = (*LikeStore)(nil)

func (s *LikeStore) Like(ctx context.Context, viewer streams.UserId, activityId int64) (bool, error) {
	res, err := idb(ctx, s.DB).NewInsert().
		Model(&Like{UserId: int64(viewer), ActivityId: activityId}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *LikeStore) Unlike(ctx context.Context, viewer streams.UserId, activityId int64) (bool, error) {
	res, err := idb(ctx, s.DB).NewDelete().
		Model((*Like)(nil)).
		Where("user_id=? AND activity_id=?", viewer, activityId).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *LikeStore) LikedAmong(ctx context.Context, viewer streams.UserId, ids []int64) (map[int64]bool, error) {
	return among(ctx, idb(ctx, s.DB).NewSelect().Model((*Like)(nil)), viewer, ids)
}

// among reports which of ids the viewer has a row for in the table of q.
func among(ctx context.Context, q *bun.SelectQuery, viewer streams.UserId, ids []int64) (map[int64]bool, error) {
	found := map[int64]bool{}
	if len(ids) == 0 {
		return found, nil
	}
	var matching []int64
	err := q.Column("activity_id").
		Where("user_id=?", viewer).
		Where("activity_id IN (?)", bun.In(ids)).
		Scan(ctx, &matching)
	if err != nil {
		return nil, fmt.Errorf("select among: %w", err)
	}
	for _, id := range matching {
		found[id] = true
	}
	return found, nil
}

type DestinationStore struct {
	DB *bun.DB
}

var _ streams.DestinationStore = (*DestinationStore)(nil)

func (s *DestinationStore) Destination(ctx context.Context, ref streams.EntityRef) (streams.Destination, error) {
	stream := new(Stream)
	err := idb(ctx, s.DB).NewSelect().
		Model(stream).
		Where("type=? AND entity_id=?", ref.Type, ref.Id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return streams.Destination{}, streams.ErrStreamNotFound
		}
		return streams.Destination{}, fmt.Errorf("select stream: %w", err)
	}
	return stream.ToDomain(), nil
}

type IdentityResolver struct {
	DB *bun.DB
}

var _ streams.IdentityResolver = (*IdentityResolver)(nil)

// Identities reads people from profiles and groups and resources from their
// own tables. Unknown refs are left out.
func (r *IdentityResolver) Identities(ctx context.Context, refs []streams.EntityRef) (map[streams.EntityRef]streams.Identity, error) {
	byType := map[streams.DestinationType][]int64{}
	for _, ref := range refs {
		byType[ref.Type] = append(byType[ref.Type], ref.Id)
	}

	identities := make(map[streams.EntityRef]streams.Identity, len(refs))
	db := idb(ctx, r.DB)
	for t, ids := range byType {
		var rows []struct {
			Id        int64
			Name      string
			AvatarUrl string
		}
		q := db.NewSelect()
		switch t {
		case streams.DestinationPerson:
			q = q.Model((*Profile)(nil)).ColumnExpr("user_id AS id, name, avatar_url").Where("user_id IN (?)", bun.In(ids))
		case streams.DestinationGroup:
			q = q.Model((*Group)(nil)).Column("id", "name", "avatar_url").Where("id IN (?)", bun.In(ids))
		case streams.DestinationResource:
			q = q.Model((*Resource)(nil)).Column("id", "name", "avatar_url").Where("id IN (?)", bun.In(ids))
		default:
			continue
		}
		if err := q.Scan(ctx, &rows); err != nil {
			return nil, fmt.Errorf("select %s identities: %w", t, err)
		}
		for _, row := range rows {
			identities[streams.EntityRef{Type: t, Id: row.Id}] = streams.Identity{Name: row.Name, AvatarUrl: row.AvatarUrl}
		}
	}
	return identities, nil
}
