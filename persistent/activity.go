package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/buzkaaclicker/streams"
	"github.com/uptrace/bun"
)

type ActivityStore struct {
	DB *bun.DB
}

var (
	_ streams.ActivityStore         = (*ActivityStore)(nil)
	_ streams.VisibilityRecordStore = (*ActivityStore)(nil)
	_ streams.IdStore               = (*ActivityStore)(nil)
)

func (s *ActivityStore) Insert(ctx context.Context, author streams.UserId, draft streams.Draft) (streams.Activity, error) {
	properties := draft.Properties
	if properties == nil {
		properties = map[string]interface{}{}
	}
	activity := &Activity{
		AuthorId:        int64(author),
		StreamId:        draft.Destination.StreamId,
		DestinationType: string(draft.Destination.Type),
		EntityId:        draft.Destination.EntityId,
		Public:          draft.Destination.Public,
		ParentOrgId:     int64(draft.Destination.ParentOrgId),
		Verb:            draft.Verb,
		Properties:      properties,
		Keywords:        draft.Keywords,
	}
	_, err := idb(ctx, s.DB).NewInsert().
		Model(activity).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return streams.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	return activity.ToDomain(), nil
}

func (s *ActivityStore) ByIds(ctx context.Context, ids []int64) ([]streams.Activity, error) {
	if len(ids) == 0 {
		return []streams.Activity{}, nil
	}
	db := idb(ctx, s.DB)

	var rows []Activity
	err := db.NewSelect().
		Model(&rows).
		Where("activity.id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select activities: %w", err)
	}
	var comments []Comment
	err = db.NewSelect().
		Model(&comments).
		Where("comment.activity_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	byActivity := make(map[int64][]streams.Comment, len(rows))
	for _, c := range comments {
		byActivity[c.ActivityId] = append(byActivity[c.ActivityId], c.ToDomain())
	}

	activities := make([]streams.Activity, len(rows))
	for i, row := range rows {
		a := row.ToDomain()
		a.FirstComment, a.LastComment, a.CommentCount = streams.SummarizeComments(byActivity[row.Id])
		activities[i] = a
	}
	return activities, nil
}

func (s *ActivityStore) Delete(ctx context.Context, id int64) error {
	db := idb(ctx, s.DB)
	dependents := []interface{}{(*Comment)(nil), (*Star)(nil), (*Like)(nil)}
	for _, model := range dependents {
		_, err := db.NewDelete().
			Model(model).
			Where("activity_id=?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete dependents of %d: %w", id, err)
		}
	}
	res, err := db.NewDelete().
		Model((*Activity)(nil)).
		Where("id=?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return streams.ErrActivityNotFound
	}
	return nil
}

func (s *ActivityStore) AddLikes(ctx context.Context, id int64, delta int) error {
	res, err := idb(ctx, s.DB).NewUpdate().
		Model((*Activity)(nil)).
		Set("like_count = greatest(like_count + ?, 0)", delta).
		Where("id=?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update like count: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return streams.ErrActivityNotFound
	}
	return nil
}

func (s *ActivityStore) VisibilityRecords(ctx context.Context, ids []int64) ([]streams.VisibilityRecord, error) {
	if len(ids) == 0 {
		return []streams.VisibilityRecord{}, nil
	}
	var rows []struct {
		Id              int64
		Public          bool
		DestinationType string
		EntityId        int64
	}
	err := idb(ctx, s.DB).NewSelect().
		Model((*Activity)(nil)).
		Column("id", "public", "destination_type", "entity_id").
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select visibility records: %w", err)
	}

	records := make([]streams.VisibilityRecord, len(rows))
	for i, r := range rows {
		records[i] = streams.VisibilityRecord{Id: r.Id, Exists: true, Public: r.Public}
		if r.DestinationType == string(streams.DestinationGroup) {
			records[i].GroupId = streams.GroupId(r.EntityId)
		}
	}
	return records, nil
}

func (s *ActivityStore) StreamIds(ctx context.Context, restriction streams.Restriction,
	beforeId int64, limit int) ([]int64, error) {
	if restriction.Empty || limit <= 0 {
		return []int64{}, nil
	}
	q := idb(ctx, s.DB).NewSelect().
		Model((*Activity)(nil)).
		Column("id").
		OrderExpr("id DESC").
		Limit(limit)
	if beforeId > 0 {
		q = q.Where("id < ?", beforeId)
	}
	switch {
	case restriction.All:
	case restriction.StarredBy != 0:
		q = q.Where("id IN (SELECT activity_id FROM star WHERE user_id = ?)", restriction.StarredBy)
	case len(restriction.StreamIds) == 0 && len(restriction.OrgIds) == 0:
		return []int64{}, nil
	default:
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if len(restriction.StreamIds) > 0 {
				q = q.WhereOr("stream_id IN (?)", bun.In(restriction.StreamIds))
			}
			if len(restriction.OrgIds) > 0 {
				q = q.WhereOr("parent_org_id IN (?)", bun.In(restriction.OrgIds))
			}
			return q
		})
	}

	ids := []int64{}
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("select stream ids: %w", err)
	}
	return ids, nil
}

type CommentStore struct {
	DB *bun.DB
}

var _ streams.CommentStore = (*CommentStore)(nil)

func (s *CommentStore) Add(ctx context.Context, activityId int64, author streams.UserId, body string) (streams.Comment, error) {
	db := idb(ctx, s.DB)
	exists, err := db.NewSelect().
		Model((*Activity)(nil)).
		Where("id=?", activityId).
		Exists(ctx)
	if err != nil {
		return streams.Comment{}, fmt.Errorf("activity exists: %w", err)
	}
	if !exists {
		return streams.Comment{}, streams.ErrActivityNotFound
	}

	comment := &Comment{ActivityId: activityId, AuthorId: int64(author), Body: body}
	_, err = db.NewInsert().
		Model(comment).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return streams.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return comment.ToDomain(), nil
}

func (s *CommentStore) ById(ctx context.Context, id int64) (streams.Comment, error) {
	comment := new(Comment)
	err := idb(ctx, s.DB).NewSelect().
		Model(comment).
		Where("id=?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return streams.Comment{}, streams.ErrCommentNotFound
		}
		return streams.Comment{}, fmt.Errorf("select comment: %w", err)
	}
	return comment.ToDomain(), nil
}

func (s *CommentStore) Delete(ctx context.Context, id int64) error {
	res, err := idb(ctx, s.DB).NewDelete().
		Model((*Comment)(nil)).
		Where("id=?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return streams.ErrCommentNotFound
	}
	return nil
}
