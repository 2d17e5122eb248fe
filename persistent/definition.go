package persistent

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
	"github.com/uptrace/bun"
)

type StreamDefinitionStore struct {
	DB *bun.DB
}

var _ streams.StreamDefinitionStore = (*StreamDefinitionStore)(nil)

func (s *StreamDefinitionStore) Save(ctx context.Context, def streams.StreamDefinition) (streams.StreamDefinition, error) {
	scopes := def.Scopes
	if scopes == nil {
		scopes = []streams.Scope{}
	}
	row := &StreamDefinition{
		Id:       def.Id,
		OwnerId:  int64(def.Owner),
		Name:     def.Name,
		Kind:     string(def.Kind),
		Scopes:   scopes,
		Keywords: def.Keywords,
	}
	db := idb(ctx, s.DB)
	if row.Id == 0 {
		_, err := db.NewInsert().
			Model(row).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return streams.StreamDefinition{}, fmt.Errorf("insert stream definition: %w", err)
		}
		return row.ToDomain(), nil
	}

	res, err := db.NewUpdate().
		Model(row).
		Column("name", "kind", "scopes", "keywords").
		Where("id=? AND owner_id=?", row.Id, row.OwnerId).
		Exec(ctx)
	if err != nil {
		return streams.StreamDefinition{}, fmt.Errorf("update stream definition: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return streams.StreamDefinition{}, streams.ErrStreamNotFound
	}
	return row.ToDomain(), nil
}

func (s *StreamDefinitionStore) ByIds(ctx context.Context, ids []int64) ([]streams.StreamDefinition, error) {
	if len(ids) == 0 {
		return []streams.StreamDefinition{}, nil
	}
	var rows []StreamDefinition
	err := idb(ctx, s.DB).NewSelect().
		Model(&rows).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select stream definitions: %w", err)
	}
	defs := make([]streams.StreamDefinition, len(rows))
	for i, r := range rows {
		defs[i] = r.ToDomain()
	}
	return defs, nil
}

func (s *StreamDefinitionStore) IdsByOwner(ctx context.Context, owner streams.UserId) ([]int64, error) {
	ids := []int64{}
	err := idb(ctx, s.DB).NewSelect().
		Model((*StreamDefinition)(nil)).
		Column("id").
		Where("owner_id=?", owner).
		Order("id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select stream definition ids: %w", err)
	}
	return ids, nil
}

func (s *StreamDefinitionStore) Referencing(ctx context.Context, streamId int64, orgs []streams.OrgId) ([]int64, error) {
	orgIds := make([]int64, len(orgs))
	for i, o := range orgs {
		orgIds[i] = int64(o)
	}
	ids := []int64{}
	q := idb(ctx, s.DB).NewSelect().
		Model((*StreamDefinition)(nil)).
		Column("id").
		Where("kind=?", streams.KindCustom).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where(`EXISTS (SELECT 1 FROM jsonb_array_elements(scopes) s
				WHERE s->>'type' IN (?, ?) AND (s->>'id')::bigint = ?)`,
				streams.ScopePerson, streams.ScopeGroup, streamId)
			if len(orgIds) > 0 {
				q = q.WhereOr(`EXISTS (SELECT 1 FROM jsonb_array_elements(scopes) s
					WHERE s->>'type' = ? AND (s->>'id')::bigint IN (?))`,
					streams.ScopeOrg, bun.In(orgIds))
			}
			return q
		}).
		Order("id")
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("select referencing definitions: %w", err)
	}
	return ids, nil
}
