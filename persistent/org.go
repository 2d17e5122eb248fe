package persistent

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
	"github.com/uptrace/bun"
)

const subtreeQuery = `
WITH RECURSIVE tree(id) AS (
	SELECT id FROM organization WHERE id IN (?)
	UNION
	SELECT o.id FROM organization o JOIN tree t ON o.parent_id = t.id
)
SELECT id FROM tree ORDER BY id`

type OrgStore struct {
	DB *bun.DB
}

var _ streams.OrgStore = (*OrgStore)(nil)

func (s *OrgStore) Subtree(ctx context.Context, org streams.OrgId) ([]streams.OrgId, error) {
	ids := []streams.OrgId{}
	err := idb(ctx, s.DB).NewRaw(subtreeQuery, bun.In([]streams.OrgId{org})).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select subtree of %d: %w", org, err)
	}
	return ids, nil
}

func (s *OrgStore) Ancestors(ctx context.Context, org streams.OrgId) ([]streams.OrgId, error) {
	var rows []struct {
		Id    int64
		Depth int
	}
	err := idb(ctx, s.DB).NewRaw(`
WITH RECURSIVE chain(id, parent_id, depth) AS (
	SELECT id, parent_id, 0 FROM organization WHERE id = ?
	UNION
	SELECT o.id, o.parent_id, c.depth + 1 FROM organization o JOIN chain c ON o.id = c.parent_id
)
SELECT id, depth FROM chain ORDER BY depth`, org).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select ancestors of %d: %w", org, err)
	}
	ids := make([]streams.OrgId, len(rows))
	for i, r := range rows {
		ids[i] = streams.OrgId(r.Id)
	}
	return ids, nil
}

// GroupStore answers group visibility and coordination. Coordinating an
// organization grants the same rights on every group below it.
type GroupStore struct {
	DB *bun.DB
}

var _ streams.GroupStore = (*GroupStore)(nil)

const coordinatedGroupsQuery = `
WITH RECURSIVE tree(id) AS (
	SELECT org_id FROM org_coordinator WHERE user_id = ?0
	UNION
	SELECT o.id FROM organization o JOIN tree t ON o.parent_id = t.id
)
SELECT group_id AS id FROM group_member WHERE user_id = ?0 AND coordinator
UNION
SELECT g.id FROM "group" g JOIN tree t ON g.org_id = t.id`

// VisibleGroupIds returns groups viewer is a member of, follows or
// coordinates.
func (s *GroupStore) VisibleGroupIds(ctx context.Context, viewer streams.UserId) ([]streams.GroupId, error) {
	ids := []streams.GroupId{}
	err := idb(ctx, s.DB).NewRaw(`
SELECT id FROM (`+coordinatedGroupsQuery+`
	UNION
	SELECT group_id FROM group_member WHERE user_id = ?0
	UNION
	SELECT s.entity_id FROM follow f JOIN stream s ON s.id = f.stream_id
	WHERE f.user_id = ?0 AND s.type = ?1
) visible ORDER BY id`, viewer, streams.DestinationGroup).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select visible groups of %d: %w", viewer, err)
	}
	return ids, nil
}

func (s *GroupStore) CoordinatedGroupIds(ctx context.Context, viewer streams.UserId) ([]streams.GroupId, error) {
	ids := []streams.GroupId{}
	err := idb(ctx, s.DB).NewRaw(`SELECT id FROM (`+coordinatedGroupsQuery+`) coordinated ORDER BY id`, viewer).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select coordinated groups of %d: %w", viewer, err)
	}
	return ids, nil
}
