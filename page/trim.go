package page

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
)

// Trimmer drops the ids a viewer may not see.
type Trimmer struct {
	Records streams.VisibilityRecordStore
}

// Trim returns the ids visible within scope, in input order.
// Ids without a record are dropped.
func (t Trimmer) Trim(ctx context.Context, ids []int64, scope *VisibilityScope) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}

	records, err := t.Records.VisibilityRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("visibility records: %w", err)
	}
	byId := make(map[int64]streams.VisibilityRecord, len(records))
	for _, r := range records {
		byId[r.Id] = r
	}

	visible := make([]int64, 0, len(ids))
	for _, id := range ids {
		r, ok := byId[id]
		if !ok || !r.Exists {
			continue
		}
		if !r.Public {
			member, err := scope.Contains(ctx, r.GroupId)
			if err != nil {
				return nil, err
			}
			if !member {
				continue
			}
		}
		visible = append(visible, id)
	}
	trimmedTotal.Add(float64(len(ids) - len(visible)))
	return visible, nil
}
