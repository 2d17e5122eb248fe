package persistent

import (
	"context"
	"fmt"
	"strings"

	"github.com/buzkaaclicker/streams"
	"github.com/uptrace/bun"
)

// SearchSource is the caller-sorted source of activity ids. It applies to
// keyword queries and to any sort other than date.
type SearchSource struct {
	DB *bun.DB
}

var _ streams.OrderedSource = (*SearchSource)(nil)

func (s *SearchSource) Order() streams.Order {
	return streams.OrderCallerSort
}

func (s *SearchSource) Fetch(ctx context.Context, filter streams.Filter, viewer streams.UserId,
	count int) ([]int64, bool, error) {
	terms := strings.Fields(filter.Keywords)
	byDate := filter.SortBy == "" || filter.SortBy == streams.SortByDate
	if len(terms) == 0 && byDate {
		return nil, false, nil
	}
	ids := []int64{}
	if count <= 0 {
		return ids, true, nil
	}

	q := idb(ctx, s.DB).NewSelect().
		Model((*Activity)(nil)).
		Column("activity.id").
		Limit(count)
	for _, term := range terms {
		q = q.Where("activity.keywords ILIKE ?", "%"+escapeLike(term)+"%")
	}
	switch filter.SortBy {
	case streams.SortByLikes:
		q = q.OrderExpr("activity.like_count DESC, activity.id DESC")
	case streams.SortByComments:
		q = q.OrderExpr("(SELECT count(*) FROM comment c WHERE c.activity_id = activity.id) DESC, activity.id DESC")
	default:
		q = q.OrderExpr("activity.id DESC")
		if filter.MaxId > 0 {
			q = q.Where("activity.id < ?", filter.MaxId)
		}
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, false, fmt.Errorf("search activity ids: %w", err)
	}
	return ids, true, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
