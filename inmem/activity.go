package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/buzkaaclicker/streams"
)

// ActivityStore keeps activities together with their comments, likes and
// stars so deletes cascade like they do in Postgres.
type ActivityStore struct {
	lastId     int64
	activities map[int64]streams.Activity
	comments   map[int64]streams.Comment
	likes      map[int64]map[streams.UserId]bool
	stars      map[streams.UserId]map[int64]time.Time
	mutex      sync.RWMutex

	// ByIdsCalls counts bulk reads, tests use it to check cache behavior.
	ByIdsCalls int
}

var (
	_ streams.ActivityStore         = (*ActivityStore)(nil)
	_ streams.CommentStore          = CommentStore{}
	_ streams.VisibilityRecordStore = (*ActivityStore)(nil)
	_ streams.IdStore               = (*ActivityStore)(nil)
	_ streams.LikeStore             = (*ActivityStore)(nil)
	_ streams.StarStore             = (*ActivityStore)(nil)
)

func NewActivityStore() *ActivityStore {
	return &ActivityStore{
		activities: map[int64]streams.Activity{},
		comments:   map[int64]streams.Comment{},
		likes:      map[int64]map[streams.UserId]bool{},
		stars:      map[streams.UserId]map[int64]time.Time{},
	}
}

func (s *ActivityStore) Insert(ctx context.Context, author streams.UserId, draft streams.Draft) (streams.Activity, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastId++
	activity := streams.Activity{
		Id:          s.lastId,
		CreatedAt:   time.Now().UTC(),
		Author:      author,
		Destination: draft.Destination,
		Verb:        draft.Verb,
		Properties:  draft.Properties,
	}
	s.activities[activity.Id] = activity
	return activity, nil
}

func (s *ActivityStore) ByIds(ctx context.Context, ids []int64) ([]streams.Activity, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.ByIdsCalls++

	found := make([]streams.Activity, 0, len(ids))
	for _, id := range ids {
		activity, ok := s.activities[id]
		if !ok {
			continue
		}
		var comments []streams.Comment
		for _, c := range s.comments {
			if c.ActivityId == id {
				comments = append(comments, c)
			}
		}
		activity.FirstComment, activity.LastComment, activity.CommentCount = streams.SummarizeComments(comments)
		activity.LikeCount = len(s.likes[id])
		found = append(found, activity)
	}
	return found, nil
}

func (s *ActivityStore) Delete(ctx context.Context, id int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.activities[id]; !ok {
		return streams.ErrActivityNotFound
	}
	delete(s.activities, id)
	delete(s.likes, id)
	for cid, c := range s.comments {
		if c.ActivityId == id {
			delete(s.comments, cid)
		}
	}
	for _, starred := range s.stars {
		delete(starred, id)
	}
	return nil
}

// AddLikes is a no-op, like counts are derived from the like set.
func (s *ActivityStore) AddLikes(ctx context.Context, id int64, delta int) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if _, ok := s.activities[id]; !ok {
		return streams.ErrActivityNotFound
	}
	return nil
}

// Comments returns the comment store sharing s's state.
func (s *ActivityStore) Comments() CommentStore {
	return CommentStore{s: s}
}

type CommentStore struct {
	s *ActivityStore
}

func (c CommentStore) Add(ctx context.Context, activityId int64, author streams.UserId, body string) (streams.Comment, error) {
	s := c.s
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.activities[activityId]; !ok {
		return streams.Comment{}, streams.ErrActivityNotFound
	}
	s.lastId++
	comment := streams.Comment{
		Id:         s.lastId,
		ActivityId: activityId,
		Author:     author,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	s.comments[comment.Id] = comment
	return comment, nil
}

func (c CommentStore) ById(ctx context.Context, id int64) (streams.Comment, error) {
	s := c.s
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return streams.Comment{}, streams.ErrCommentNotFound
	}
	return comment, nil
}

func (c CommentStore) Delete(ctx context.Context, id int64) error {
	s := c.s
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.comments[id]; !ok {
		return streams.ErrCommentNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *ActivityStore) VisibilityRecords(ctx context.Context, ids []int64) ([]streams.VisibilityRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	records := make([]streams.VisibilityRecord, 0, len(ids))
	for _, id := range ids {
		a, ok := s.activities[id]
		if !ok {
			continue
		}
		r := streams.VisibilityRecord{Id: id, Exists: true, Public: a.Destination.Public}
		if a.Destination.Type == streams.DestinationGroup {
			r.GroupId = streams.GroupId(a.Destination.EntityId)
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *ActivityStore) StreamIds(ctx context.Context, restriction streams.Restriction, beforeId int64, limit int) ([]int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if restriction.Empty {
		return []int64{}, nil
	}
	streamSet := make(map[int64]bool, len(restriction.StreamIds))
	for _, id := range restriction.StreamIds {
		streamSet[id] = true
	}
	orgSet := make(map[streams.OrgId]bool, len(restriction.OrgIds))
	for _, id := range restriction.OrgIds {
		orgSet[id] = true
	}

	ids := make([]int64, 0)
	for id, a := range s.activities {
		if beforeId > 0 && id >= beforeId {
			continue
		}
		switch {
		case restriction.All:
		case streamSet[a.Destination.StreamId], orgSet[a.Destination.ParentOrgId]:
		case restriction.StarredBy != 0 && !s.stars[restriction.StarredBy][id].IsZero():
		default:
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *ActivityStore) Like(ctx context.Context, viewer streams.UserId, activityId int64) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.activities[activityId]; !ok {
		return false, streams.ErrActivityNotFound
	}
	likes, ok := s.likes[activityId]
	if !ok {
		likes = map[streams.UserId]bool{}
		s.likes[activityId] = likes
	}
	if likes[viewer] {
		return false, nil
	}
	likes[viewer] = true
	return true, nil
}

func (s *ActivityStore) Unlike(ctx context.Context, viewer streams.UserId, activityId int64) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.likes[activityId][viewer] {
		return false, nil
	}
	delete(s.likes[activityId], viewer)
	return true, nil
}

func (s *ActivityStore) LikedAmong(ctx context.Context, viewer streams.UserId, ids []int64) (map[int64]bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	liked := make(map[int64]bool)
	for _, id := range ids {
		if s.likes[id][viewer] {
			liked[id] = true
		}
	}
	return liked, nil
}

func (s *ActivityStore) Star(ctx context.Context, viewer streams.UserId, activityId int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.activities[activityId]; !ok {
		return streams.ErrActivityNotFound
	}
	starred, ok := s.stars[viewer]
	if !ok {
		starred = map[int64]time.Time{}
		s.stars[viewer] = starred
	}
	if _, ok := starred[activityId]; !ok {
		starred[activityId] = time.Now()
	}
	return nil
}

func (s *ActivityStore) Unstar(ctx context.Context, viewer streams.UserId, activityId int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.stars[viewer], activityId)
	return nil
}

func (s *ActivityStore) StarredIds(ctx context.Context, viewer streams.UserId, beforeId int64, limit int) ([]int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]int64, 0, len(s.stars[viewer]))
	for id := range s.stars[viewer] {
		if beforeId <= 0 || id < beforeId {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *ActivityStore) StarredAmong(ctx context.Context, viewer streams.UserId, ids []int64) (map[int64]bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	starred := make(map[int64]bool)
	for _, id := range ids {
		if _, ok := s.stars[viewer][id]; ok {
			starred[id] = true
		}
	}
	return starred, nil
}
