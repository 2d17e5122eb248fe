package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/buzkaaclicker/streams"
	"github.com/buzkaaclicker/streams/inmem"
	"github.com/buzkaaclicker/streams/mock"
	"github.com/buzkaaclicker/streams/page"
	"github.com/buzkaaclicker/streams/stream"
	"github.com/stretchr/testify/assert"
)

const (
	alice streams.UserId = 1
	bob   streams.UserId = 2

	groupPublic  int64 = 1
	groupPrivate int64 = 2
	groupOrg           = streams.OrgId(7)
)

type fixture struct {
	service    *Service
	cache      *inmem.Cache
	activities *inmem.ActivityStore
	tasks      *inmem.TaskQueue
}

func personRef(u streams.UserId) streams.EntityRef {
	return streams.EntityRef{Type: streams.DestinationPerson, Id: int64(u)}
}

func groupRef(id int64) streams.EntityRef {
	return streams.EntityRef{Type: streams.DestinationGroup, Id: id}
}

// definitionStore is a map backed mock.StreamDefinitionStore.
func definitionStore() mock.StreamDefinitionStore {
	var mutex sync.Mutex
	var lastId int64
	defs := map[int64]streams.StreamDefinition{}
	return mock.StreamDefinitionStore{
		SaveFn: func(ctx context.Context, def streams.StreamDefinition) (streams.StreamDefinition, error) {
			mutex.Lock()
			defer mutex.Unlock()
			if def.Id == 0 {
				lastId++
				def.Id = lastId
			}
			defs[def.Id] = def
			return def, nil
		},
		ByIdsFn: func(ctx context.Context, ids []int64) ([]streams.StreamDefinition, error) {
			mutex.Lock()
			defer mutex.Unlock()
			found := []streams.StreamDefinition{}
			for _, id := range ids {
				if d, ok := defs[id]; ok {
					found = append(found, d)
				}
			}
			return found, nil
		},
		IdsByOwnerFn: func(ctx context.Context, owner streams.UserId) ([]int64, error) {
			mutex.Lock()
			defer mutex.Unlock()
			ids := []int64{}
			for id := int64(1); id <= lastId; id++ {
				if d, ok := defs[id]; ok && d.Owner == owner {
					ids = append(ids, id)
				}
			}
			return ids, nil
		},
		ReferencingFn: func(ctx context.Context, streamId int64, orgs []streams.OrgId) ([]int64, error) {
			return nil, nil
		},
	}
}

func newFixture(t *testing.T) *fixture {
	cache, err := inmem.NewCache(1000)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(cache.Close)
	activities := inmem.NewActivityStore()
	tasks := &inmem.TaskQueue{}

	groups := mock.GroupStore{
		VisibleGroupIdsFn: func(ctx context.Context, viewer streams.UserId) ([]streams.GroupId, error) {
			if viewer == alice {
				return []streams.GroupId{streams.GroupId(groupPrivate)}, nil
			}
			return nil, nil
		},
		CoordinatedGroupIdsFn: func(ctx context.Context, viewer streams.UserId) ([]streams.GroupId, error) {
			if viewer == alice {
				return []streams.GroupId{streams.GroupId(groupPrivate)}, nil
			}
			return nil, nil
		},
	}
	orgs := mock.OrgStore{
		SubtreeFn: func(ctx context.Context, org streams.OrgId) ([]streams.OrgId, error) {
			return []streams.OrgId{org}, nil
		},
		AncestorsFn: func(ctx context.Context, org streams.OrgId) ([]streams.OrgId, error) {
			return []streams.OrgId{org, 1}, nil
		},
	}
	follows := mock.FollowStore{
		FollowedStreamIdsFn: func(ctx context.Context, viewer streams.UserId) ([]int64, error) {
			if viewer == bob {
				return []int64{200 + groupPublic}, nil
			}
			return nil, nil
		},
		FollowersFn: func(ctx context.Context, streamId int64) ([]streams.UserId, error) {
			if streamId == 200+groupPublic {
				return []streams.UserId{bob}, nil
			}
			return nil, nil
		},
	}
	users := mock.UserStore{
		ByIdFn: func(ctx context.Context, userId streams.UserId) (streams.User, error) {
			return streams.User{Id: userId, StreamId: 100 + int64(userId), ParentOrgId: groupOrg}, nil
		},
	}
	destinations := mock.DestinationStore{
		DestinationFn: func(ctx context.Context, ref streams.EntityRef) (streams.Destination, error) {
			switch ref.Type {
			case streams.DestinationPerson:
				return streams.Destination{Type: ref.Type, StreamId: 100 + ref.Id, EntityId: ref.Id, Public: true}, nil
			case streams.DestinationGroup:
				return streams.Destination{Type: ref.Type, StreamId: 200 + ref.Id, EntityId: ref.Id,
					Public: ref.Id == groupPublic, ParentOrgId: groupOrg}, nil
			}
			return streams.Destination{}, streams.ErrStreamNotFound
		},
	}
	identities := mock.IdentityResolver{
		IdentitiesFn: func(ctx context.Context, refs []streams.EntityRef) (map[streams.EntityRef]streams.Identity, error) {
			found := make(map[streams.EntityRef]streams.Identity, len(refs))
			for _, ref := range refs {
				found[ref] = streams.Identity{
					Name:      fmt.Sprintf("%s %d", ref.Type, ref.Id),
					AvatarUrl: fmt.Sprintf("/avatars/%s/%d.png", ref.Type, ref.Id),
				}
			}
			return found, nil
		},
	}

	loader := &stream.Loader{Cache: cache, Ids: activities, Stars: activities}
	service := &Service{
		Cache: cache,
		Tx:    inmem.Transactor{},
		Tasks: tasks,
		Registry: stream.NewRegistry(
			stream.All{},
			stream.Custom{Orgs: orgs},
			stream.Followed{Follows: follows},
			stream.ParentOrg{Users: users, Orgs: orgs},
			stream.Starred{},
		),
		Resolver: &page.Resolver{
			Sources: []streams.OrderedSource{loader},
			Trimmer: page.Trimmer{Records: activities},
		},
		Activities:   activities,
		Comments:     activities.Comments(),
		Likes:        activities,
		Stars:        activities,
		Groups:       groups,
		Orgs:         orgs,
		Follows:      follows,
		Definitions:  definitionStore(),
		Destinations: destinations,
		Identities:   identities,
	}
	return &fixture{service: service, cache: cache, activities: activities, tasks: tasks}
}

func (f *fixture) post(t *testing.T, viewer streams.UserId, to streams.EntityRef) streams.Activity {
	a, err := f.service.Post(context.Background(), viewer, to, streams.Draft{Verb: "post"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.tasks.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}
	return a
}

func ids(activities []streams.Activity) []int64 {
	out := make([]int64, len(activities))
	for i, a := range activities {
		out[i] = a.Id
	}
	return out
}

func allRequest() streams.FeedRequest {
	return streams.FeedRequest{Page: streams.PageRequest{Size: streams.DefaultPageSize}}
}

func TestPageTrimsPrivateGroups(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	public := f.post(t, alice, personRef(alice))
	private := f.post(t, alice, groupRef(groupPrivate))
	inPublicGroup := f.post(t, bob, groupRef(groupPublic))

	got, err := f.service.Page(ctx, alice, allRequest())
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int64{inPublicGroup.Id, private.Id, public.Id}, ids(got))

	got, err = f.service.Page(ctx, bob, allRequest())
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int64{inPublicGroup.Id, public.Id}, ids(got))
}

func TestPagePopulatesAndPatches(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	mine := f.post(t, alice, personRef(bob))
	theirs := f.post(t, bob, groupRef(groupPublic))
	if !assert.NoError(f.service.Star(ctx, alice, theirs.Id)) {
		return
	}
	if !assert.NoError(f.service.Like(ctx, alice, mine.Id)) {
		return
	}

	got, err := f.service.Page(ctx, alice, allRequest())
	if !assert.NoError(err) || !assert.Len(got, 2) {
		return
	}
	assert.Equal(theirs.Id, got[0].Id)
	assert.True(got[0].Starred)
	assert.False(got[0].Liked)
	assert.False(got[0].Deletable)

	assert.Equal(mine.Id, got[1].Id)
	assert.Equal("person 1", got[1].AuthorName)
	assert.Equal("/avatars/person/1.png", got[1].AuthorAvatar)
	assert.Equal("person 2", got[1].DestinationName)
	assert.True(got[1].Liked)
	assert.Equal(1, got[1].LikeCount)
	assert.True(got[1].Deletable)
	assert.False(got[1].ServerTime.IsZero())

	got, err = f.service.Page(ctx, bob, allRequest())
	if !assert.NoError(err) || !assert.Len(got, 2) {
		return
	}
	assert.False(got[0].Starred, "stars are per viewer")
	assert.True(got[0].Deletable)
	assert.True(got[1].Deletable, "posted on own stream")
}

func TestCoordinatorMayDeleteGroupActivity(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	a := f.post(t, bob, groupRef(groupPublic))
	got, err := f.service.Activity(context.Background(), alice, a.Id)
	if !assert.NoError(err) {
		return
	}
	assert.False(got.Deletable)

	f.service.Groups = mock.GroupStore{
		CoordinatedGroupIdsFn: func(ctx context.Context, viewer streams.UserId) ([]streams.GroupId, error) {
			return []streams.GroupId{streams.GroupId(groupPublic)}, nil
		},
	}
	got, err = f.service.Activity(context.Background(), alice, a.Id)
	if !assert.NoError(err) {
		return
	}
	assert.True(got.Deletable)
}

func TestPostPushesToCachedLists(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	first := f.post(t, alice, groupRef(groupPublic))
	if _, err := f.service.Page(ctx, alice, allRequest()); !assert.NoError(err) {
		return
	}
	if _, err := f.service.Page(ctx, bob, streams.FeedRequest{
		Inline: &streams.StreamDefinition{Kind: streams.KindFollowed},
		Page:   streams.PageRequest{Size: 5},
	}); !assert.NoError(err) {
		return
	}

	second, err := f.service.Post(ctx, alice, groupRef(groupPublic), streams.Draft{Verb: "post"})
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]string{"lists.push"}, f.tasks.Names())
	list, _, _ := f.cache.GetList(ctx, stream.AllKey())
	assert.Equal([]int64{first.Id}, list.Ids, "lists change after commit only")

	if !assert.NoError(f.tasks.Drain(ctx)) {
		return
	}
	for _, key := range []string{stream.AllKey(), stream.FollowingKey(bob)} {
		list, found, err := f.cache.GetList(ctx, key)
		if !assert.NoError(err) || !assert.True(found, key) {
			return
		}
		assert.Equal([]int64{second.Id, first.Id}, list.Ids, key)
	}
	_, found, _ := f.cache.GetList(ctx, stream.ParentOrgKey(groupOrg))
	assert.False(found, "lists never read stay unbuilt")
}

// refusingQueue behaves like a queue that stays full.
type refusingQueue struct{}

func (refusingQueue) Enqueue(ctx context.Context, task streams.Task) error {
	return errors.New("task queue full")
}

func TestPostRunsEffectsInlineWhenQueueRefuses(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	first := f.post(t, alice, groupRef(groupPublic))
	if _, err := f.service.Page(ctx, alice, allRequest()); !assert.NoError(err) {
		return
	}

	f.service.Tasks = refusingQueue{}
	second, err := f.service.Post(ctx, alice, groupRef(groupPublic), streams.Draft{Verb: "post"})
	if !assert.NoError(err) {
		return
	}
	list, found, _ := f.cache.GetList(ctx, stream.AllKey())
	assert.True(found)
	assert.Equal([]int64{second.Id, first.Id}, list.Ids)

	if !assert.NoError(f.service.Delete(ctx, alice, second.Id)) {
		return
	}
	list, _, _ = f.cache.GetList(ctx, stream.AllKey())
	assert.Equal([]int64{first.Id}, list.Ids)
}

func TestPostToPrivateGroupRequiresMembership(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	_, err := f.service.Post(context.Background(), bob, groupRef(groupPrivate), streams.Draft{Verb: "post"})
	assert.ErrorIs(err, streams.ErrForbidden)

	_, err = f.service.Post(context.Background(), alice, groupRef(groupPrivate), streams.Draft{})
	assert.ErrorIs(err, streams.ErrMalformedRequest)
	assert.Empty(f.tasks.Names())
}

func TestDeletePrunesLists(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	kept := f.post(t, alice, personRef(alice))
	deleted := f.post(t, alice, personRef(alice))
	if _, err := f.service.Page(ctx, alice, allRequest()); !assert.NoError(err) {
		return
	}

	if !assert.NoError(f.service.Delete(ctx, alice, deleted.Id)) {
		return
	}
	_, found, _ := f.cache.Get(ctx, activityKey(deleted.Id))
	assert.False(found)
	assert.Equal([]string{"cache.delete", "lists.prune"}, f.tasks.Names())
	if !assert.NoError(f.tasks.Drain(ctx)) {
		return
	}

	list, _, _ := f.cache.GetList(ctx, stream.AllKey())
	assert.Equal([]int64{kept.Id}, list.Ids)
	_, err := f.service.Activity(ctx, alice, deleted.Id)
	assert.ErrorIs(err, streams.ErrActivityNotFound)
}

func TestDeleteRequiresDeletable(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	a := f.post(t, alice, personRef(alice))
	assert.ErrorIs(f.service.Delete(ctx, bob, a.Id), streams.ErrForbidden)

	private := f.post(t, alice, groupRef(groupPrivate))
	assert.ErrorIs(f.service.Delete(ctx, bob, private.Id), streams.ErrActivityNotFound)
	assert.Empty(f.tasks.Names())
}

func TestDeletingLastCommentRecomputesSummary(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	a := f.post(t, alice, personRef(alice))
	first, err := f.service.Comment(ctx, bob, a.Id, "first")
	if !assert.NoError(err) {
		return
	}
	last, err := f.service.Comment(ctx, alice, a.Id, "last")
	if !assert.NoError(err) {
		return
	}

	got, err := f.service.Activity(ctx, alice, a.Id)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(2, got.CommentCount)
	assert.Equal(first.Id, got.FirstComment.Id)
	assert.Equal(last.Id, got.LastComment.Id)

	if !assert.NoError(f.service.DeleteComment(ctx, alice, last.Id)) {
		return
	}
	got, err = f.service.Activity(ctx, alice, a.Id)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(1, got.CommentCount)
	assert.Equal(first.Id, got.FirstComment.Id)
	assert.Equal(first.Id, got.LastComment.Id)
}

func TestDeleteCommentPermissions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	a := f.post(t, bob, personRef(bob))
	c, err := f.service.Comment(ctx, bob, a.Id, "mine")
	if !assert.NoError(err) {
		return
	}
	assert.ErrorIs(f.service.DeleteComment(ctx, alice, c.Id), streams.ErrForbidden)
	assert.ErrorIs(f.service.DeleteComment(ctx, alice, 999), streams.ErrCommentNotFound)

	c, err = f.service.Comment(ctx, alice, a.Id, "on bob's stream")
	if !assert.NoError(err) {
		return
	}
	assert.NoError(f.service.DeleteComment(ctx, bob, c.Id), "owner of the activity")
}

func TestPostCommitDeleteCleansStaleRefill(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	a := f.post(t, alice, personRef(alice))
	stale, found, err := f.cache.Get(ctx, activityKey(a.Id))
	if !assert.NoError(err) || !assert.True(found) {
		return
	}

	if _, err := f.service.Comment(ctx, alice, a.Id, "hello"); !assert.NoError(err) {
		return
	}
	// a reader that loaded before commit writes the old record back
	if !assert.NoError(f.cache.Set(ctx, activityKey(a.Id), stale)) {
		return
	}
	got, _ := f.service.Activity(ctx, alice, a.Id)
	assert.Equal(0, got.CommentCount)

	if !assert.NoError(f.tasks.Drain(ctx)) {
		return
	}
	got, err = f.service.Activity(ctx, alice, a.Id)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(1, got.CommentCount)
}

func TestLikeIsCountedOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	a := f.post(t, alice, personRef(alice))
	assert.NoError(f.service.Like(ctx, bob, a.Id))
	assert.Equal([]string{"cache.delete"}, f.tasks.Names())
	assert.NoError(f.tasks.Drain(ctx))
	assert.NoError(f.service.Like(ctx, bob, a.Id))
	assert.Empty(f.tasks.Names(), "no change, nothing invalidated")

	got, err := f.service.Activity(ctx, bob, a.Id)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(1, got.LikeCount)
	assert.True(got.Liked)

	assert.NoError(f.service.Unlike(ctx, bob, a.Id))
	got, err = f.service.Activity(ctx, bob, a.Id)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(0, got.LikeCount)
	assert.False(got.Liked)
}

func TestInvisibleActivityCannotBeTouched(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	a := f.post(t, alice, groupRef(groupPrivate))
	_, err := f.service.Comment(ctx, bob, a.Id, "hi")
	assert.ErrorIs(err, streams.ErrActivityNotFound)
	assert.ErrorIs(f.service.Like(ctx, bob, a.Id), streams.ErrActivityNotFound)
	assert.ErrorIs(f.service.Star(ctx, bob, a.Id), streams.ErrActivityNotFound)
	_, err = f.service.Activity(ctx, bob, a.Id)
	assert.ErrorIs(err, streams.ErrActivityNotFound)
}

func TestStarredStream(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	a := f.post(t, alice, personRef(alice))
	f.post(t, alice, personRef(alice))
	c := f.post(t, alice, personRef(alice))
	assert.NoError(f.service.Star(ctx, bob, a.Id))
	assert.NoError(f.service.Star(ctx, bob, c.Id))

	got, err := f.service.Page(ctx, bob, streams.FeedRequest{
		Inline: &streams.StreamDefinition{Kind: streams.KindStarred},
		Page:   streams.PageRequest{Size: 10},
	})
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int64{c.Id, a.Id}, ids(got))

	assert.NoError(f.service.Unstar(ctx, bob, c.Id))
	got, err = f.service.Page(ctx, bob, streams.FeedRequest{
		Inline: &streams.StreamDefinition{Kind: streams.KindStarred},
		Page:   streams.PageRequest{Size: 10},
	})
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int64{a.Id}, ids(got))
}

func TestSavedStreams(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	f.post(t, alice, personRef(alice))
	inGroup := f.post(t, bob, groupRef(groupPublic))

	saved, err := f.service.SaveStream(ctx, alice, streams.StreamDefinition{
		Name:   "team",
		Kind:   streams.KindCustom,
		Scopes: []streams.Scope{{Type: streams.ScopeGroup, Id: 200 + groupPublic}},
	})
	if !assert.NoError(err) {
		return
	}
	assert.Equal(alice, saved.Owner)

	got, err := f.service.Page(ctx, alice, streams.FeedRequest{
		StreamId: saved.Id,
		Page:     streams.PageRequest{Size: 10},
	})
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int64{inGroup.Id}, ids(got))
	list, found, _ := f.cache.GetList(ctx, stream.CustomKey(saved.Id))
	assert.True(found)
	assert.Equal([]int64{inGroup.Id}, list.Ids)

	_, err = f.service.Page(ctx, bob, streams.FeedRequest{StreamId: saved.Id, Page: streams.PageRequest{Size: 10}})
	assert.ErrorIs(err, streams.ErrForbidden)
	_, err = f.service.Page(ctx, alice, streams.FeedRequest{StreamId: 404, Page: streams.PageRequest{Size: 10}})
	assert.ErrorIs(err, streams.ErrStreamNotFound)

	saved.Scopes = []streams.Scope{{Type: streams.ScopePerson, Id: 100 + int64(alice)}}
	_, err = f.service.SaveStream(ctx, bob, saved)
	assert.ErrorIs(err, streams.ErrForbidden)
	if _, err := f.service.SaveStream(ctx, alice, saved); !assert.NoError(err) {
		return
	}
	_, found, _ = f.cache.GetList(ctx, stream.CustomKey(saved.Id))
	assert.False(found, "saving drops the cached list")

	defs, err := f.service.Streams(ctx, alice)
	if !assert.NoError(err) || !assert.Len(defs, 1) {
		return
	}
	assert.Equal(saved.Scopes, defs[0].Scopes)
}

func TestSaveStreamValidates(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	_, err := f.service.SaveStream(context.Background(), alice, streams.StreamDefinition{Kind: streams.KindAll})
	assert.ErrorIs(err, streams.ErrMalformedRequest)
	_, err = f.service.SaveStream(context.Background(), alice, streams.StreamDefinition{Name: "x", Kind: "hot"})
	assert.ErrorIs(err, streams.ErrMalformedRequest)
	_, err = f.service.SaveStream(context.Background(), alice, streams.StreamDefinition{
		Name: "x", Kind: streams.KindFollowed, Scopes: []streams.Scope{{Type: streams.ScopeOrg, Id: 1}},
	})
	assert.ErrorIs(err, streams.ErrMalformedRequest)
}

func TestPagePaginatesByMaxId(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	var posted []int64
	for i := 0; i < 7; i++ {
		posted = append(posted, f.post(t, alice, personRef(alice)).Id)
	}
	req := streams.FeedRequest{Page: streams.PageRequest{Size: 3}}
	var pages [][]int64
	for {
		got, err := f.service.Page(ctx, bob, req)
		if !assert.NoError(err) {
			return
		}
		if len(got) == 0 {
			break
		}
		pages = append(pages, ids(got))
		req.Page.MaxId = got[len(got)-1].Id
	}
	assert.Equal([][]int64{
		{posted[6], posted[5], posted[4]},
		{posted[3], posted[2], posted[1]},
		{posted[0]},
	}, pages)
}
