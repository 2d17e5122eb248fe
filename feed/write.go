package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/buzkaaclicker/streams"
	"github.com/buzkaaclicker/streams/page"
	"github.com/buzkaaclicker/streams/stream"
	"github.com/sirupsen/logrus"
)

// Post publishes draft to the stream of to and pushes it to the top of every
// cached list it belongs in once committed.
func (s *Service) Post(ctx context.Context, viewer streams.UserId, to streams.EntityRef,
	draft streams.Draft) (streams.Activity, error) {
	if strings.TrimSpace(draft.Verb) == "" {
		return streams.Activity{}, fmt.Errorf("%w: missing verb", streams.ErrMalformedRequest)
	}
	destination, err := s.Destinations.Destination(ctx, to)
	if err != nil {
		return streams.Activity{}, fmt.Errorf("destination %s %d: %w", to.Type, to.Id, err)
	}
	if destination.Type == streams.DestinationGroup && !destination.Public {
		scope := page.NewVisibilityScope(viewer, s.Groups)
		member, err := scope.Contains(ctx, streams.GroupId(destination.EntityId))
		if err != nil {
			return streams.Activity{}, err
		}
		if !member {
			return streams.Activity{}, streams.ErrForbidden
		}
	}
	draft.Destination = destination

	var posted streams.Activity
	err = s.write(ctx, func(ctx context.Context, e *effects) error {
		var err error
		posted, err = s.Activities.Insert(ctx, viewer, draft)
		if err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
		id := posted.Id
		e.enqueue(streams.Task{
			Name: "lists.push",
			Run: func(ctx context.Context) error {
				return s.updateLists(ctx, destination, func(ctx context.Context, key string) error {
					return s.Cache.AddToTop(ctx, key, id)
				})
			},
		})
		return nil
	})
	if err != nil {
		return streams.Activity{}, err
	}
	logrus.WithFields(logrus.Fields{
		"viewer":   viewer,
		"activity": posted.Id,
		"stream":   destination.StreamId,
	}).Infoln("Activity posted.")
	return s.Activity(ctx, viewer, posted.Id)
}

// Delete removes an activity viewer may delete together with its comments,
// likes and stars, and prunes it from every cached list.
func (s *Service) Delete(ctx context.Context, viewer streams.UserId, id int64) error {
	activity, err := s.Activity(ctx, viewer, id)
	if err != nil {
		return err
	}
	if !activity.Deletable {
		return streams.ErrForbidden
	}
	destination := activity.Destination

	err = s.write(ctx, func(ctx context.Context, e *effects) error {
		if err := s.Activities.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete activity %d: %w", id, err)
		}
		e.invalidate(ctx, activityKey(id))
		e.enqueue(streams.Task{
			Name: "lists.prune",
			Run: func(ctx context.Context) error {
				return s.updateLists(ctx, destination, func(ctx context.Context, key string) error {
					return s.Cache.RemoveFromList(ctx, key, id)
				})
			},
		})
		return nil
	})
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"viewer": viewer, "activity": id}).Infoln("Activity deleted.")
	return nil
}

// updateLists applies update to the key of every cached list holding
// activities of destination.
func (s *Service) updateLists(ctx context.Context, destination streams.Destination,
	update func(ctx context.Context, key string) error) error {
	keys, err := s.listKeys(ctx, destination)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := update(ctx, key); err != nil {
			return fmt.Errorf("update list %s: %w", key, err)
		}
	}
	return nil
}

func (s *Service) listKeys(ctx context.Context, destination streams.Destination) ([]string, error) {
	keys := []string{stream.AllKey(), stream.StreamKey(destination.StreamId)}

	followers, err := s.Follows.Followers(ctx, destination.StreamId)
	if err != nil {
		return nil, fmt.Errorf("followers of %d: %w", destination.StreamId, err)
	}
	for _, f := range followers {
		keys = append(keys, stream.FollowingKey(f))
	}

	var orgs []streams.OrgId
	if destination.ParentOrgId != 0 {
		orgs, err = s.Orgs.Ancestors(ctx, destination.ParentOrgId)
		if err != nil {
			return nil, fmt.Errorf("ancestors of %d: %w", destination.ParentOrgId, err)
		}
		for _, org := range orgs {
			keys = append(keys, stream.ParentOrgKey(org))
		}
	}

	definitions, err := s.Definitions.Referencing(ctx, destination.StreamId, orgs)
	if err != nil {
		return nil, fmt.Errorf("definitions referencing %d: %w", destination.StreamId, err)
	}
	for _, id := range definitions {
		keys = append(keys, stream.CustomKey(id))
	}
	return keys, nil
}

// Comment adds a comment to an activity viewer may see.
func (s *Service) Comment(ctx context.Context, viewer streams.UserId, activityId int64, body string) (streams.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return streams.Comment{}, fmt.Errorf("%w: empty comment", streams.ErrMalformedRequest)
	}
	if err := s.requireVisible(ctx, viewer, activityId); err != nil {
		return streams.Comment{}, err
	}

	var comment streams.Comment
	err := s.write(ctx, func(ctx context.Context, e *effects) error {
		var err error
		comment, err = s.Comments.Add(ctx, activityId, viewer, body)
		if err != nil {
			return fmt.Errorf("add comment: %w", err)
		}
		e.invalidate(ctx, activityKey(activityId))
		return nil
	})
	return comment, err
}

// DeleteComment removes a comment written by viewer or placed on an
// activity viewer may delete.
func (s *Service) DeleteComment(ctx context.Context, viewer streams.UserId, commentId int64) error {
	comment, err := s.Comments.ById(ctx, commentId)
	if err != nil {
		return fmt.Errorf("comment %d: %w", commentId, err)
	}
	if comment.Author != viewer {
		activity, err := s.Activity(ctx, viewer, comment.ActivityId)
		if err != nil {
			return err
		}
		if !activity.Deletable {
			return streams.ErrForbidden
		}
	}

	return s.write(ctx, func(ctx context.Context, e *effects) error {
		if err := s.Comments.Delete(ctx, commentId); err != nil {
			return fmt.Errorf("delete comment %d: %w", commentId, err)
		}
		e.invalidate(ctx, activityKey(comment.ActivityId))
		return nil
	})
}

func (s *Service) Like(ctx context.Context, viewer streams.UserId, activityId int64) error {
	return s.like(ctx, viewer, activityId, true)
}

func (s *Service) Unlike(ctx context.Context, viewer streams.UserId, activityId int64) error {
	return s.like(ctx, viewer, activityId, false)
}

func (s *Service) like(ctx context.Context, viewer streams.UserId, activityId int64, like bool) error {
	if err := s.requireVisible(ctx, viewer, activityId); err != nil {
		return err
	}
	return s.write(ctx, func(ctx context.Context, e *effects) error {
		changed, delta := false, 1
		var err error
		if like {
			changed, err = s.Likes.Like(ctx, viewer, activityId)
		} else {
			changed, err = s.Likes.Unlike(ctx, viewer, activityId)
			delta = -1
		}
		if err != nil {
			return fmt.Errorf("like %d: %w", activityId, err)
		}
		if !changed {
			return nil
		}
		if err := s.Activities.AddLikes(ctx, activityId, delta); err != nil {
			return fmt.Errorf("like count of %d: %w", activityId, err)
		}
		e.invalidate(ctx, activityKey(activityId))
		return nil
	})
}

// Star and Unstar touch viewer-relative state only, nothing cached changes.
func (s *Service) Star(ctx context.Context, viewer streams.UserId, activityId int64) error {
	if err := s.requireVisible(ctx, viewer, activityId); err != nil {
		return err
	}
	if err := s.Stars.Star(ctx, viewer, activityId); err != nil {
		return fmt.Errorf("star %d: %w", activityId, err)
	}
	return nil
}

func (s *Service) Unstar(ctx context.Context, viewer streams.UserId, activityId int64) error {
	if err := s.Stars.Unstar(ctx, viewer, activityId); err != nil {
		return fmt.Errorf("unstar %d: %w", activityId, err)
	}
	return nil
}
