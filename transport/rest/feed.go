package rest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buzkaaclicker/streams"
	"github.com/gofiber/fiber/v2"
)

// Feed is the read and write surface of the activity feed.
type Feed interface {
	Page(ctx context.Context, viewer streams.UserId, req streams.FeedRequest) ([]streams.Activity, error)
	Activity(ctx context.Context, viewer streams.UserId, id int64) (streams.Activity, error)

	Post(ctx context.Context, viewer streams.UserId, to streams.EntityRef, draft streams.Draft) (streams.Activity, error)
	Delete(ctx context.Context, viewer streams.UserId, id int64) error

	Comment(ctx context.Context, viewer streams.UserId, activityId int64, body string) (streams.Comment, error)
	DeleteComment(ctx context.Context, viewer streams.UserId, commentId int64) error

	Like(ctx context.Context, viewer streams.UserId, activityId int64) error
	Unlike(ctx context.Context, viewer streams.UserId, activityId int64) error
	Star(ctx context.Context, viewer streams.UserId, activityId int64) error
	Unstar(ctx context.Context, viewer streams.UserId, activityId int64) error

	SaveStream(ctx context.Context, viewer streams.UserId, def streams.StreamDefinition) (streams.StreamDefinition, error)
	Streams(ctx context.Context, viewer streams.UserId) ([]streams.StreamDefinition, error)
}

type FeedController struct {
	Feed Feed
	// Now stamps responses without activities. Defaults to time.Now.
	Now func() time.Time
}

func (c *FeedController) InstallTo(authorizationHandler fiber.Handler, app *fiber.App) {
	auth := func(handler fiber.Handler) fiber.Handler {
		return CombineHandlers(authorizationHandler, handler)
	}
	app.Post("/feed", auth(c.ServeFeed))

	app.Post("/activities", auth(c.PostActivity))
	app.Get("/activities/:id", auth(c.ServeActivity))
	app.Delete("/activities/:id", auth(c.DeleteActivity))

	app.Post("/activities/:id/comments", auth(c.PostComment))
	app.Delete("/comments/:id", auth(c.DeleteComment))

	app.Put("/activities/:id/like", auth(c.toggle(c.Feed.Like)))
	app.Delete("/activities/:id/like", auth(c.toggle(c.Feed.Unlike)))
	app.Put("/activities/:id/star", auth(c.toggle(c.Feed.Star)))
	app.Delete("/activities/:id/star", auth(c.toggle(c.Feed.Unstar)))

	app.Get("/streams", auth(c.ServeStreams))
	app.Post("/streams", auth(c.SaveStream))
}

type feedResponse struct {
	Activities []activityResponse `json:"activities"`
	ServerTime int64              `json:"serverTime"`
}

func (c *FeedController) ServeFeed(ctx *fiber.Ctx) error {
	user, err := viewer(ctx)
	if err != nil {
		return err
	}
	req, err := streams.ParseFeedRequest(ctx.Body())
	if err != nil {
		return err
	}
	activities, err := c.Feed.Page(ctx.Context(), user.Id, req)
	if err != nil {
		return fmt.Errorf("feed page: %w", err)
	}

	response := feedResponse{
		Activities: make([]activityResponse, len(activities)),
		ServerTime: c.now().Unix(),
	}
	for i, a := range activities {
		response.Activities[i] = mapActivity(a)
	}
	if len(activities) > 0 && !activities[0].ServerTime.IsZero() {
		response.ServerTime = activities[0].ServerTime.Unix()
	}
	return ctx.JSON(response)
}

func (c *FeedController) ServeActivity(ctx *fiber.Ctx) error {
	user, err := viewer(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	activity, err := c.Feed.Activity(ctx.Context(), user.Id, id)
	if err != nil {
		return fmt.Errorf("activity %d: %w", id, err)
	}
	return ctx.JSON(mapActivity(activity))
}

type postActivityBody struct {
	To struct {
		Type string `json:"type"`
		Id   int64  `json:"id"`
	} `json:"to"`
	Verb       string                 `json:"verb"`
	Properties map[string]interface{} `json:"properties"`
	Keywords   string                 `json:"keywords"`
}

func (c *FeedController) PostActivity(ctx *fiber.Ctx) error {
	user, err := viewer(ctx)
	if err != nil {
		return err
	}
	var body postActivityBody
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	to := streams.EntityRef{Type: streams.DestinationType(body.To.Type), Id: body.To.Id}
	switch to.Type {
	case streams.DestinationPerson, streams.DestinationGroup, streams.DestinationResource:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "invalid destination type")
	}
	if to.Id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid destination id")
	}

	activity, err := c.Feed.Post(ctx.Context(), user.Id, to, streams.Draft{
		Verb:       body.Verb,
		Properties: body.Properties,
		Keywords:   body.Keywords,
	})
	if err != nil {
		return fmt.Errorf("post activity: %w", err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(mapActivity(activity))
}

func (c *FeedController) DeleteActivity(ctx *fiber.Ctx) error {
	user, err := viewer(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	if err := c.Feed.Delete(ctx.Context(), user.Id, id); err != nil {
		return fmt.Errorf("delete activity %d: %w", id, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

type commentBody struct {
	Body string `json:"body"`
}

func (c *FeedController) PostComment(ctx *fiber.Ctx) error {
	user, err := viewer(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var body commentBody
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	comment, err := c.Feed.Comment(ctx.Context(), user.Id, id, body.Body)
	if err != nil {
		return fmt.Errorf("comment on %d: %w", id, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(mapComment(comment))
}

func (c *FeedController) DeleteComment(ctx *fiber.Ctx) error {
	user, err := viewer(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	if err := c.Feed.DeleteComment(ctx.Context(), user.Id, id); err != nil {
		return fmt.Errorf("delete comment %d: %w", id, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *FeedController) toggle(fn func(ctx context.Context, viewer streams.UserId, activityId int64) error) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		user, err := viewer(ctx)
		if err != nil {
			return err
		}
		id, err := idParam(ctx, "id")
		if err != nil {
			return err
		}
		if err := fn(ctx.Context(), user.Id, id); err != nil {
			return fmt.Errorf("%s %s: %w", ctx.Method(), ctx.Path(), err)
		}
		return ctx.SendStatus(fiber.StatusNoContent)
	}
}

type streamBody struct {
	Id       int64           `json:"id"`
	Name     string          `json:"name"`
	Kind     string          `json:"kind"`
	Scopes   []streams.Scope `json:"scopes"`
	Keywords string          `json:"keywords"`
}

func (c *FeedController) ServeStreams(ctx *fiber.Ctx) error {
	user, err := viewer(ctx)
	if err != nil {
		return err
	}
	defs, err := c.Feed.Streams(ctx.Context(), user.Id)
	if err != nil {
		return fmt.Errorf("streams of %d: %w", user.Id, err)
	}
	response := make([]streamBody, len(defs))
	for i, def := range defs {
		response[i] = mapStream(def)
	}
	return ctx.JSON(response)
}

func (c *FeedController) SaveStream(ctx *fiber.Ctx) error {
	user, err := viewer(ctx)
	if err != nil {
		return err
	}
	var body streamBody
	if err := ctx.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	saved, err := c.Feed.SaveStream(ctx.Context(), user.Id, streams.StreamDefinition{
		Id:       body.Id,
		Name:     body.Name,
		Kind:     streams.StreamKind(strings.TrimSpace(body.Kind)),
		Scopes:   body.Scopes,
		Keywords: body.Keywords,
	})
	if err != nil {
		return fmt.Errorf("save stream: %w", err)
	}
	return ctx.JSON(mapStream(saved))
}

func (c *FeedController) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
