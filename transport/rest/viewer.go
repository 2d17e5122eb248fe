package rest

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/buzkaaclicker/streams"
	"github.com/gofiber/fiber/v2"
)

const (
	HeaderViewerId  = "X-Viewer-Id"
	viewerLocalsKey = "viewer"
)

// ViewerAuthorizer loads the viewer named by the X-Viewer-Id header set by
// the authenticating gateway in front of this service.
func ViewerAuthorizer(users streams.UserStore) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		raw := ctx.Get(HeaderViewerId)
		if raw == "" {
			return fiber.ErrUnauthorized
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid viewer id")
		}

		user, err := users.ById(ctx.Context(), streams.UserId(id))
		if err != nil {
			if errors.Is(err, streams.ErrUserNotFound) {
				return fiber.ErrUnauthorized
			}
			return fmt.Errorf("retrieve user by id: %w", err)
		}

		RequestLog(ctx).
			WithField("user_id", user.Id).
			Debugln("Authorized access.")

		ctx.Locals(viewerLocalsKey, user)
		return nil
	}
}

func viewer(ctx *fiber.Ctx) (streams.User, error) {
	user, ok := ctx.Locals(viewerLocalsKey).(streams.User)
	if !ok {
		return streams.User{}, fiber.ErrUnauthorized
	}
	return user, nil
}
