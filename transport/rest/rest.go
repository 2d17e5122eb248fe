package rest

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/buzkaaclicker/streams"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIdLocalsKey = "request_id"

type ErrorResponse struct {
	ErrorMessage string `json:"error_message"`
}

func RequestLog(ctx *fiber.Ctx) *logrus.Entry {
	requestId, _ := ctx.Locals(requestIdLocalsKey).(string)
	return logrus.
		WithField("request_id", requestId).
		WithField("remote_addr", ctx.Context().RemoteAddr()).
		WithField("path", ctx.Path()).
		WithField("z_user_agent", string(ctx.Request().Header.Peek("User-Agent"))).
		WithField("z_x_forwared_for", string(ctx.Request().Header.Peek("X-Forwarded-For")))
}

// RequestId tags every request with a fresh id, echoed in X-Request-Id.
func RequestId() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id := uuid.New().String()
		ctx.Locals(requestIdLocalsKey, id)
		ctx.Set(fiber.HeaderXRequestID, id)
		return ctx.Next()
	}
}

func LogHandler() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		RequestLog(ctx).WithField("method", ctx.Method()).Infoln("Handling request.")
		return ctx.Next()
	}
}

func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		fe = domainError(err)
	}
	if fe == nil {
		RequestLog(ctx).WithError(err).Errorln("Internal server error.")
		// keep internal server errors private. reply with generic error message.
		return ctx.
			Status(fiber.ErrInternalServerError.Code).
			JSON(&ErrorResponse{ErrorMessage: fiber.ErrInternalServerError.Message})
	}
	return ctx.
		Status(fe.Code).
		JSON(&ErrorResponse{ErrorMessage: fe.Message})
}

func domainError(err error) *fiber.Error {
	switch {
	case errors.Is(err, streams.ErrMalformedRequest):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, streams.ErrForbidden):
		return fiber.ErrForbidden
	case errors.Is(err, streams.ErrActivityNotFound):
		return fiber.NewError(fiber.StatusNotFound, "activity not found")
	case errors.Is(err, streams.ErrCommentNotFound):
		return fiber.NewError(fiber.StatusNotFound, "comment not found")
	case errors.Is(err, streams.ErrStreamNotFound):
		return fiber.NewError(fiber.StatusNotFound, "stream not found")
	case errors.Is(err, streams.ErrUserNotFound):
		return fiber.ErrUnauthorized
	default:
		return nil
	}
}

func NotFoundHandler(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusNotFound)
}

func CombineHandlers(handlers ...fiber.Handler) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		for _, handler := range handlers {
			err := handler(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func JsonErrorMessageResponse(message string) string {
	bytes, err := json.Marshal(ErrorResponse{ErrorMessage: message})
	if err != nil {
		panic(err)
	}
	return string(bytes)
}

func idParam(ctx *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
