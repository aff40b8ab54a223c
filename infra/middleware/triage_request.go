package middleware

import (
	"errors"
	"runtime/debug"
	"time"

	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses an incoming X-Request-ID or generates one, and puts it on
// the user context so services log it.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Locals("request_id", id)
		c.SetUserContext(logger.ContextWithRequestID(c.UserContext(), id))
		return c.Next()
	}
}

func RequestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperr.GetHTTPStatus(err)
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		l := log.WithContext(c.UserContext()).
			Event("http.request").
			WithFields(map[string]any{
				"method": c.Method(),
				"path":   c.Path(),
				"status": status,
				"ip":     c.IP(),
			}).
			WithDuration(time.Since(start))

		switch {
		case status >= 500:
			l.WithError(err).Error("request failed")
		case status >= 400:
			l.Warn("request rejected")
		case c.Path() == "/health" || c.Path() == "/ready":
			l.Debug("health check")
		default:
			l.Info("request handled")
		}
		return err
	}
}

// Recover turns a handler panic into a 500 AppError.
func Recover(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.WithContext(c.UserContext()).
					Event("http.panic").
					WithField("stack", string(debug.Stack())).
					Error("panic: %v", r)
				err = apperr.Internal("")
			}
		}()
		return c.Next()
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// ErrorHandler is installed as fiber.Config.ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	body := errorBody{Error: errorDetail{RequestID: logger.RequestIDFrom(c.UserContext())}}
	status := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		body.Error.Code = "HTTP_ERROR"
		body.Error.Message = fe.Message
	} else {
		appErr := apperr.AsAppError(err)
		status = appErr.Status
		body.Error.Code = appErr.Code
		body.Error.Message = appErr.Message
		body.Error.Details = appErr.Details
	}

	return c.Status(status).JSON(body)
}
