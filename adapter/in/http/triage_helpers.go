package http

import (
	"strconv"
	"strings"

	"triage_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// mailboxParam reads the mailbox address from ?email= or ?user_email=.
func mailboxParam(c *fiber.Ctx) (string, error) {
	mailbox := strings.TrimSpace(c.Query("email"))
	if mailbox == "" {
		mailbox = strings.TrimSpace(c.Query("user_email"))
	}
	if mailbox == "" {
		return "", apperr.MissingField("email")
	}
	return mailbox, nil
}

func idParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationFailed(name, "must be a positive integer")
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	return nil
}
