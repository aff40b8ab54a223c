package http

import (
	"net/url"
	"strings"

	"triage_server/core/port/in"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler connects and disconnects Gmail mailboxes.
type AuthHandler struct {
	auth        in.MailboxAuthService
	frontendURL string
	log         *logger.Logger
}

func NewAuthHandler(auth in.MailboxAuthService, frontendURL string, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        auth,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
	}
}

// Register mounts the routes under /api/auth. None of them require a bearer token.
func (h *AuthHandler) Register(r fiber.Router) {
	r.Get("/connect", h.Connect)
	r.Get("/callback", h.Callback)
	r.Get("/status", h.Status)
	r.Delete("/disconnect", h.Disconnect)
	r.Post("/disconnect", h.Disconnect)
}

func (h *AuthHandler) Connect(c *fiber.Ctx) error {
	authURL, state, err := h.auth.ConnectURL(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"authorization_url": authURL,
		"state":             state,
	})
}

// Callback finishes the consent flow and sends the browser back to the dashboard.
// Failures are reported to the frontend through ?error= rather than as JSON.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		return c.Redirect(h.frontendURL+"/?error="+url.QueryEscape(reason), fiber.StatusFound)
	}

	profile, err := h.auth.Callback(c.UserContext(), c.Query("code"), c.Query("state"))
	if err != nil {
		h.log.WithContext(c.UserContext()).Event("auth.callback_failed").WithError(err).Warn("oauth callback failed")
		return c.Redirect(h.frontendURL+"/?error="+url.QueryEscape(apperr.AsAppError(err).Message), fiber.StatusFound)
	}

	return c.Redirect(h.frontendURL+"/dashboard?email="+url.QueryEscape(profile.EmailAddress), fiber.StatusFound)
}

func (h *AuthHandler) Status(c *fiber.Ctx) error {
	mailbox, err := mailboxParam(c)
	if err != nil {
		return err
	}
	status, err := h.auth.Status(c.UserContext(), mailbox)
	if err != nil {
		return err
	}
	return c.JSON(status)
}

func (h *AuthHandler) Disconnect(c *fiber.Ctx) error {
	mailbox, err := mailboxParam(c)
	if err != nil {
		return err
	}
	if err := h.auth.Disconnect(c.UserContext(), mailbox); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Disconnected successfully"})
}
