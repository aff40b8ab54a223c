package http

import (
	"fmt"
	"strings"

	"triage_server/core/port/in"
	"triage_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

const defaultMaxResults = 10

type EmailHandler struct {
	triage in.TriageService
}

func NewEmailHandler(triage in.TriageService) *EmailHandler {
	return &EmailHandler{triage: triage}
}

// Register mounts the routes under /api/emails.
func (h *EmailHandler) Register(r fiber.Router) {
	r.Post("/fetch-and-process", h.FetchAndProcess)
	r.Post("/manual-forward", h.ManualForward)
	r.Get("/test-connection", h.TestConnection)
}

type fetchRequest struct {
	UserEmail  string `json:"user_email"`
	MaxResults int    `json:"max_results"`
}

// FetchAndProcess runs one inbox batch and answers when it is done.
func (h *EmailHandler) FetchAndProcess(c *fiber.Ctx) error {
	var req fetchRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	if req.UserEmail == "" {
		req.UserEmail = c.Query("user_email", c.Query("email"))
	}
	if req.UserEmail == "" {
		return apperr.MissingField("user_email")
	}
	if req.MaxResults <= 0 {
		req.MaxResults = c.QueryInt("max_results", defaultMaxResults)
	}

	summary, err := h.triage.ProcessInbox(c.UserContext(), req.UserEmail, req.MaxResults, nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":         fmt.Sprintf("Processed %d emails", summary.Processed),
		"processed_count": summary.Processed,
		"summary":         summary,
	})
}

type manualForwardRequest struct {
	EmailID        int64  `json:"email_id"`
	RecipientEmail string `json:"recipient_email"`
	UserEmail      string `json:"user_email"`
}

func (h *EmailHandler) ManualForward(c *fiber.Ctx) error {
	var req manualForwardRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	switch {
	case req.EmailID <= 0:
		return apperr.MissingField("email_id")
	case strings.TrimSpace(req.RecipientEmail) == "":
		return apperr.MissingField("recipient_email")
	case strings.TrimSpace(req.UserEmail) == "":
		return apperr.MissingField("user_email")
	}

	if err := h.triage.ManualForward(c.UserContext(), req.UserEmail, req.EmailID, strings.TrimSpace(req.RecipientEmail)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Email forwarded successfully"})
}

func (h *EmailHandler) TestConnection(c *fiber.Ctx) error {
	mailbox, err := mailboxParam(c)
	if err != nil {
		return err
	}
	profile, err := h.triage.TestConnection(c.UserContext(), mailbox)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":         "connected",
		"email":          profile.EmailAddress,
		"messages_total": profile.MessagesTotal,
		"threads_total":  profile.ThreadsTotal,
	})
}

type classifyRequest struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// Classify is mounted at /api/classify and runs the engine without touching a mailbox.
func (h *EmailHandler) Classify(c *fiber.Ctx) error {
	var req classifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.triage.Classify(c.UserContext(), req.Subject, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
