package middleware

import (
	"context"
	"strings"
	"time"

	"triage_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const auditStream = "triage:audit"

// AuditEvent records an operator action that changes mailbox or routing state.
type AuditEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Operator   string    `json:"operator,omitempty"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	Duration   int64     `json:"duration_ms"`
	RequestID  string    `json:"request_id"`
	Success    bool      `json:"success"`
}

// auditedActions maps "METHOD:/path-prefix" to an action name.
var auditedActions = []struct {
	method string
	prefix string
	action string
}{
	{"POST", "/api/auth/disconnect", "mailbox_disconnect"},
	{"DELETE", "/api/auth/disconnect", "mailbox_disconnect"},
	{"GET", "/api/auth/callback", "mailbox_connect"},
	{"POST", "/api/emails/manual-forward", "manual_forward"},
	{"POST", "/api/dashboard/reviews/", "review_complete"},
	{"POST", "/api/dashboard/team-members", "team_member_create"},
	{"PUT", "/api/dashboard/team-members/", "team_member_update"},
	{"DELETE", "/api/dashboard/team-members/", "team_member_delete"},
}

func auditAction(method, path string) string {
	for _, a := range auditedActions {
		if a.method == method && strings.HasPrefix(path, a.prefix) {
			return a.action
		}
	}
	return ""
}

// AuditSink writes audit events to the log and, when Redis is present, to a capped stream.
type AuditSink struct {
	redis *redis.Client
	log   *logger.Logger
}

func NewAuditSink(client *redis.Client, log *logger.Logger) *AuditSink {
	return &AuditSink{redis: client, log: log}
}

func (s *AuditSink) Write(ctx context.Context, event *AuditEvent) error {
	s.log.WithContext(ctx).
		Event("audit." + event.Action).
		WithFields(map[string]any{"status": event.StatusCode, "path": event.Path}).
		Info("audited action")

	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: auditStream,
		Values: map[string]any{"event": string(data)},
		MaxLen: 10000,
		Approx: true,
	}).Err()
}

func Audit(sink *AuditSink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		action := auditAction(c.Method(), c.Path())
		if action == "" || sink == nil {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
		}
		operator, _ := c.Locals("operator").(string)
		event := &AuditEvent{
			ID:         uuid.NewString(),
			Timestamp:  start.UTC(),
			Action:     action,
			Method:     c.Method(),
			Path:       c.Path(),
			Operator:   operator,
			IP:         c.IP(),
			StatusCode: status,
			Duration:   time.Since(start).Milliseconds(),
			RequestID:  logger.RequestIDFrom(c.UserContext()),
			Success:    err == nil && status < 400,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if werr := sink.Write(logger.ContextWithRequestID(ctx, event.RequestID), event); werr != nil {
			sink.log.WithError(werr).Warn("failed to write audit event")
		}
		return err
	}
}
