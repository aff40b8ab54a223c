package http

import (
	"bufio"
	"context"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const streamHeartbeat = 15 * time.Second

// StreamHandler runs an inbox batch and streams its progress as Server-Sent Events.
type StreamHandler struct {
	triage    in.TriageService
	log       zerolog.Logger
	heartbeat time.Duration
}

func NewStreamHandler(triage in.TriageService, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		triage:    triage,
		log:       log.With().Str("handler", "sse").Logger(),
		heartbeat: streamHeartbeat,
	}
}

// Register mounts the stream under /api/emails.
func (h *StreamHandler) Register(r fiber.Router) {
	r.Get("/fetch-and-process-stream", h.Stream)
}

func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	mailbox, err := mailboxParam(c)
	if err != nil {
		return err
	}
	maxResults := c.QueryInt("max_results", defaultMaxResults)
	requestID, _ := c.Locals("request_id").(string)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no")

	// fiber.Ctx is recycled once the handler returns, so the batch gets its own context.
	ctx, cancel := context.WithCancel(logger.ContextWithRequestID(context.Background(), requestID))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		log := h.log.With().Str("mailbox", mailbox).Str("request_id", requestID).Logger()
		log.Info().Int("max_results", maxResults).Msg("SSE stream started")

		events := make(chan domain.ProgressEvent, 16)
		go func() {
			defer close(events)
			emit := func(ev domain.ProgressEvent) {
				select {
				case events <- ev:
				case <-ctx.Done():
				}
			}
			if _, err := h.triage.ProcessInbox(ctx, mailbox, maxResults, emit); err != nil {
				log.Warn().Err(err).Msg("inbox batch ended with error")
			}
		}()

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					log.Info().Msg("SSE stream finished")
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					log.Error().Err(err).Msg("failed to serialize event")
					continue
				}
				w.WriteString("data: ")
				w.Write(data)
				w.WriteString("\n\n")
				if err := w.Flush(); err != nil {
					log.Debug().Err(err).Msg("client disconnected during write")
					return
				}

			case <-ticker.C:
				w.WriteString(": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					log.Debug().Err(err).Msg("client disconnected during heartbeat")
					return
				}
			}
		}
	})

	return nil
}
