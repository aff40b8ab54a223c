// Package classification turns an email into a routing decision: a rate-gated
// call to a generative backend, response parsing with bounded retries, and a
// keyword fallback when the backend is unavailable or its output unusable.
package classification

import (
	"context"
	"time"
	"unicode/utf8"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

type Options struct {
	MaxAttempts   int
	QuotaBackoff  time.Duration
	ParseBackoff  time.Duration
	TeamLeadEmail string
	RateGate      RateGateConfig
	Clock         Clock
	Logger        *logger.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:  2,
		QuotaBackoff: 10 * time.Second,
		ParseBackoff: 3 * time.Second,
		RateGate:     DefaultRateGateConfig(),
	}
}

type attemptState int

const (
	stateAttempting attemptState = iota
	stateSuccess
	stateFallback
)

// Fallback reasons, logged with classification.fallback_triggered.
const (
	reasonQuotaExhausted = "quota_exhausted"
	reasonMalformed      = "malformed_response"
	reasonBackendError   = "backend_error"
	reasonCancelled      = "cancelled"
)

// Engine owns one rate gate. Share a single Engine across every caller that
// talks to the same backend quota.
type Engine struct {
	backend out.GenerativeBackend
	gate    *RateGate
	clock   Clock
	opts    Options
	log     *logger.Logger
}

func NewEngine(backend out.GenerativeBackend, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Engine{
		backend: backend,
		gate:    NewRateGate(opts.RateGate, opts.Clock, opts.Logger),
		clock:   opts.Clock,
		opts:    opts,
		log:     opts.Logger,
	}
}

func (e *Engine) Gate() *RateGate { return e.gate }

// Classify always returns a usable result. Backend and parse failures end in
// the keyword fallback; so does ctx cancellation.
func (e *Engine) Classify(ctx context.Context, req domain.ClassificationRequest) domain.ClassificationResult {
	log := e.log.WithContext(ctx)
	prompt := BuildPrompt(req.Subject, req.Content, req.Roster)

	state := stateAttempting
	attempt := 1
	reason := ""
	var result domain.ClassificationResult

	for state == stateAttempting {
		alog := log.WithField("attempt", attempt).WithField("max_attempts", e.opts.MaxAttempts)
		alog.Event("classification.attempt_started").Info("classification attempt %d/%d", attempt, e.opts.MaxAttempts)

		if err := e.gate.Acquire(ctx); err != nil {
			state, reason = stateFallback, reasonCancelled
			continue
		}

		started := e.clock.Now()
		raw, err := e.backend.Complete(ctx, prompt)
		if err != nil {
			alog = alog.WithError(err).WithDuration(e.clock.Now().Sub(started))
			switch {
			case ctx.Err() != nil:
				state, reason = stateFallback, reasonCancelled
			case IsQuotaError(err) && attempt < e.opts.MaxAttempts:
				alog.Event("classification.quota_wait").
					WithField("wait_ms", e.opts.QuotaBackoff.Milliseconds()).
					Warn("backend quota signal, retrying in %s", e.opts.QuotaBackoff)
				if e.clock.Sleep(ctx, e.opts.QuotaBackoff) != nil {
					state, reason = stateFallback, reasonCancelled
				} else {
					attempt++
				}
			case IsQuotaError(err):
				state, reason = stateFallback, reasonQuotaExhausted
			default:
				alog.Event("classification.backend_error").Error("backend call failed")
				state, reason = stateFallback, reasonBackendError
			}
			continue
		}

		parsed, err := ParseResponse(raw)
		if err != nil {
			if attempt < e.opts.MaxAttempts {
				alog.Event("classification.parse_retry").
					WithError(err).
					WithField("raw_prefix", truncate(raw, 200)).
					WithField("wait_ms", e.opts.ParseBackoff.Milliseconds()).
					Warn("unusable backend response, retrying in %s", e.opts.ParseBackoff)
				if e.clock.Sleep(ctx, e.opts.ParseBackoff) != nil {
					state, reason = stateFallback, reasonCancelled
				} else {
					attempt++
				}
			} else {
				alog.WithError(err).Warn("unusable backend response on final attempt")
				state, reason = stateFallback, reasonMalformed
			}
			continue
		}

		result = parsed
		state = stateSuccess
	}

	if state == stateFallback {
		result = Fallback(req.Subject, req.Content, req.Roster, e.opts.TeamLeadEmail)
		log.Event("classification.fallback_triggered").
			WithFields(map[string]any{"reason": reason, "attempts": attempt, "categories": result.Categories}).
			Warn("using keyword fallback (%s)", reason)
		return result
	}

	for _, c := range result.Categories {
		if _, ok := req.Roster.Lookup(c); !ok {
			log.Event("classification.unknown_category").WithField("category", c).
				Warn("backend returned a category outside the roster")
		}
	}
	log.Event("classification.succeeded").
		WithFields(map[string]any{"attempts": attempt, "categories": result.Categories, "confidence": result.Confidence}).
		Info("classified on attempt %d", attempt)
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
