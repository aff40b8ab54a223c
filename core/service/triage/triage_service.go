// Package triage runs inbox batches: classify, store, reply, forward and queue for review.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/core/service/roster"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

// Classifier is satisfied by *classification.Engine.
type Classifier interface {
	Classify(ctx context.Context, req domain.ClassificationRequest) domain.ClassificationResult
}

// RosterSource is satisfied by *roster.Service.
type RosterSource interface {
	Roster(ctx context.Context) (domain.Roster, error)
}

type invalidator interface {
	Invalidate(ctx context.Context)
}

type Config struct {
	ConfidenceThreshold float64
	AutoReplyTemplate   string
	AutoReplyEnabled    bool
	AutoForward         bool
	DefaultMaxResults   int
	// BatchLease bounds how long one batch holds its mailbox lock.
	BatchLease time.Duration
}

// Deps lists collaborators. Archive, Graph, Events, Stats and Locks are optional.
type Deps struct {
	Engine          Classifier
	Roster          RosterSource
	Mailboxes       out.MailboxGateway
	Classifications out.ClassificationRepository
	Reviews         out.ReviewQueueRepository
	Archive         out.BodyArchive
	Graph           out.RoutingGraph
	Events          out.EventPublisher
	Stats           invalidator
	Locks           out.BatchLocker
}

type Service struct {
	deps Deps
	cfg  Config
	log  *logger.Logger
}

const DefaultConfidenceThreshold = 0.7

func NewService(deps Deps, cfg Config, log *logger.Logger) *Service {
	// 0 is a valid threshold and disables the review queue
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = 10
	}
	if cfg.BatchLease <= 0 {
		cfg.BatchLease = 15 * time.Minute
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{deps: deps, cfg: cfg, log: log}
}

const statusSteps = 5

func (s *Service) ProcessInbox(ctx context.Context, mailbox string, maxResults int, emit in.ProgressFunc) (*domain.ProcessSummary, error) {
	if emit == nil {
		emit = func(domain.ProgressEvent) {}
	}
	if strings.TrimSpace(mailbox) == "" {
		return nil, apperr.MissingField("user_email")
	}
	if maxResults <= 0 {
		maxResults = s.cfg.DefaultMaxResults
	}

	ctx = logger.ContextWithMailbox(ctx, mailbox)
	log := s.log.WithContext(ctx)
	summary := &domain.ProcessSummary{Mailbox: mailbox}

	fail := func(err error) (*domain.ProcessSummary, error) {
		emit(domain.ProgressEvent{Type: domain.EventError, Message: err.Error()})
		log.Event("triage.batch_failed").WithError(err).
			WithField("processed", summary.Processed).
			Error("inbox batch aborted")
		return summary, err
	}

	if s.deps.Locks != nil {
		release, ok, err := s.deps.Locks.TryLock(ctx, mailbox, s.cfg.BatchLease)
		switch {
		case err != nil:
			log.WithError(err).Warn("batch lock unavailable, continuing unlocked")
		case !ok:
			return fail(apperr.Conflict("a batch is already running for this mailbox"))
		default:
			defer release()
		}
	}

	emit(domain.ProgressEvent{Type: domain.EventStatus, Message: "Initializing...", Step: 1, Total: statusSteps})

	mb, err := s.deps.Mailboxes.Open(ctx, mailbox)
	if err != nil {
		return fail(err)
	}
	emit(domain.ProgressEvent{Type: domain.EventStatus, Message: "Connected to Gmail API", Step: 2, Total: statusSteps})

	emit(domain.ProgressEvent{Type: domain.EventStatus, Message: fmt.Sprintf("Fetching %d unread emails...", maxResults), Step: 3, Total: statusSteps})
	emails, err := mb.FetchUnread(ctx, maxResults)
	if err != nil {
		return fail(err)
	}
	summary.Fetched = len(emails)
	emit(domain.ProgressEvent{Type: domain.EventFetched, Count: len(emails), Message: fmt.Sprintf("Found %d unread emails", len(emails))})
	log.Event("triage.fetched").WithField("count", len(emails)).Info("fetched unread emails")

	if len(emails) == 0 {
		emit(domain.ProgressEvent{Type: domain.EventComplete, Message: "No unread emails found", Processed: 0})
		return summary, nil
	}

	defer func() {
		if summary.Processed > 0 && s.deps.Stats != nil {
			s.deps.Stats.Invalidate(context.WithoutCancel(ctx))
		}
	}()

	for idx, email := range emails {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := s.processOne(ctx, mb, mailbox, email, idx+1, len(emails), summary, emit); err != nil {
			return fail(err)
		}
	}

	emit(domain.ProgressEvent{
		Type:      domain.EventComplete,
		Message:   fmt.Sprintf("Successfully processed %d emails", summary.Processed),
		Processed: summary.Processed,
	})
	log.Event("triage.batch_completed").WithFields(map[string]any{
		"processed":     summary.Processed,
		"queued":        summary.QueuedReview,
		"reply_failed":  summary.ReplyFailed,
		"fallback_used": summary.FallbackCount,
	}).Info("inbox batch finished")
	return summary, nil
}

func (s *Service) processOne(ctx context.Context, mb out.Mailbox, mailbox string, email *domain.InboundEmail, current, total int, summary *domain.ProcessSummary, emit in.ProgressFunc) error {
	log := s.log.WithContext(ctx).WithField("email_id", email.ID)

	emit(domain.ProgressEvent{Type: domain.EventProcessing, Current: current, Total: total, Subject: email.Subject, Sender: email.Sender})
	emit(domain.ProgressEvent{Type: domain.EventClassifying, Subject: email.Subject})

	team, err := s.deps.Roster.Roster(ctx)
	if err != nil {
		return err
	}
	result := s.deps.Engine.Classify(ctx, domain.ClassificationRequest{
		Subject: email.Subject,
		Content: CleanContent(email.Body),
		Roster:  team,
	})
	if result.Fallback {
		summary.FallbackCount++
	}

	department := Department(result)
	confidence := result.Confidence
	emit(domain.ProgressEvent{Type: domain.EventClassified, Department: department, Confidence: &confidence, Recipients: result.Recipients})

	lowConfidence := result.Confidence < s.cfg.ConfidenceThreshold
	status := domain.StatusForwarded
	if lowConfidence {
		status = domain.StatusPendingReview
	}

	rec := &domain.ClassificationRecord{
		EmailID:    email.ID,
		Mailbox:    mailbox,
		Sender:     email.Sender,
		Subject:    email.Subject,
		Content:    email.Body,
		Categories: result.Categories,
		Confidence: result.Confidence,
		Recipients: result.Recipients,
		Reasoning:  result.Reasoning,
		Fallback:   result.Fallback,
		Status:     status,
	}
	if err := s.deps.Classifications.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}

	s.recordSinks(ctx, mailbox, email, result)

	senderAddress := ExtractAddress(email.Sender)
	if s.cfg.AutoReplyEnabled {
		emit(domain.ProgressEvent{Type: domain.EventReplying, Sender: email.Sender})
		err := mb.Send(ctx, &domain.OutboundEmail{
			To:        senderAddress,
			Subject:   ReplySubject(email.Subject),
			Body:      RenderAutoReply(s.cfg.AutoReplyTemplate, department),
			InReplyTo: email.MessageID,
			ThreadID:  email.ThreadID,
		})
		if err != nil {
			summary.ReplyFailed++
			log.Event("triage.reply_failed").WithError(err).WithField("to", senderAddress).Warn("auto-reply not sent")
			emit(domain.ProgressEvent{Type: domain.EventReplyFailed, Error: err.Error()})
		} else {
			summary.Replied++
			emit(domain.ProgressEvent{Type: domain.EventReplied, To: senderAddress})
		}
	}

	if s.cfg.AutoForward {
		for _, recipient := range result.Recipients {
			err := mb.Send(ctx, &domain.OutboundEmail{
				To:      recipient,
				Subject: ForwardSubject(email.Subject),
				Body:    ForwardBody(email.Subject, email.Body),
			})
			if err != nil {
				log.Event("triage.forward_failed").WithError(err).WithField("to", recipient).Warn("forward not sent")
				emit(domain.ProgressEvent{Type: domain.EventForwardFailed, To: recipient, Error: err.Error()})
				continue
			}
			summary.Forwarded++
			emit(domain.ProgressEvent{Type: domain.EventForwarded, To: recipient})
		}
	}

	if lowConfidence {
		entry := &domain.ReviewQueueEntry{
			EmailID: email.ID,
			Sender:  email.Sender,
			Subject: email.Subject,
			Content: email.Body,
			Reason:  ReviewReason(result.Confidence),
		}
		if err := s.deps.Reviews.Add(ctx, entry); err != nil {
			return fmt.Errorf("failed to queue review: %w", err)
		}
		summary.QueuedReview++
		emit(domain.ProgressEvent{Type: domain.EventReviewQueued, Reason: "Low confidence"})
	}

	if err := mb.MarkRead(ctx, email.ID); err != nil {
		return err
	}

	summary.Processed++
	emit(domain.ProgressEvent{Type: domain.EventEmailComplete, Current: current, Total: total})

	if s.deps.Events != nil {
		evt := &domain.TriagedEvent{
			Mailbox:    mailbox,
			EmailID:    email.ID,
			Sender:     senderAddress,
			Categories: result.Categories,
			Confidence: result.Confidence,
			Fallback:   result.Fallback,
			Queued:     lowConfidence,
		}
		if err := s.deps.Events.PublishTriaged(ctx, evt); err != nil {
			log.Event("triage.publish_failed").WithError(err).Warn("triaged event not published")
		}
	}
	return nil
}

// recordSinks feeds the optional archive and routing graph. Failures are logged only.
func (s *Service) recordSinks(ctx context.Context, mailbox string, email *domain.InboundEmail, result domain.ClassificationResult) {
	log := s.log.WithContext(ctx).WithField("email_id", email.ID)
	if s.deps.Archive != nil {
		if err := s.deps.Archive.Store(ctx, mailbox, email); err != nil {
			log.Event("triage.archive_failed").WithError(err).Warn("body not archived")
		}
	}
	if s.deps.Graph != nil {
		if err := s.deps.Graph.RecordRouting(ctx, ExtractAddress(email.Sender), result.Categories, result.Confidence); err != nil {
			log.Event("triage.graph_failed").WithError(err).Warn("routing not recorded")
		}
	}
}

func (s *Service) ManualForward(ctx context.Context, mailbox string, classificationID int64, recipient string) error {
	recipient = strings.TrimSpace(recipient)
	switch {
	case strings.TrimSpace(mailbox) == "":
		return apperr.MissingField("user_email")
	case recipient == "":
		return apperr.MissingField("recipient_email")
	case !roster.ValidEmail(recipient):
		return apperr.ValidationFailed("recipient_email", "not an email address")
	}

	rec, err := s.deps.Classifications.GetByID(ctx, classificationID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("email")
		}
		return apperr.DatabaseError("get classification", err)
	}

	mb, err := s.deps.Mailboxes.Open(ctx, mailbox)
	if err != nil {
		return err
	}
	err = mb.Send(ctx, &domain.OutboundEmail{
		To:      recipient,
		Subject: ForwardSubject(rec.Subject),
		Body:    ForwardBody(rec.Subject, rec.Content),
	})
	if err != nil {
		return err
	}

	if err := s.deps.Classifications.UpdateStatus(ctx, rec.ID, domain.StatusManuallyForwarded); err != nil {
		return apperr.DatabaseError("update classification status", err)
	}
	if s.deps.Stats != nil {
		s.deps.Stats.Invalidate(ctx)
	}
	s.log.WithContext(ctx).Event("triage.manual_forward").
		WithFields(map[string]any{"classification_id": rec.ID, "to": recipient}).
		Info("classification forwarded")
	return nil
}

func (s *Service) TestConnection(ctx context.Context, mailbox string) (*domain.MailboxProfile, error) {
	if strings.TrimSpace(mailbox) == "" {
		return nil, apperr.MissingField("email")
	}
	mb, err := s.deps.Mailboxes.Open(ctx, mailbox)
	if err != nil {
		return nil, err
	}
	return mb.Profile(ctx)
}

func (s *Service) Classify(ctx context.Context, subject, content string) (*domain.ClassificationResult, error) {
	if strings.TrimSpace(subject) == "" && strings.TrimSpace(content) == "" {
		return nil, apperr.BadRequest("subject or content is required")
	}
	team, err := s.deps.Roster.Roster(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("load roster", err)
	}
	result := s.deps.Engine.Classify(ctx, domain.ClassificationRequest{
		Subject: subject,
		Content: CleanContent(content),
		Roster:  team,
	})
	return &result, nil
}

var _ in.TriageService = (*Service)(nil)
