package triage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"triage_server/core/domain"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
	"triage_server/pkg/ratelimit"
)

const box = "team@example.com"

type harness struct {
	svc     *Service
	engine  *fakeEngine
	mailbox *fakeMailbox
	records *fakeClassifications
	reviews *fakeReviews
	events  *fakeEvents
	archive *fakeArchive
	stats   *fakeStats
}

func newHarness(cfg Config, emails ...*domain.InboundEmail) *harness {
	h := &harness{
		engine:  &fakeEngine{results: map[string]domain.ClassificationResult{}},
		mailbox: &fakeMailbox{emails: emails, sendErr: map[string]error{}},
		records: &fakeClassifications{},
		reviews: &fakeReviews{},
		events:  &fakeEvents{},
		archive: &fakeArchive{},
		stats:   &fakeStats{},
	}
	if cfg.AutoReplyTemplate == "" {
		cfg.AutoReplyTemplate = "Routed to {department}."
	}
	h.svc = NewService(Deps{
		Engine:          h.engine,
		Roster:          &fakeRoster{roster: domain.Roster{{Name: "IT", Members: []domain.TeamMember{{Name: "Bob", Email: "bob@co.com"}}}}},
		Mailboxes:       &fakeGateway{boxes: map[string]*fakeMailbox{box: h.mailbox}},
		Classifications: h.records,
		Reviews:         h.reviews,
		Archive:         h.archive,
		Events:          h.events,
		Stats:           h.stats,
	}, cfg, logger.Discard())
	return h
}

func collect(events *[]domain.ProgressEvent) func(domain.ProgressEvent) {
	return func(e domain.ProgressEvent) { *events = append(*events, e) }
}

func types(events []domain.ProgressEvent) string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Type
	}
	return strings.Join(names, ",")
}

func TestProcessInbox_EventSequence(t *testing.T) {
	h := newHarness(Config{AutoReplyEnabled: true, ConfidenceThreshold: 0.7},
		&domain.InboundEmail{ID: "m1", Sender: "Ada <ada@x.com>", Subject: "VPN broken", Body: "<b>help</b>", MessageID: "<m1@x>"},
		&domain.InboundEmail{ID: "m2", Sender: "eve@x.com", Subject: "Unclear", Body: "hmm"},
	)
	h.engine.results["Unclear"] = domain.ClassificationResult{Categories: []string{"General"}, Confidence: 0.6, Recipients: []string{"lead@co.com"}, Fallback: true}
	h.engine.results["VPN broken"] = domain.ClassificationResult{Categories: []string{"IT"}, Confidence: 0.92, Recipients: []string{"bob@co.com"}}

	var events []domain.ProgressEvent
	summary, err := h.svc.ProcessInbox(context.Background(), box, 5, collect(&events))
	if err != nil {
		t.Fatalf("ProcessInbox() error = %v", err)
	}

	want := "status,status,status,fetched," +
		"processing,classifying,classified,replying,replied,email_complete," +
		"processing,classifying,classified,replying,replied,review_queued,email_complete," +
		"complete"
	if got := types(events); got != want {
		t.Errorf("events =\n%s\nwant\n%s", got, want)
	}
	if summary.Processed != 2 || summary.QueuedReview != 1 || summary.Replied != 2 || summary.FallbackCount != 1 {
		t.Errorf("summary = %+v", summary)
	}

	last := events[len(events)-1]
	if last.Message != "Successfully processed 2 emails" || last.Processed != 2 {
		t.Errorf("complete event = %+v", last)
	}

	if h.engine.requests[0].Content != "help" {
		t.Errorf("classifier content = %q, want cleaned body", h.engine.requests[0].Content)
	}

	reply := h.mailbox.sent[0]
	if reply.To != "ada@x.com" || reply.Subject != "Re: VPN broken" || reply.Body != "Routed to IT." || reply.InReplyTo != "<m1@x>" {
		t.Errorf("reply = %+v", reply)
	}

	if h.records.records[0].Status != domain.StatusForwarded || h.records.records[1].Status != domain.StatusPendingReview {
		t.Errorf("statuses = %s, %s", h.records.records[0].Status, h.records.records[1].Status)
	}
	if h.records.records[0].Content != "<b>help</b>" {
		t.Errorf("stored content should be the raw body, got %q", h.records.records[0].Content)
	}
	if len(h.reviews.entries) != 1 || h.reviews.entries[0].Reason != "Low confidence: 0.6" {
		t.Errorf("review entries = %+v", h.reviews.entries)
	}
	if strings.Join(h.mailbox.markedIDs, ",") != "m1,m2" {
		t.Errorf("marked = %v", h.mailbox.markedIDs)
	}
	if len(h.events.events) != 2 || !h.events.events[1].Queued {
		t.Errorf("published = %+v", h.events.events)
	}
	if len(h.archive.stored) != 2 {
		t.Errorf("archived = %v", h.archive.stored)
	}
	if h.stats.invalidated != 1 {
		t.Errorf("stats invalidated %d times", h.stats.invalidated)
	}
}

func TestProcessInbox_ConfidenceThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		queued    int
		status    string
	}{
		{"zero never queues", 0, 0, domain.StatusForwarded},
		{"default queues fallback", DefaultConfidenceThreshold, 1, domain.StatusPendingReview},
		{"out of range uses default", -1, 1, domain.StatusPendingReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(Config{ConfidenceThreshold: tt.threshold},
				&domain.InboundEmail{ID: "m1", Sender: "a@x.com", Subject: "Unclear", Body: "b"},
			)
			h.engine.results["Unclear"] = domain.ClassificationResult{Categories: []string{"General"}, Confidence: 0.6, Recipients: []string{"lead@co.com"}, Fallback: true}

			summary, err := h.svc.ProcessInbox(context.Background(), box, 10, func(domain.ProgressEvent) {})
			if err != nil {
				t.Fatalf("ProcessInbox() error = %v", err)
			}
			if summary.QueuedReview != tt.queued || len(h.reviews.entries) != tt.queued {
				t.Errorf("queued = %d (entries %d), want %d", summary.QueuedReview, len(h.reviews.entries), tt.queued)
			}
			if got := h.records.records[0].Status; got != tt.status {
				t.Errorf("status = %s, want %s", got, tt.status)
			}
		})
	}
}

func TestProcessInbox_NoUnread(t *testing.T) {
	h := newHarness(Config{AutoReplyEnabled: true})

	var events []domain.ProgressEvent
	summary, err := h.svc.ProcessInbox(context.Background(), box, 0, collect(&events))
	if err != nil {
		t.Fatalf("ProcessInbox() error = %v", err)
	}
	if got := types(events); got != "status,status,status,fetched,complete" {
		t.Errorf("events = %s", got)
	}
	if events[len(events)-1].Message != "No unread emails found" {
		t.Errorf("complete message = %q", events[len(events)-1].Message)
	}
	if summary.Processed != 0 || h.stats.invalidated != 0 {
		t.Errorf("summary = %+v, invalidated = %d", summary, h.stats.invalidated)
	}
}

func TestProcessInbox_ReplyFailureContinues(t *testing.T) {
	h := newHarness(Config{AutoReplyEnabled: true},
		&domain.InboundEmail{ID: "m1", Sender: "ada@x.com", Subject: "Hi", Body: "b"},
	)
	h.mailbox.sendErr["ada@x.com"] = errors.New("smtp down")

	var events []domain.ProgressEvent
	summary, err := h.svc.ProcessInbox(context.Background(), box, 10, collect(&events))
	if err != nil {
		t.Fatalf("ProcessInbox() error = %v", err)
	}
	if !strings.Contains(types(events), "replying,reply_failed,email_complete") {
		t.Errorf("events = %s", types(events))
	}
	if summary.ReplyFailed != 1 || summary.Processed != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestProcessInbox_AutoForward(t *testing.T) {
	h := newHarness(Config{AutoForward: true},
		&domain.InboundEmail{ID: "m1", Sender: "ada@x.com", Subject: "Payroll", Body: "question"},
	)
	h.engine.results["Payroll"] = domain.ClassificationResult{Categories: []string{"HR"}, Confidence: 0.9, Recipients: []string{"hr@co.com", "bad@co.com"}}
	h.mailbox.sendErr["bad@co.com"] = errors.New("rejected")

	var events []domain.ProgressEvent
	summary, err := h.svc.ProcessInbox(context.Background(), box, 10, collect(&events))
	if err != nil {
		t.Fatalf("ProcessInbox() error = %v", err)
	}
	if !strings.Contains(types(events), "classified,forwarded,forward_failed,email_complete") {
		t.Errorf("events = %s", types(events))
	}
	if summary.Forwarded != 1 || summary.Replied != 0 {
		t.Errorf("summary = %+v", summary)
	}
	fwd := h.mailbox.sent[0]
	if fwd.Subject != "Fwd: Payroll" || fwd.Body != ForwardBody("Payroll", "question") {
		t.Errorf("forward = %+v", fwd)
	}
}

func TestProcessInbox_Aborts(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		want  string
	}{
		{
			name:  "save failure",
			setup: func(h *harness) { h.records.saveErr = errors.New("db down") },
			want:  "status,status,status,fetched,processing,classifying,classified,error",
		},
		{
			name:  "fetch failure",
			setup: func(h *harness) { h.mailbox.fetchErr = errors.New("gmail down") },
			want:  "status,status,status,error",
		},
		{
			name:  "mark read failure",
			setup: func(h *harness) { h.mailbox.markErr = errors.New("modify failed") },
			want:  "status,status,status,fetched,processing,classifying,classified,error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(Config{}, &domain.InboundEmail{ID: "m1", Sender: "a@x.com", Subject: "s", Body: "b"})
			tt.setup(h)

			var events []domain.ProgressEvent
			_, err := h.svc.ProcessInbox(context.Background(), box, 10, collect(&events))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := types(events); got != tt.want {
				t.Errorf("events = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProcessInbox_UnknownMailbox(t *testing.T) {
	h := newHarness(Config{})
	var events []domain.ProgressEvent
	if _, err := h.svc.ProcessInbox(context.Background(), "nobody@x.com", 10, collect(&events)); err == nil {
		t.Fatal("expected error")
	}
	if got := types(events); got != "status,error" {
		t.Errorf("events = %s", got)
	}
}

func TestProcessInbox_MissingMailbox(t *testing.T) {
	h := newHarness(Config{})
	_, err := h.svc.ProcessInbox(context.Background(), " ", 10, nil)
	if !apperr.HasCode(err, apperr.CodeMissingField) {
		t.Errorf("err = %v", err)
	}
}

func TestManualForward(t *testing.T) {
	h := newHarness(Config{})
	rec := &domain.ClassificationRecord{EmailID: "m1", Subject: "Help", Content: "body"}
	_ = h.records.Save(context.Background(), rec)

	if err := h.svc.ManualForward(context.Background(), box, rec.ID, "it@co.com"); err != nil {
		t.Fatalf("ManualForward() error = %v", err)
	}
	if len(h.mailbox.sent) != 1 || h.mailbox.sent[0].Subject != "Fwd: Help" || h.mailbox.sent[0].To != "it@co.com" {
		t.Errorf("sent = %+v", h.mailbox.sent)
	}
	if h.records.status[rec.ID] != domain.StatusManuallyForwarded {
		t.Errorf("status = %q", h.records.status[rec.ID])
	}

	tests := []struct {
		name      string
		id        int64
		recipient string
		code      string
	}{
		{"unknown id", 99, "it@co.com", apperr.CodeNotFound},
		{"bad recipient", rec.ID, "nope", apperr.CodeValidationFailed},
		{"missing recipient", rec.ID, "", apperr.CodeMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.svc.ManualForward(context.Background(), box, tt.id, tt.recipient)
			if !apperr.HasCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestTestConnection(t *testing.T) {
	h := newHarness(Config{})
	h.mailbox.profile = &domain.MailboxProfile{EmailAddress: box, MessagesTotal: 3}

	p, err := h.svc.TestConnection(context.Background(), box)
	if err != nil || p.EmailAddress != box {
		t.Errorf("TestConnection() = %+v, %v", p, err)
	}
}

func TestClassify(t *testing.T) {
	h := newHarness(Config{})
	if _, err := h.svc.Classify(context.Background(), "", " "); !apperr.HasCode(err, apperr.CodeBadRequest) {
		t.Errorf("empty input err = %v", err)
	}

	res, err := h.svc.Classify(context.Background(), "Printer", "<i>jammed</i>")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.PrimaryCategory() != "General" {
		t.Errorf("result = %+v", res)
	}
	if got := h.engine.requests[0]; got.Content != "jammed" || len(got.Roster) != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestProcessInbox_MailboxAlreadyLocked(t *testing.T) {
	h := newHarness(Config{})
	locks := ratelimit.NewBatchLock(nil)
	h.svc.deps.Locks = locks

	release, ok, _ := locks.TryLock(context.Background(), box, time.Minute)
	if !ok {
		t.Fatal("could not take lock")
	}

	var events []domain.ProgressEvent
	_, err := h.svc.ProcessInbox(context.Background(), box, 0, collect(&events))
	if !apperr.HasCode(err, apperr.CodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if got := types(events); got != "error" {
		t.Errorf("events = %s", got)
	}

	release()
	if _, err := h.svc.ProcessInbox(context.Background(), box, 0, nil); err != nil {
		t.Errorf("after release: %v", err)
	}
	if _, ok, _ := locks.TryLock(context.Background(), box, time.Minute); !ok {
		t.Error("batch did not release its lock")
	}
}
