package domain

import "time"

// UnknownDepartment labels a result that carries no category.
const UnknownDepartment = "Unknown"

// ProcessSummary counts what one inbox batch did.
type ProcessSummary struct {
	Mailbox       string `json:"mailbox"`
	Fetched       int    `json:"fetched"`
	Processed     int    `json:"processed_count"`
	Replied       int    `json:"replied"`
	ReplyFailed   int    `json:"reply_failed"`
	Forwarded     int    `json:"forwarded"`
	QueuedReview  int    `json:"queued_for_review"`
	FallbackCount int    `json:"fallback_count"`
}

// MailboxStatus reports whether a mailbox has a stored credential.
type MailboxStatus struct {
	Email         string     `json:"email"`
	Authenticated bool       `json:"authenticated"`
	Expiry        *time.Time `json:"expiry,omitempty"`
}

// EmailDetails is a stored classification plus whatever sinks know about it.
type EmailDetails struct {
	*ClassificationRecord
	ConfidenceLevel string        `json:"confidence_level"`
	Archived        *InboundEmail `json:"archived,omitempty"`
	SenderHistory   []string      `json:"sender_history,omitempty"`
}
