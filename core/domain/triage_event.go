package domain

// Progress event types streamed while a batch is processed.
const (
	EventStatus        = "status"
	EventFetched       = "fetched"
	EventProcessing    = "processing"
	EventClassifying   = "classifying"
	EventClassified    = "classified"
	EventReplying      = "replying"
	EventReplied       = "replied"
	EventReplyFailed   = "reply_failed"
	EventForwarded     = "forwarded"
	EventForwardFailed = "forward_failed"
	EventReviewQueued  = "review_queued"
	EventEmailComplete = "email_complete"
	EventComplete      = "complete"
	EventError         = "error"
)

// ProgressEvent is one step of inbox processing. Zero fields are omitted on the wire.
type ProgressEvent struct {
	Type       string   `json:"type"`
	Message    string   `json:"message,omitempty"`
	Step       int      `json:"step,omitempty"`
	Total      int      `json:"total,omitempty"`
	Current    int      `json:"current,omitempty"`
	Count      int      `json:"count,omitempty"`
	Processed  int      `json:"processed,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Sender     string   `json:"sender,omitempty"`
	Department string   `json:"department,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	To         string   `json:"to,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// TriagedEvent is published on the event stream after each email.
type TriagedEvent struct {
	ID         string   `json:"id"`
	Mailbox    string   `json:"mailbox"`
	EmailID    string   `json:"email_id"`
	Sender     string   `json:"sender"`
	Categories []string `json:"categories"`
	Confidence float64  `json:"confidence"`
	Fallback   bool     `json:"fallback"`
	Queued     bool     `json:"queued_for_review"`
}
