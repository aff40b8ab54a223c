package domain

import "time"

// InboundEmail is an unread message fetched from a mailbox.
type InboundEmail struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	MessageID  string    `json:"message_id,omitempty"` // RFC 5322 Message-ID header
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Snippet    string    `json:"snippet"`
	ReceivedAt time.Time `json:"received_at"`
}

// OutboundEmail is a plain-text message to send.
type OutboundEmail struct {
	To        string
	Subject   string
	Body      string
	InReplyTo string
	ThreadID  string
}

// MailboxProfile is what the provider reports about a connected account.
type MailboxProfile struct {
	EmailAddress  string `json:"email_address"`
	MessagesTotal int64  `json:"messages_total"`
	ThreadsTotal  int64  `json:"threads_total"`
}

// MailboxToken is the stored OAuth credential for one mailbox.
type MailboxToken struct {
	Mailbox      string    `json:"mailbox"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"-"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
