package domain

import "time"

// ClassificationRequest is the engine input. Roster is resolved by the caller per call.
type ClassificationRequest struct {
	Subject string
	Content string
	Roster  Roster
}

// ClassificationResult is the routing decision for one email.
type ClassificationResult struct {
	Categories []string `json:"categories"`
	Confidence float64  `json:"confidence"`
	Recipients []string `json:"recipients"`
	Reasoning  *string  `json:"reasoning"`
	// Fallback is set when keyword matching produced the result instead of the model.
	Fallback bool `json:"fallback"`
}

// PrimaryCategory is the first category, or "" if none.
func (r ClassificationResult) PrimaryCategory() string {
	if len(r.Categories) == 0 {
		return ""
	}
	return r.Categories[0]
}

// Classification status values stored with a record.
const (
	StatusForwarded         = "forwarded"
	StatusPendingReview     = "pending_review"
	StatusManuallyForwarded = "manually_forwarded"
)

// ClassificationRecord is a persisted classification.
type ClassificationRecord struct {
	ID         int64     `json:"id"`
	EmailID    string    `json:"email_id"`
	Mailbox    string    `json:"mailbox"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Content    string    `json:"content"`
	Categories []string  `json:"categories"`
	Confidence float64   `json:"confidence"`
	Recipients []string  `json:"recipients"`
	Reasoning  *string   `json:"reasoning,omitempty"`
	Fallback   bool      `json:"fallback"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConfidenceLevel buckets a score into High (>=0.9), Medium (>=0.7) or Low.
func ConfidenceLevel(score float64) string {
	switch {
	case score >= 0.9:
		return "High"
	case score >= 0.7:
		return "Medium"
	default:
		return "Low"
	}
}

// ReviewQueueEntry is a low-confidence classification waiting for a person.
type ReviewQueueEntry struct {
	ID        int64     `json:"id"`
	EmailID   string    `json:"email_id"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	Reason    string    `json:"reason"`
	Reviewed  bool      `json:"reviewed"`
	CreatedAt time.Time `json:"created_at"`
}

// DashboardStats summarizes stored classifications.
type DashboardStats struct {
	TotalProcessed         int            `json:"total_processed"`
	TodayProcessed         int            `json:"today_processed"`
	PendingReviews         int            `json:"pending_reviews"`
	AverageConfidence      float64        `json:"average_confidence"`
	FallbackCount          int            `json:"fallback_count"`
	DepartmentDistribution map[string]int `json:"department_distribution"`
}
