package mongodb

import (
	"strings"
	"testing"
	"time"

	"triage_server/core/domain"
)

func TestDocumentConversion(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		body       string
		compressed bool
	}{
		{"small body stays raw", "short body", false},
		{"large body is compressed", strings.Repeat("invoice overdue ", 200), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &domain.InboundEmail{ID: "m1", Sender: "a@b.com", Subject: "s", Body: tt.body}
			doc, err := toDocument("team@example.com", in, now, time.Hour)
			if err != nil {
				t.Fatalf("toDocument() error = %v", err)
			}
			if doc.IsCompressed != tt.compressed {
				t.Errorf("IsCompressed = %v, want %v", doc.IsCompressed, tt.compressed)
			}
			if doc.OriginalSize != len(tt.body) {
				t.Errorf("OriginalSize = %d", doc.OriginalSize)
			}
			if !doc.ExpiresAt.Equal(now.Add(time.Hour)) {
				t.Errorf("ExpiresAt = %v", doc.ExpiresAt)
			}

			got, err := doc.toEntity()
			if err != nil {
				t.Fatalf("toEntity() error = %v", err)
			}
			if got.Body != tt.body || got.ID != "m1" {
				t.Errorf("restored = %+v", got)
			}
		})
	}
}
