package triage

import (
	"testing"

	"triage_server/core/domain"
)

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Ada Lovelace <ada@example.com>", "ada@example.com"},
		{"<bob@example.com>", "bob@example.com"},
		{"  carol@example.com ", "carol@example.com"},
		{"Unknown", "Unknown"},
	}
	for _, tt := range tests {
		if got := ExtractAddress(tt.in); got != tt.want {
			t.Errorf("ExtractAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"tags and entities", "<p>Invoice &amp; receipt</p>\n<br>due", "Invoice & receipt due"},
		{"collapses whitespace", "a\n\n\tb   c", "a b c"},
		{"drops signature", "Please reset my password.\n-- \nAda\nCEO", "Please reset my password."},
		{"plain", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanContent(tt.in); got != tt.want {
				t.Errorf("CleanContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDepartment(t *testing.T) {
	if got := Department(domain.ClassificationResult{Categories: []string{"IT", "HR"}}); got != "IT" {
		t.Errorf("Department() = %q", got)
	}
	if got := Department(domain.ClassificationResult{}); got != "Unknown" {
		t.Errorf("Department(empty) = %q", got)
	}
}

func TestReviewReason(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.6, "Low confidence: 0.6"},
		{0.65, "Low confidence: 0.65"},
		{0, "Low confidence: 0"},
	}
	for _, tt := range tests {
		if got := ReviewReason(tt.in); got != tt.want {
			t.Errorf("ReviewReason(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestForwardBody(t *testing.T) {
	want := "---------- Forwarded message ---------\nSubject: Help\n\nbody text\n"
	if got := ForwardBody("Help", "body text"); got != want {
		t.Errorf("ForwardBody() = %q, want %q", got, want)
	}
}
