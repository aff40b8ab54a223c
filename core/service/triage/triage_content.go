package triage

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"triage_server/core/domain"
)

var (
	addressPattern   = regexp.MustCompile(`<(.+?)>`)
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
	signaturePattern = regexp.MustCompile(`(?s)(^|\n)--[ \t]*\r?\n.*$`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// ExtractAddress pulls a@b.com out of "Name <a@b.com>". Bare addresses are trimmed.
func ExtractAddress(sender string) string {
	if m := addressPattern.FindStringSubmatch(sender); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(sender)
}

// CleanContent turns a message body into a single line of plain text for the classifier.
func CleanContent(body string) string {
	s := tagPattern.ReplaceAllString(body, "")
	s = html.UnescapeString(s)
	s = signaturePattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Department is the primary category, or "Unknown".
func Department(r domain.ClassificationResult) string {
	if d := r.PrimaryCategory(); d != "" {
		return d
	}
	return domain.UnknownDepartment
}

func RenderAutoReply(template, department string) string {
	return strings.ReplaceAll(template, "{department}", department)
}

func ReplySubject(subject string) string   { return "Re: " + subject }
func ForwardSubject(subject string) string { return "Fwd: " + subject }

func ForwardBody(subject, content string) string {
	return "---------- Forwarded message ---------\nSubject: " + subject + "\n\n" + content + "\n"
}

// ReviewReason renders the score the shortest way that round-trips, e.g. "Low confidence: 0.6".
func ReviewReason(confidence float64) string {
	return "Low confidence: " + strconv.FormatFloat(confidence, 'f', -1, 64)
}
