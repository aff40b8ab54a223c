package classification

import (
	"strings"

	"triage_server/core/domain"
)

const (
	FallbackConfidence = 0.6
	FallbackReasoning  = "Classified using fallback keyword matching"
)

// Fallback routes by department-name substring match. It is deterministic and
// never fails: no match picks the first department, an empty roster yields
// "General", and no resolvable recipients yields the team lead.
func Fallback(subject, content string, roster domain.Roster, teamLead string) domain.ClassificationResult {
	text := strings.ToLower(subject + " " + content)

	var matches []string
	for _, d := range roster {
		if d.Name != "" && strings.Contains(text, strings.ToLower(d.Name)) {
			matches = append(matches, d.Name)
		}
	}
	if len(matches) == 0 {
		if roster.IsEmpty() {
			matches = []string{domain.GeneralDepartment}
		} else {
			matches = []string{roster[0].Name}
		}
	}

	recipients := []string{}
	for _, name := range matches {
		if d, ok := roster.Lookup(name); ok {
			for _, m := range d.Members {
				recipients = append(recipients, m.Email)
			}
		}
	}
	if len(recipients) == 0 && teamLead != "" {
		recipients = []string{teamLead}
	}

	reasoning := FallbackReasoning
	return domain.ClassificationResult{
		Categories: matches,
		Confidence: FallbackConfidence,
		Recipients: recipients,
		Reasoning:  &reasoning,
		Fallback:   true,
	}
}
