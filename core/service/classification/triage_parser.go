package classification

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
)

// ErrMalformedResponse covers undecodable output and missing required keys.
var ErrMalformedResponse = errors.New("malformed classification response")

var requiredKeys = []string{"categories", "confidence", "recipients"}

var leadingFence = regexp.MustCompile("^```[A-Za-z0-9_+-]*")

// StripFences removes code fence markers when the text opens with one.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = leadingFence.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// ParseResponse decodes a backend reply into a result. Confidence is clamped to
// [0,1]; a missing or null reasoning becomes nil.
func ParseResponse(raw string) (domain.ClassificationResult, error) {
	var res domain.ClassificationResult

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(StripFences(raw)), &fields); err != nil {
		return res, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fields == nil {
		return res, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}
	for _, k := range requiredKeys {
		if _, ok := fields[k]; !ok {
			return res, fmt.Errorf("%w: missing %q", ErrMalformedResponse, k)
		}
	}

	if err := json.Unmarshal(fields["categories"], &res.Categories); err != nil {
		return res, fmt.Errorf("%w: categories: %v", ErrMalformedResponse, err)
	}
	if len(res.Categories) == 0 {
		return res, fmt.Errorf("%w: empty categories", ErrMalformedResponse)
	}

	var confidence *float64
	if err := json.Unmarshal(fields["confidence"], &confidence); err != nil {
		return res, fmt.Errorf("%w: confidence: %v", ErrMalformedResponse, err)
	}
	if confidence == nil {
		return res, fmt.Errorf("%w: null confidence", ErrMalformedResponse)
	}
	res.Confidence = clamp01(*confidence)

	if err := json.Unmarshal(fields["recipients"], &res.Recipients); err != nil {
		return res, fmt.Errorf("%w: recipients: %v", ErrMalformedResponse, err)
	}
	if res.Recipients == nil {
		res.Recipients = []string{}
	}

	if r, ok := fields["reasoning"]; ok {
		// a non-string reasoning is dropped rather than failing the parse
		var reasoning *string
		if err := json.Unmarshal(r, &reasoning); err == nil {
			res.Reasoning = reasoning
		}
	}
	return res, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

var quotaSignals = []string{"429", "quota", "resource_exhausted", "rate limit"}

// IsQuotaError reports whether the error text carries a quota or rate-limit signal.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range quotaSignals {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
