package out

import "context"

// GenerativeBackend returns a text completion for a prompt. Errors carry the
// provider message so callers can look for quota signals in it.
type GenerativeBackend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
