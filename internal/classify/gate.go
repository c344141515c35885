// Package classify turns free-text threads into decisions and profile fields
// using an LLM: a yes/no client gate and a structured field extractor.
package classify

import (
	"context"
	"fmt"
	"strings"

	"client-profile-service/internal/llm"
)

const gatePrompt = `You are a real estate agent. Determine if the following email thread is a conversation with a client or a potential client. Reply only with Yes or No.

%s`

// Gate decides whether a thread is a conversation with a client.
type Gate struct {
	provider llm.Provider
	maxChars int
}

// NewGate builds a gate on provider. maxChars > 0 limits how much of the
// thread is sent to the model.
func NewGate(provider llm.Provider, maxChars int) *Gate {
	return &Gate{provider: provider, maxChars: maxChars}
}

// IsClientThread asks the model and interprets the answer with IsYes.
func (g *Gate) IsClientThread(ctx context.Context, thread string) (bool, error) {
	prompt := fmt.Sprintf(gatePrompt, truncateRunes(thread, g.maxChars))
	answer, err := g.provider.Complete(ctx, prompt, llm.CompletionOpts{MaxTokens: 5})
	if err != nil {
		return false, fmt.Errorf("classifying thread with %s: %w", g.provider.Name(), err)
	}
	return IsYes(answer), nil
}

// IsYes reports whether a classifier answer contains "yes", ignoring case and
// surrounding space. Verbose answers like "Yes, because..." count.
func IsYes(answer string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(answer)), "yes")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
