package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/airobot/server/internal/binding"
	"github.com/airobot/server/internal/llm"
)

// Matcher picks the candidate action a message asks for. A nil id means no
// candidate matches.
type Matcher interface {
	MatchAction(ctx context.Context, message string, candidates []binding.Candidate) (*uint, error)
}

// Completer is the completion capability the LLM-backed implementations need.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error)
}

// ErrMalformedReply is returned when the model answers with neither an id nor null.
var ErrMalformedReply = errors.New("malformed model reply")

// LLMMatcher asks a completion model to choose an action id.
type LLMMatcher struct {
	llm Completer
}

func NewLLMMatcher(c Completer) *LLMMatcher {
	return &LLMMatcher{llm: c}
}

func (m *LLMMatcher) MatchAction(ctx context.Context, message string, candidates []binding.Candidate) (*uint, error) {
	reply, err := m.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: matchPrompt(candidates)},
		{Role: "user", Content: message},
	}, llm.Options{Temperature: 0.3, MaxTokens: 50})
	if err != nil {
		return nil, err
	}
	return parseMatch(reply)
}

func matchPrompt(candidates []binding.Candidate) string {
	var b strings.Builder
	b.WriteString("You control a robot. Pick the action that best matches the user's instruction.\nAvailable actions:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- ID: %d, name: %s, description: %s, trigger phrase: %s\n", c.ActionID, c.Name, c.Description, c.Prompt)
	}
	b.WriteString("Reply with the matching action ID only, or null if none matches. Do not explain.")
	return b.String()
}

// parseMatch accepts a bare unsigned id or null, optionally quoted.
func parseMatch(reply string) (*uint, error) {
	s := strings.Trim(strings.TrimSpace(reply), "`\"' ")
	if strings.EqualFold(s, "null") {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedReply, reply)
	}
	id := uint(n)
	return &id, nil
}

// MatchBySubstring returns the first candidate whose trigger phrase, or name
// when the phrase is empty, occurs in message ignoring case.
func MatchBySubstring(message string, candidates []binding.Candidate) *uint {
	lower := strings.ToLower(message)
	for _, c := range candidates {
		phrase := c.Prompt
		if phrase == "" {
			phrase = c.Name
		}
		phrase = strings.ToLower(phrase)
		if phrase != "" && strings.Contains(lower, phrase) {
			id := c.ActionID
			return &id
		}
	}
	return nil
}

// Responder produces a free-form reply when no action matched.
type Responder interface {
	Reply(ctx context.Context, message string) (string, error)
}

type LLMResponder struct {
	llm Completer
}

func NewLLMResponder(c Completer) *LLMResponder {
	return &LLMResponder{llm: c}
}

func (r *LLMResponder) Reply(ctx context.Context, message string) (string, error) {
	reply, err := r.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You are a friendly robot assistant. Answer briefly and clearly."},
		{Role: "user", Content: message},
	}, llm.Options{Temperature: 0.7, MaxTokens: 100})
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", ErrMalformedReply
	}
	return reply, nil
}

func fallbackReply(message string) string {
	return "I received your message: " + message
}
