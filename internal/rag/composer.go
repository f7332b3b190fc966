package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/knowledge"
	"github.com/sitesage/sitesage/internal/session"
	"github.com/sitesage/sitesage/internal/tenant"
)

// HistoryWindow bounds how many recent turns enter the prompt.
const HistoryWindow = 10

// FallbackAnswer is returned when retrieval or completion fails and the
// tenant has no fallback message configured.
const FallbackAnswer = "I'm sorry, I couldn't process that right now. Please try again in a moment."

const systemInstruction = `You are a website assistant. Answer the visitor's question using only the provided website context.
If the context is insufficient to answer, say so honestly instead of guessing.
Be concise. Cite sources by their number (for example [1]) when relevant.`

// ContextRetriever is the retrieval step the composer depends on.
type ContextRetriever interface {
	Retrieve(ctx context.Context, tenantID uuid.UUID, query string, opts RetrieveOptions) *Retrieval
}

// Completer is the completion-provider boundary.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AnswerOptions tune one answer.
type AnswerOptions struct {
	// Limit and Threshold pass through to retrieval.
	Limit     int
	Threshold float64

	// IncludeContext surfaces the retrieved chunks on the Answer for
	// logging or UI. It does not change the answer or its sources.
	IncludeContext bool
}

// Answer is the composed reply for one query.
type Answer struct {
	// Text is the model's reply, verbatim, or a fallback message.
	Text string

	// Sources are the distinct page URLs the answer was grounded on.
	Sources []string

	// ContextUsed counts the chunks that grounded the answer.
	ContextUsed int

	// Context holds the retrieved chunks when AnswerOptions.IncludeContext
	// was set; nil otherwise.
	Context []knowledge.Result
}

// Composer builds grounded prompts and produces answers.
//
// Composer never returns an error to its caller: every failure degrades to
// a fallback Answer so the chat widget always has something to show.
type Composer struct {
	retriever ContextRetriever
	completer Completer
	window    int
	logger    *slog.Logger
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithHistoryWindow overrides how many recent turns enter the prompt.
// n <= 0 keeps the HistoryWindow default.
func WithHistoryWindow(n int) ComposerOption {
	return func(c *Composer) {
		if n > 0 {
			c.window = n
		}
	}
}

// NewComposer creates a Composer.
func NewComposer(retriever ContextRetriever, completer Completer, logger *slog.Logger, opts ...ComposerOption) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Composer{retriever: retriever, completer: completer, window: HistoryWindow, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Answer responds to a visitor query for the given tenant.
//
// history is the session's recent turns, oldest first; only the trailing
// window of turns enters the prompt (HistoryWindow unless overridden).
func (c *Composer) Answer(ctx context.Context, tn *tenant.Tenant, query string, history []session.Turn, opts AnswerOptions) Answer {
	retrieval := c.retriever.Retrieve(ctx, tn.ID, query, RetrieveOptions{
		Limit:     opts.Limit,
		Threshold: opts.Threshold,
	})

	prompt := buildPrompt(retrieval, history, query, c.window)
	system := systemInstruction
	if tn.Settings.Language != "" {
		system += "\nRespond in " + tn.Settings.Language + "."
	}

	text, err := c.completer.Complete(ctx, system, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		c.logger.Error("completion failed, returning fallback",
			"tenant", tn.ID, "error", err)
		return Answer{Text: fallbackFor(tn)}
	}

	answer := Answer{
		Text:        text,
		Sources:     retrieval.Sources(),
		ContextUsed: len(retrieval.Chunks),
	}
	if opts.IncludeContext {
		answer.Context = retrieval.Chunks
	}
	return answer
}

// fallbackFor prefers the tenant's configured fallback message.
func fallbackFor(tn *tenant.Tenant) string {
	if msg := strings.TrimSpace(tn.Settings.FallbackMessage); msg != "" {
		return msg
	}
	return FallbackAnswer
}

// buildPrompt assembles the context block, the history block and the query
// into one completion prompt.
func buildPrompt(retrieval *Retrieval, history []session.Turn, query string, window int) string {
	var b strings.Builder

	if len(retrieval.Chunks) > 0 {
		b.WriteString("Website context:\n")
		for i, chunk := range retrieval.Chunks {
			fmt.Fprintf(&b, "[%d] (%s)\n%s\n\n", i+1, chunk.Chunk.SourceURL, chunk.Chunk.Content)
		}
	} else {
		b.WriteString("Website context: none available for this question.\n\n")
	}

	if len(history) > window {
		history = history[len(history)-window:]
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("Visitor question: ")
	b.WriteString(query)
	return b.String()
}
