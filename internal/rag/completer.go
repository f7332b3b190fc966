package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// completionTimeout bounds one model call; a hung provider must not pin a
// chat request forever.
const completionTimeout = 60 * time.Second

// ErrEmptyCompletion indicates the model returned no usable text.
var ErrEmptyCompletion = errors.New("model returned empty completion")

// GenkitCompleter calls the configured chat model through Genkit.
type GenkitCompleter struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitCompleter creates a Completer for the named model, e.g.
// "googleai/gemini-2.5-flash".
func NewGenkitCompleter(g *genkit.Genkit, modelName string) *GenkitCompleter {
	return &GenkitCompleter{g: g, modelName: modelName}
}

// Complete implements Completer.
func (c *GenkitCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
