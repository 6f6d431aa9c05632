// Package responder generates the reply text for a voter submission.
package responder

import "context"

// Generator produces a response for a fully built prompt. The prompt carries
// all candidate and voter context; implementations add nothing but the
// system instruction.
type Generator interface {
	GenerateResponse(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
