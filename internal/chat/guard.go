package chat

import (
	"context"

	"github.com/msaada/backend/internal/circuitbreaker"
)

// GuardedGenerator wraps a Generator with a circuit breaker so a dead
// generative backend fails fast into the pipeline's canned fallback
// instead of holding every chat request for the full timeout.
type GuardedGenerator struct {
	gen     Generator
	breaker *circuitbreaker.Breaker
}

// Guard wraps gen with the given breaker.
func Guard(gen Generator, breaker *circuitbreaker.Breaker) *GuardedGenerator {
	return &GuardedGenerator{gen: gen, breaker: breaker}
}

func (g *GuardedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := g.gen.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
