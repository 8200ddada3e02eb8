// Package attempt provides a small ordered-fallback combinator: try
// strategies in order, first success wins, and the joined failure of every
// strategy propagates only when all of them fail. It backs the LLM
// cloud-to-local chain.
package attempt

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoStrategies is returned when First is called with no steps.
var ErrNoStrategies = errors.New("no strategies to attempt")

// Step is one named strategy in an ordered chain.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// First runs steps in order and returns the first successful result together
// with the name of the step that produced it. When every step fails the
// joined errors are returned, each prefixed with its step name.
func First[T any](ctx context.Context, steps ...Step[T]) (T, string, error) {
	var zero T
	if len(steps) == 0 {
		return zero, "", ErrNoStrategies
	}

	var errs []error
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		v, err := s.Run(ctx)
		if err == nil {
			return v, s.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return zero, "", errors.Join(errs...)
}
