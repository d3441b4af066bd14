// Package evaluator is the boundary to whatever runs submitted code. The
// session layer only relies on the score/passed/output contract.
package evaluator

import (
	"context"

	"github.com/jason-s-yu/codearena/internal/models"
)

// Evaluator runs code against a challenge.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error)
}

// Func adapts a plain function to Evaluator.
type Func func(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error)

func (f Func) Evaluate(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
	return f(ctx, code, ch)
}
