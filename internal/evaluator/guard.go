package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/jason-s-yu/codearena/internal/common"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/sirupsen/logrus"
)

// Guard makes evaluation total: it bounds each call by a timeout and turns
// every failure (error, panic, timeout) into a score-0 evaluation whose output
// is the error text.
type Guard struct {
	next    Evaluator
	timeout time.Duration
	logger  *logrus.Logger
}

func NewGuard(next Evaluator, timeout time.Duration, logger *logrus.Logger) *Guard {
	return &Guard{next: next, timeout: timeout, logger: logger}
}

type outcome struct {
	ev  models.Evaluation
	err error
}

// Run evaluates code and never fails. It returns once the evaluator answers or
// the timeout elapses, whichever comes first.
func (g *Guard) Run(ctx context.Context, code string, ch models.Challenge) models.Evaluation {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("evaluator panic: %v", r)}
			}
		}()
		ev, err := g.next.Evaluate(ctx, code, ch)
		done <- outcome{ev: ev, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res = outcome{err: fmt.Errorf("evaluation timed out: %w", ctx.Err())}
	}

	if res.err != nil {
		err := fmt.Errorf("%w: %v", common.ErrEvaluation, res.err)
		if g.logger != nil {
			g.logger.WithField("challenge", ch.ID).Warnf("Evaluation failed: %v", err)
		}
		return models.Evaluation{Score: 0, Passed: false, Output: res.err.Error()}
	}
	if res.ev.Score < 0 {
		res.ev.Score = 0
	}
	return res.ev
}
