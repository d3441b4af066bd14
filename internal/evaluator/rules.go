package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jason-s-yu/codearena/internal/models"
)

// RuleEvaluator scores code statically against a challenge's checks. It is
// the default when no remote evaluator is configured.
type RuleEvaluator struct{}

func NewRuleEvaluator() *RuleEvaluator {
	return &RuleEvaluator{}
}

func (RuleEvaluator) Evaluate(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return models.Evaluation{}, err
	}
	if err := CheckDenylist(code); err != nil {
		return models.Evaluation{}, err
	}
	if strings.TrimSpace(code) == "" {
		return models.Evaluation{Output: "No code submitted"}, nil
	}
	if len(ch.Checks) == 0 {
		return models.Evaluation{}, fmt.Errorf("challenge %s has no checks", ch.ID)
	}

	var (
		score  int
		passed = true
		lines  = make([]string, 0, len(ch.Checks))
	)
	for _, chk := range ch.Checks {
		re, err := regexp.Compile(chk.Pattern)
		if err != nil {
			return models.Evaluation{}, fmt.Errorf("check %q: %w", chk.Name, err)
		}
		if re.MatchString(code) {
			score += chk.Points
			lines = append(lines, "PASS "+chk.Name)
		} else {
			passed = false
			lines = append(lines, "FAIL "+chk.Name)
		}
	}
	return models.Evaluation{Score: score, Passed: passed, Output: strings.Join(lines, "\n")}, nil
}
