package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jason-s-yu/codearena/internal/challenge"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtin(t *testing.T, id string) models.Challenge {
	t.Helper()
	for _, ch := range challenge.Builtin() {
		if ch.ID == id {
			return ch
		}
	}
	t.Fatalf("no builtin challenge %s", id)
	return models.Challenge{}
}

func TestRuleEvaluatorFullMarks(t *testing.T) {
	code := `def solve_challenge():
    a = 5
    b = 10
    c = 15
    return a + b + c`
	ev, err := NewRuleEvaluator().Evaluate(context.Background(), code, builtin(t, "1"))
	require.NoError(t, err)
	assert.Equal(t, 100, ev.Score)
	assert.True(t, ev.Passed)
	assert.Contains(t, ev.Output, "PASS returns the sum")
}

func TestRuleEvaluatorPartialCredit(t *testing.T) {
	ev, err := NewRuleEvaluator().Evaluate(context.Background(), "a = 5\nb = 10", builtin(t, "1"))
	require.NoError(t, err)
	assert.Equal(t, 50, ev.Score)
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Output, "FAIL assigns c")
}

func TestRuleEvaluatorEmptyCode(t *testing.T) {
	ev, err := NewRuleEvaluator().Evaluate(context.Background(), "   ", builtin(t, "2"))
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Score)
	assert.False(t, ev.Passed)
}

func TestDenylist(t *testing.T) {
	for _, code := range []string{"import sys", "os.system('ls')", "__import__('x')", "eval(1)", "open('f')", "import subprocess"} {
		assert.ErrorIs(t, CheckDenylist(code), ErrDangerousCode, code)
	}
	assert.NoError(t, CheckDenylist("def f():\n    return [x * 2 for x in xs]"))

	_, err := NewRuleEvaluator().Evaluate(context.Background(), "exec('1')", builtin(t, "1"))
	assert.ErrorIs(t, err, ErrDangerousCode)
}

func TestGuardConvertsErrorsToZeroScore(t *testing.T) {
	failing := Func(func(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
		return models.Evaluation{}, errors.New("sandbox crashed")
	})
	ev := NewGuard(failing, time.Second, nil).Run(context.Background(), "x", models.Challenge{ID: "1"})
	assert.Equal(t, models.Evaluation{Score: 0, Passed: false, Output: "sandbox crashed"}, ev)
}

func TestGuardRecoversPanics(t *testing.T) {
	panicky := Func(func(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
		panic("nil map")
	})
	ev := NewGuard(panicky, time.Second, nil).Run(context.Background(), "x", models.Challenge{})
	assert.Equal(t, 0, ev.Score)
	assert.Contains(t, ev.Output, "evaluator panic")
}

func TestGuardTimesOutStalledEvaluator(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stalled := Func(func(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
		<-release // ignores ctx on purpose
		return models.Evaluation{Score: 100, Passed: true}, nil
	})

	start := time.Now()
	ev := NewGuard(stalled, 30*time.Millisecond, nil).Run(context.Background(), "x", models.Challenge{})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, ev.Score)
	assert.False(t, ev.Passed)
	assert.Contains(t, ev.Output, "timed out")
}

func TestGuardClampsNegativeScores(t *testing.T) {
	neg := Func(func(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
		return models.Evaluation{Score: -5}, nil
	})
	assert.Equal(t, 0, NewGuard(neg, time.Second, nil).Run(context.Background(), "x", models.Challenge{}).Score)
}

func TestMemoSkipsRepeatedEvaluations(t *testing.T) {
	var calls atomic.Int32
	counting := Func(func(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
		calls.Add(1)
		return models.Evaluation{Score: len(code)}, nil
	})
	m := NewMemo(counting, 2)
	ch := models.Challenge{ID: "1"}

	for i := 0; i < 3; i++ {
		ev, err := m.Evaluate(context.Background(), "abc", ch)
		require.NoError(t, err)
		assert.Equal(t, 3, ev.Score)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, _ = m.Evaluate(context.Background(), "abc", models.Challenge{ID: "2"})
	assert.Equal(t, int32(2), calls.Load(), "different challenge must not share a cache entry")

	_, _ = m.Evaluate(context.Background(), "abcd", ch)
	assert.Equal(t, 2, m.Len(), "cache is bounded")
}

func TestMemoDoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int32
	flaky := Func(func(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
		if calls.Add(1) == 1 {
			return models.Evaluation{}, errors.New("transient")
		}
		return models.Evaluation{Score: 7}, nil
	})
	m := NewMemo(flaky, 0)
	_, err := m.Evaluate(context.Background(), "x", models.Challenge{ID: "1"})
	require.Error(t, err)
	ev, err := m.Evaluate(context.Background(), "x", models.Challenge{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, 7, ev.Score)
}

func TestHTTPEvaluator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RemoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2", req.ChallengeID)
		_ = json.NewEncoder(w).Encode(models.Evaluation{Score: 150, Passed: false, Output: "3/4 tests"})
	}))
	defer srv.Close()

	ev, err := NewHTTPEvaluator(srv.URL).Evaluate(context.Background(), "print(1)", models.Challenge{ID: "2"})
	require.NoError(t, err)
	assert.Equal(t, models.Evaluation{Score: 150, Output: "3/4 tests"}, ev)
}

func TestHTTPEvaluatorErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sandbox down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPEvaluator(srv.URL).Evaluate(context.Background(), "print(1)", models.Challenge{ID: "2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = NewHTTPEvaluator(srv.URL).Evaluate(context.Background(), "import sys", models.Challenge{ID: "2"})
	assert.ErrorIs(t, err, ErrDangerousCode)
}
