package evaluator

import (
	"context"
	"sync"

	"github.com/jason-s-yu/codearena/internal/models"
	"golang.org/x/crypto/blake2b"
)

// Memo caches successful evaluations of identical code for the same
// challenge. Failures are not cached so a transient error can be retried.
type Memo struct {
	next Evaluator
	max  int

	mu    sync.Mutex
	cache map[[32]byte]models.Evaluation
	order [][32]byte
}

func NewMemo(next Evaluator, max int) *Memo {
	if max <= 0 {
		max = 1024
	}
	return &Memo{
		next:  next,
		max:   max,
		cache: make(map[[32]byte]models.Evaluation, max),
	}
}

func memoKey(code string, ch models.Challenge) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(ch.ID))
	h.Write([]byte{0})
	h.Write([]byte(code))
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

func (m *Memo) Evaluate(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
	key := memoKey(code, ch)

	m.mu.Lock()
	if ev, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return ev, nil
	}
	m.mu.Unlock()

	ev, err := m.next.Evaluate(ctx, code, ch)
	if err != nil {
		return ev, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cache[key]; !ok {
		if len(m.order) >= m.max {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.cache, oldest)
		}
		m.cache[key] = ev
		m.order = append(m.order, key)
	}
	return ev, nil
}

// Len is the number of cached evaluations.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}
