package historian

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/cache"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]models.MatchRecord
	failN   int
}

func (m *memorySink) InsertMatchRecords(ctx context.Context, recs []models.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failN > 0 {
		m.failN--
		return errors.New("db down")
	}
	m.batches = append(m.batches, append([]models.MatchRecord(nil), recs...))
	return nil
}

func (m *memorySink) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDrainsQueueIntoSink(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := cache.Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer rdb.Close()
	q := cache.NewResultQueue(rdb, "results")

	for i := 0; i < 5; i++ {
		require.NoError(t, q.PublishMatch(context.Background(), models.MatchRecord{MatchID: uuid.New(), ChallengeID: "1"}))
	}
	_, err = mr.RPush("results", "garbage")
	require.NoError(t, err)

	sink := &memorySink{}
	svc := New(q, sink, 2, 20*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sink.total() == 5 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

type sliceSource struct {
	recs []models.MatchRecord
}

func (s *sliceSource) Pop(ctx context.Context, timeout time.Duration) (*models.MatchRecord, error) {
	if len(s.recs) == 0 {
		return nil, nil
	}
	r := s.recs[0]
	s.recs = s.recs[1:]
	return &r, nil
}

func TestFailedFlushKeepsBatch(t *testing.T) {
	src := &sliceSource{recs: []models.MatchRecord{{MatchID: uuid.New()}, {MatchID: uuid.New()}}}
	sink := &memorySink{failN: 1}
	svc := New(src, sink, 10, time.Hour, quietLogger())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		rec, _ := src.Pop(ctx, 0)
		svc.batch = append(svc.batch, *rec)
	}
	svc.flush(ctx)
	assert.Equal(t, 2, svc.Pending())
	assert.Error(t, svc.lastErr)

	svc.flush(ctx)
	assert.Equal(t, 0, svc.Pending())
	assert.Equal(t, 2, sink.total())
}
