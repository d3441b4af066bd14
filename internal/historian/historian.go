// Package historian drains finished matches from the Redis results queue and
// writes them to Postgres in batches.
package historian

import (
	"context"
	"errors"
	"time"

	"github.com/jason-s-yu/codearena/internal/cache"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/sirupsen/logrus"
)

// Source yields queued match records. Pop returns nil, nil on an empty wait.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.MatchRecord, error)
}

// Sink stores a batch of records atomically.
type Sink interface {
	InsertMatchRecords(ctx context.Context, recs []models.MatchRecord) error
}

// Service accumulates records and flushes them when the batch is full or the
// flush interval elapses.
type Service struct {
	source     Source
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration
	log        *logrus.Logger

	batch   []models.MatchRecord
	lastErr error
}

func New(source Source, sink Sink, batchSize int, flushDelay time.Duration, logger *logrus.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	popTimeout := flushDelay
	if popTimeout > 3*time.Second {
		popTimeout = 3 * time.Second
	}
	return &Service{
		source:     source,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		popTimeout: popTimeout,
		log:        logger,
		batch:      make([]models.MatchRecord, 0, batchSize),
	}
}

// Run loops until ctx is cancelled, then flushes what it holds.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("codearena historian started")
	lastFlush := time.Now()
	for {
		if ctx.Err() != nil {
			s.flush(context.Background())
			s.log.Info("codearena historian shutting down")
			return nil
		}

		rec, err := s.source.Pop(ctx, s.popTimeout)
		switch {
		case errors.Is(err, cache.ErrBadRecord):
			s.log.Warnf("skipping %v", err)
		case err != nil && ctx.Err() == nil:
			s.log.Errorf("pop: %v", err)
			time.Sleep(s.popTimeout)
		case rec != nil:
			s.batch = append(s.batch, *rec)
		}

		if len(s.batch) >= s.batchSize || (len(s.batch) > 0 && time.Since(lastFlush) >= s.flushDelay) {
			s.flush(ctx)
			lastFlush = time.Now()
		}
	}
}

// flush writes the batch. On failure the batch is kept for the next attempt.
func (s *Service) flush(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	if err := s.sink.InsertMatchRecords(ctx, s.batch); err != nil {
		s.lastErr = err
		s.log.Errorf("flush of %d records failed: %v", len(s.batch), err)
		return
	}
	s.log.Infof("Flushed %d match records to DB.", len(s.batch))
	s.batch = s.batch[:0]
}

// Pending is the number of records waiting for the next flush.
func (s *Service) Pending() int {
	return len(s.batch)
}
