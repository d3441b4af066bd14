package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T) (*ResultQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return NewResultQueue(rdb, "test_results"), mr
}

func TestPublishThenPop(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()
	rec := models.MatchRecord{
		MatchID:      uuid.New(),
		RoomID:       uuid.New(),
		ChallengeID:  "2",
		Player1ID:    "u1",
		Player2ID:    "u2",
		Player1Score: 150,
		Player2Score: 200,
		WinnerID:     "u2",
		Deltas:       map[string]int{"u1": -15, "u2": 25},
		FinishedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, q.PublishMatch(ctx, rec))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.MatchID, got.MatchID)
	assert.Equal(t, "u2", got.WinnerID)
	assert.Equal(t, -15, got.Deltas["u1"])
	assert.True(t, rec.FinishedAt.Equal(got.FinishedAt))
}

func TestPopBadPayload(t *testing.T) {
	q, mr := newQueue(t)
	_, err := mr.RPush("test_results", "{nope")
	require.NoError(t, err)

	_, err = q.Pop(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrBadRecord)
}

func TestConnectFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
