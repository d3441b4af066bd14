package registry

import (
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/common"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(l)
}

func TestRegisterDefaults(t *testing.T) {
	r := newTestRegistry()
	conn := uuid.New()

	p := r.Register(conn, models.Profile{})
	assert.Equal(t, "Player_"+conn.String()[:5], p.Username)
	assert.Equal(t, conn.String(), p.UserID)
	assert.Equal(t, models.DefaultRating, p.Rating)
	assert.Equal(t, 1, r.Count())
}

func TestReRegisterKeepsRoom(t *testing.T) {
	r := newTestRegistry()
	conn := uuid.New()
	room := uuid.New()

	r.Register(conn, models.Profile{Username: "alice", UserID: "u1", Rating: 1400})
	require.NoError(t, r.ClaimRoom(conn, room))
	p := r.Register(conn, models.Profile{Username: "alice2", UserID: "u1", Rating: 1500})

	assert.Equal(t, "alice2", p.Username)
	assert.Equal(t, 1500, p.Rating)
	require.NotNil(t, p.CurrentRoomID)
	assert.Equal(t, room, *p.CurrentRoomID)
	assert.Equal(t, 1, r.Count())
}

func TestUnregisterFiresHook(t *testing.T) {
	r := newTestRegistry()
	conn := uuid.New()
	var removed []models.Player
	r.OnRemove = func(p models.Player) { removed = append(removed, p) }

	r.Register(conn, models.Profile{Username: "bob"})
	_, ok := r.Unregister(conn)
	assert.True(t, ok)
	_, ok = r.Unregister(conn)
	assert.False(t, ok)

	require.Len(t, removed, 1)
	assert.Equal(t, "bob", removed[0].Username)

	_, err := r.Get(conn)
	assert.ErrorIs(t, err, common.ErrNotRegistered)
}

func TestClearRoomIfOnlyMatchingRoom(t *testing.T) {
	r := newTestRegistry()
	conn := uuid.New()
	a, b := uuid.New(), uuid.New()
	r.Register(conn, models.Profile{})
	require.NoError(t, r.ClaimRoom(conn, b))

	r.ClearRoomIf(conn, a)
	p, _ := r.Get(conn)
	require.NotNil(t, p.CurrentRoomID)

	r.ClearRoomIf(conn, b)
	p, _ = r.Get(conn)
	assert.Nil(t, p.CurrentRoomID)
}

func TestClaimRoomIsExclusive(t *testing.T) {
	r := newTestRegistry()
	conn := uuid.New()
	first, second := uuid.New(), uuid.New()

	assert.ErrorIs(t, r.ClaimRoom(conn, first), common.ErrNotRegistered)
	assert.False(t, r.Has(conn))

	r.Register(conn, models.Profile{Username: "alice"})
	assert.True(t, r.Has(conn))
	require.NoError(t, r.ClaimRoom(conn, first))
	require.NoError(t, r.ClaimRoom(conn, first))
	assert.ErrorIs(t, r.ClaimRoom(conn, second), common.ErrAlreadyInRoom)

	p, _ := r.Get(conn)
	require.NotNil(t, p.CurrentRoomID)
	assert.Equal(t, first, *p.CurrentRoomID)

	r.ClearRoomIf(conn, first)
	assert.NoError(t, r.ClaimRoom(conn, second))
}
