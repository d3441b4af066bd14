package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/codearena/internal/broadcast"
	"github.com/jason-s-yu/codearena/internal/challenge"
	"github.com/jason-s-yu/codearena/internal/evaluator"
	"github.com/jason-s-yu/codearena/internal/matchmaking"
	"github.com/jason-s-yu/codearena/internal/registry"
	"github.com/jason-s-yu/codearena/internal/room"
	"github.com/jason-s-yu/codearena/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cat, err := challenge.NewCatalog(challenge.Builtin())
	require.NoError(t, err)
	gw := broadcast.NewGateway(logger)
	reg := registry.New(logger)
	rooms := room.NewStore(room.Deps{
		Gateway:   gw,
		Catalog:   cat,
		Evaluator: evaluator.NewGuard(evaluator.NewRuleEvaluator(), time.Second, logger),
		Presence:  reg,
		Limits:    room.Limits{DefaultTimeLimit: 300, MinTimeLimit: 30, MaxTimeLimit: 3600, Tick: time.Second},
		Logger:    logger,
	})
	coord := session.New(reg, matchmaking.NewQueue(rooms, logger), rooms, gw, nil, logger)

	srv := httptest.NewServer(NewRouter(RouterDeps{
		Logger:         logger,
		Coordinator:    coord,
		Rooms:          rooms,
		Challenges:     cat,
		AllowedOrigins: []string{"*"},
		OnlineCount:    reg.Count,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, subprotocols ...string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: subprotocols})
	require.NoError(t, err)
	return c
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, c *websocket.Conn, typ string) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == typ {
			return frame
		}
	}
}

func send(t *testing.T, c *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(frame)))
}

func TestWebSocketRegisterAndRoomFlow(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv, Subprotocol)
	defer a.Close(websocket.StatusNormalClosure, "")
	b := dial(t, srv, Subprotocol)
	defer b.Close(websocket.StatusNormalClosure, "")

	readUntil(t, a, "room_list")
	send(t, a, `{"type":"register","username":"alice","userId":"u-alice"}`)
	welcome := readUntil(t, a, "system_message")
	assert.Equal(t, "Welcome, alice!", welcome["message"])

	send(t, a, `{"type":"create_room","name":"arena"}`)
	created := readUntil(t, a, "room_created")
	roomID := created["roomId"].(string)

	send(t, b, `{"type":"join_room","roomId":"`+roomID+`","username":"bob","userId":"u-bob"}`)
	joined := readUntil(t, b, "joined_room")
	assert.Equal(t, "alice", joined["opponent"])
	pj := readUntil(t, a, "player_joined")
	assert.Equal(t, "bob", pj["username"])

	send(t, b, `{"type":"ping"}`)
	readUntil(t, b, "pong")

	send(t, b, `{"type":"nonsense"}`)
	errFrame := readUntil(t, b, "error")
	assert.Equal(t, "protocol", errFrame["kind"])

	b.Close(websocket.StatusNormalClosure, "bye")
	left := readUntil(t, a, "player_left")
	assert.Equal(t, "bob", left["username"])
}

func TestWebSocketRequiresSubprotocol(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}

func TestReadEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/challenges")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Python Variables Challenge")
	assert.NotContains(t, string(body), "pattern")

	resp2, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var rooms struct {
		Rooms []interface{} `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&rooms))
	assert.Empty(t, rooms.Rooms)
}
