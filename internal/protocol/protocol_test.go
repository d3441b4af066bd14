package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/common"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKnownTypes(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"create_room","name":"duel","isPrivate":true,"challengeId":"2","timeLimit":120}`))
	require.NoError(t, err)
	cr, ok := msg.(*CreateRoom)
	require.True(t, ok)
	assert.Equal(t, "duel", cr.Name)
	assert.True(t, cr.IsPrivate)
	assert.Equal(t, "2", cr.ChallengeID)
	assert.Equal(t, 120, cr.TimeLimit)
	assert.Nil(t, cr.MaxPlayers)

	msg, err = Decode([]byte(`{"type":"player_ready","roomId":"abc","isReady":true}`))
	require.NoError(t, err)
	assert.Equal(t, TypePlayerReady, msg.MessageType())
	assert.True(t, msg.(*PlayerReady).IsReady)

	msg, err = Decode([]byte(`{"type":"cancel_matchmaking"}`))
	require.NoError(t, err)
	assert.IsType(t, &CancelMatchmaking{}, msg)

	msg, err = Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.IsType(t, &Ping{}, msg)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, common.ErrMalformedMessage)

	_, err = Decode([]byte(`{"roomId":"x"}`))
	assert.ErrorIs(t, err, common.ErrMalformedMessage)

	_, err = Decode([]byte(`{"type":"launch_missiles"}`))
	assert.ErrorIs(t, err, common.ErrUnknownMessage)

	_, err = Decode([]byte(`{"type":"player_ready","isReady":"yes"}`))
	assert.ErrorIs(t, err, common.ErrMalformedMessage)
}

func TestEventFlattensData(t *testing.T) {
	id := uuid.New()
	raw, err := json.Marshal(RoomCreated(id, "ABC123", "my room"))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "room_created", got["type"])
	assert.Equal(t, id.String(), got["roomId"])
	assert.Equal(t, "ABC123", got["roomCode"])
	assert.Equal(t, "my room", got["roomName"])
}

func TestTypeCannotBeOverriddenByData(t *testing.T) {
	ev := Event{Type: EventPong, Data: map[string]interface{}{"type": "spoof"}}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(raw))
}

func TestChallengeStartHidesChecks(t *testing.T) {
	ch := models.Challenge{ID: "1", Title: "Sum", Checks: []models.Check{{Name: "loop", Pattern: "for", Points: 10}}}
	raw, err := json.Marshal(ChallengeStart(ch, 300, fixedDeadline))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "checks")
	assert.Contains(t, string(raw), `"timeLimit":300`)
}

func TestResultEventsOmitCode(t *testing.T) {
	sub := models.Submission{UserID: "u1", Code: "secret()", Score: 40, Output: "PASS a"}
	raw, err := json.Marshal(ChallengeResult("alice", "u1", sub))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret()")
	assert.Contains(t, string(raw), `"score":40`)
}

func TestMatchCompleteDraw(t *testing.T) {
	res := models.MatchResult{Player1: "a", Player2: "b", Player1Score: 5, Player2Score: 5,
		RatingChanges: map[string]int{"u1": 0, "u2": 0}}
	raw, err := json.Marshal(MatchComplete(res, 0))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Nil(t, got["winner"])
	assert.Equal(t, float64(0), got["ratingChange"])
}

func TestRoomListNeverNull(t *testing.T) {
	raw, err := json.Marshal(RoomList(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"room_list","rooms":[]}`, string(raw))
}

var fixedDeadline = mustTime("2026-01-02T15:04:05Z")

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
