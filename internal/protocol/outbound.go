package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/models"
)

// Outbound event types.
const (
	EventSystemMessage     = "system_message"
	EventOnlineCount       = "online_count"
	EventRoomCreated       = "room_created"
	EventJoinedRoom        = "joined_room"
	EventPlayerJoined      = "player_joined"
	EventPlayerLeft        = "player_left"
	EventLeftRoom          = "left_room"
	EventPlayerReady       = "player_ready"
	EventChallengeStart    = "challenge_start"
	EventCodeUpdate        = "code_update"
	EventSubmissionAck     = "submission_received"
	EventChallengeResult   = "challenge_result"
	EventMatchComplete     = "match_complete"
	EventMatchmakingUpdate = "matchmaking_update"
	EventRoomList          = "room_list"
	EventInviteCreated     = "invite_created"
	EventError             = "error"
	EventPong              = "pong"
)

// Event is one outbound frame. Data is flattened next to "type" on the wire.
type Event struct {
	Type string
	Data map[string]interface{}
}

func (e Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(e.Data)+1)
	for k, v := range e.Data {
		flat[k] = v
	}
	flat["type"] = e.Type
	return json.Marshal(flat)
}

// Get returns a payload field, for tests and logging.
func (e Event) Get(key string) interface{} {
	return e.Data[key]
}

func newEvent(typ string, data map[string]interface{}) Event {
	return Event{Type: typ, Data: data}
}

func SystemMessage(msg string) Event {
	return newEvent(EventSystemMessage, map[string]interface{}{"message": msg})
}

func OnlineCount(n int) Event {
	return newEvent(EventOnlineCount, map[string]interface{}{"count": n})
}

func RoomCreated(roomID uuid.UUID, code, name string) Event {
	return newEvent(EventRoomCreated, map[string]interface{}{
		"roomId":   roomID.String(),
		"roomCode": code,
		"roomName": name,
	})
}

// JoinedRoom tells a player they are seated. opponent is nil while alone.
func JoinedRoom(roomID uuid.UUID, code, name string, opponent *models.ParticipantRef) Event {
	data := map[string]interface{}{
		"roomId":   roomID.String(),
		"roomCode": code,
		"roomName": name,
		"opponent": nil,
	}
	if opponent != nil {
		data["opponent"] = opponent.Username
		data["opponentUserId"] = opponent.UserID
		data["opponentRating"] = opponent.Rating
	}
	return newEvent(EventJoinedRoom, data)
}

func PlayerJoined(p models.ParticipantRef) Event {
	return newEvent(EventPlayerJoined, map[string]interface{}{
		"username": p.Username,
		"userId":   p.UserID,
		"rating":   p.Rating,
	})
}

func PlayerLeft(username, userID string) Event {
	return newEvent(EventPlayerLeft, map[string]interface{}{
		"username": username,
		"userId":   userID,
	})
}

func LeftRoom(roomID uuid.UUID) Event {
	return newEvent(EventLeftRoom, map[string]interface{}{"roomId": roomID.String()})
}

func PlayerReadyChanged(username, userID string, isReady bool) Event {
	return newEvent(EventPlayerReady, map[string]interface{}{
		"username": username,
		"userId":   userID,
		"isReady":  isReady,
	})
}

func ChallengeStart(ch models.Challenge, timeLimit int, deadline time.Time) Event {
	return newEvent(EventChallengeStart, map[string]interface{}{
		"challenge": ch.Public(),
		"timeLimit": timeLimit,
		"deadline":  deadline.UTC().Format(time.RFC3339Nano),
	})
}

// CodeActivity relays that the opponent is typing. The code itself is never sent.
func CodeActivity(username, userID string, length int) Event {
	return newEvent(EventCodeUpdate, map[string]interface{}{
		"username": username,
		"userId":   userID,
		"length":   length,
	})
}

// SubmissionAck confirms a player's own evaluated submission.
func SubmissionAck(sub models.Submission) Event {
	return newEvent(EventSubmissionAck, map[string]interface{}{
		"score":  sub.Score,
		"passed": sub.Passed,
		"output": sub.Output,
		"auto":   sub.Auto,
	})
}

// ChallengeResult tells the opponent how a submission scored, without its code.
func ChallengeResult(username, userID string, sub models.Submission) Event {
	return newEvent(EventChallengeResult, map[string]interface{}{
		"username": username,
		"userId":   userID,
		"score":    sub.Score,
		"passed":   sub.Passed,
		"output":   sub.Output,
		"auto":     sub.Auto,
	})
}

// MatchComplete carries the full result plus the recipient's own delta.
func MatchComplete(res models.MatchResult, ratingChange int) Event {
	return newEvent(EventMatchComplete, map[string]interface{}{
		"winner":        res.Winner,
		"winnerUserId":  res.WinnerUserID,
		"player1":       res.Player1,
		"player2":       res.Player2,
		"player1Score":  res.Player1Score,
		"player2Score":  res.Player2Score,
		"ratingChange":  ratingChange,
		"ratingChanges": res.RatingChanges,
	})
}

func MatchmakingQueued(position int) Event {
	return newEvent(EventMatchmakingUpdate, map[string]interface{}{
		"message":  "Searching for opponent...",
		"position": position,
	})
}

func MatchmakingFound(roomID uuid.UUID) Event {
	return newEvent(EventMatchmakingUpdate, map[string]interface{}{
		"found":  true,
		"roomId": roomID.String(),
	})
}

func RoomList(rooms []models.RoomSummary) Event {
	if rooms == nil {
		rooms = []models.RoomSummary{}
	}
	return newEvent(EventRoomList, map[string]interface{}{"rooms": rooms})
}

func InviteCreated(roomID uuid.UUID, guestUserID, token string) Event {
	return newEvent(EventInviteCreated, map[string]interface{}{
		"roomId":      roomID.String(),
		"guestUserId": guestUserID,
		"inviteToken": token,
	})
}

// Error reports a rejected action back to its sender.
func Error(action, reason, kind string) Event {
	return newEvent(EventError, map[string]interface{}{
		"action":  action,
		"message": reason,
		"kind":    kind,
	})
}

func Pong() Event {
	return newEvent(EventPong, nil)
}
