// Package protocol defines the JSON messages exchanged over the duel websocket.
// Every frame is a flat object carrying a "type" field.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/codearena/internal/common"
)

// Inbound message types.
const (
	TypeRegister          = "register"
	TypeCreateRoom        = "create_room"
	TypeJoinRoom          = "join_room"
	TypeLeaveRoom         = "leave_room"
	TypePlayerReady       = "player_ready"
	TypeCodeUpdate        = "code_update"
	TypeSubmitSolution    = "submit_solution"
	TypeFindQuickMatch    = "find_quick_match"
	TypeCancelMatchmaking = "cancel_matchmaking"
	TypeGetRooms          = "get_rooms"
	TypeCreateInvite      = "create_invite"
	TypeRequestRematch    = "request_rematch"
	TypePing              = "ping"
)

// Message is one decoded inbound frame.
type Message interface {
	MessageType() string
}

type Register struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Rating   int    `json:"rating"`
}

type CreateRoom struct {
	Name        string `json:"name"`
	IsPrivate   bool   `json:"isPrivate"`
	ChallengeID string `json:"challengeId"`
	TimeLimit   int    `json:"timeLimit"`
	MaxPlayers  *int   `json:"maxPlayers,omitempty"`
}

// JoinRoom targets a room by id or by its join code.
type JoinRoom struct {
	RoomID      string `json:"roomId"`
	Code        string `json:"code"`
	Username    string `json:"username"`
	UserID      string `json:"userId"`
	Rating      int    `json:"rating"`
	InviteToken string `json:"inviteToken"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

type PlayerReady struct {
	RoomID  string `json:"roomId"`
	IsReady bool   `json:"isReady"`
}

type CodeUpdate struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type SubmitSolution struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type FindQuickMatch struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Rating   int    `json:"rating"`
}

type CancelMatchmaking struct{}

type GetRooms struct{}

type CreateInvite struct {
	RoomID      string `json:"roomId"`
	GuestUserID string `json:"guestUserId"`
}

type RequestRematch struct {
	RoomID string `json:"roomId"`
}

type Ping struct{}

func (Register) MessageType() string          { return TypeRegister }
func (CreateRoom) MessageType() string        { return TypeCreateRoom }
func (JoinRoom) MessageType() string          { return TypeJoinRoom }
func (LeaveRoom) MessageType() string         { return TypeLeaveRoom }
func (PlayerReady) MessageType() string       { return TypePlayerReady }
func (CodeUpdate) MessageType() string        { return TypeCodeUpdate }
func (SubmitSolution) MessageType() string    { return TypeSubmitSolution }
func (FindQuickMatch) MessageType() string    { return TypeFindQuickMatch }
func (CancelMatchmaking) MessageType() string { return TypeCancelMatchmaking }
func (GetRooms) MessageType() string          { return TypeGetRooms }
func (CreateInvite) MessageType() string      { return TypeCreateInvite }
func (RequestRematch) MessageType() string    { return TypeRequestRematch }
func (Ping) MessageType() string              { return TypePing }

// Decode parses one frame into its concrete Message.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedMessage, err)
	}

	var msg Message
	switch head.Type {
	case TypeRegister:
		msg = &Register{}
	case TypeCreateRoom:
		msg = &CreateRoom{}
	case TypeJoinRoom:
		msg = &JoinRoom{}
	case TypeLeaveRoom:
		msg = &LeaveRoom{}
	case TypePlayerReady:
		msg = &PlayerReady{}
	case TypeCodeUpdate:
		msg = &CodeUpdate{}
	case TypeSubmitSolution:
		msg = &SubmitSolution{}
	case TypeFindQuickMatch:
		msg = &FindQuickMatch{}
	case TypeCancelMatchmaking:
		msg = &CancelMatchmaking{}
	case TypeGetRooms:
		msg = &GetRooms{}
	case TypeCreateInvite:
		msg = &CreateInvite{}
	case TypeRequestRematch:
		msg = &RequestRematch{}
	case TypePing:
		return &Ping{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", common.ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownMessage, head.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrMalformedMessage, head.Type, err)
	}
	return msg, nil
}
