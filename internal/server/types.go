// Package server defines the wire envelope, intent and notification payloads
// exchanged with clients, plus small helpers shared by client and hub logic.
package server

import (
	"encoding/json"
	"strings"

	"github.com/Tyrowin/gamechat/internal/chat"
	"github.com/Tyrowin/gamechat/internal/game"
	"github.com/Tyrowin/gamechat/internal/invite"
	"github.com/Tyrowin/gamechat/internal/presence"
)

// Inbound intent types.
const (
	IntentJoin          = "join"
	IntentChatSend      = "chat.send"
	IntentTypingSet     = "typing.set"
	IntentInviteCreate  = "invite.create"
	IntentInviteRespond = "invite.respond"
	IntentGameMove      = "game.move"
	IntentGameRematch   = "game.rematch"
)

// Outbound notification types.
const (
	EventSessionInit       = "session.init"
	EventParticipantJoined = "participant.joined"
	EventParticipantLeft   = "participant.left"
	EventChatMessage       = "chat.message"
	EventTypingChanged     = "typing.changed"
	EventInviteReceived    = "invite.received"
	EventInviteSent        = "invite.sent"
	EventInviteExpired     = "invite.expired"
	EventInviteResolved    = "invite.resolved"
	EventGameState         = "game.state"
	EventIntentRejected    = "intent.rejected"
)

// Envelope is the JSON frame every message travels in.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// notification is the outbound form of Envelope.
type notification struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// JoinPayload announces identity; both fields are optional.
type JoinPayload struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// ChatSendPayload carries a chat message.
type ChatSendPayload struct {
	Text string `json:"text"`
}

// TypingSetPayload toggles the typing indicator.
type TypingSetPayload struct {
	IsTyping bool `json:"isTyping"`
}

// InviteCreatePayload challenges another participant.
type InviteCreatePayload struct {
	TargetParticipantID string    `json:"targetParticipantId"`
	GameKind            game.Kind `json:"gameKind"`
}

// InviteRespondPayload answers a received invite.
type InviteRespondPayload struct {
	InviteID string `json:"inviteId"`
	Accept   bool   `json:"accept"`
}

// GameMovePayload places a mark. CellIndex is a pointer so a missing
// index is rejected rather than read as cell 0.
type GameMovePayload struct {
	InstanceID string `json:"instanceId"`
	CellIndex  *int   `json:"cellIndex"`
}

// GameRematchPayload asks for a fresh game between the same seats.
type GameRematchPayload struct {
	InstanceID string `json:"instanceId"`
}

// SessionInit is sent once to a joining connection.
type SessionInit struct {
	Self         presence.Participant   `json:"self"`
	Participants []presence.Participant `json:"participants"`
	ChatHistory  []chat.Event           `json:"chatHistory"`
}

// ParticipantJoined announces a new participant to everyone else.
type ParticipantJoined struct {
	Participant  presence.Participant `json:"participant"`
	SystemNotice chat.Event           `json:"systemNotice"`
}

// ParticipantLeft announces a departure.
type ParticipantLeft struct {
	ParticipantID string     `json:"participantId"`
	SystemNotice  chat.Event `json:"systemNotice"`
}

// ChatMessage carries one chat event.
type ChatMessage struct {
	Event chat.Event `json:"event"`
}

// TypingChanged reports a participant's typing indicator.
type TypingChanged struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	IsTyping      bool   `json:"isTyping"`
}

// InviteNotice carries a full invite (received / sent).
type InviteNotice struct {
	Invite invite.Invite `json:"invite"`
}

// InviteExpired reports that a pending invite timed out.
type InviteExpired struct {
	InviteID string `json:"inviteId"`
}

// InviteResolved tells the challenger how the target answered.
type InviteResolved struct {
	InviteID   string `json:"inviteId"`
	Accepted   bool   `json:"accepted"`
	InstanceID string `json:"instanceId,omitempty"`
}

// GameState pushes the authoritative instance to a seat.
type GameState struct {
	Instance game.Instance `json:"instance"`
}

// IntentRejected acknowledges an intent that changed nothing.
type IntentRejected struct {
	Intent  string `json:"intent,omitempty"`
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
