package server

import (
	"encoding/json"
	"log"

	apperrors "github.com/Tyrowin/gamechat/internal/errors"
	"github.com/Tyrowin/gamechat/internal/game"
	"github.com/Tyrowin/gamechat/internal/invite"
	"github.com/Tyrowin/gamechat/internal/presence"
)

// Invite outcomes as recorded in the invites_total metric.
const (
	outcomeCreated  = "created"
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeExpired  = "expired"
)

// dispatch routes one inbound frame. Every failure is answered with
// intent.rejected to the sender and leaves shared state untouched.
func (h *Hub) dispatch(msg inbound) {
	c := msg.client
	if c == nil || !h.isLive(c) {
		return
	}
	if msg.err != nil {
		h.reject(c, msg.envelope.Type, msg.err)
		return
	}

	env := msg.envelope
	if env.Type == IntentJoin {
		h.handleJoin(c, env)
		return
	}

	self, err := h.registry.ByConnection(c.id)
	if err != nil {
		if !isKnownIntent(env.Type) {
			h.reject(c, env.Type, apperrors.Newf(apperrors.CodeUnknownIntent, "unknown intent %q", env.Type))
			return
		}
		h.reject(c, env.Type, apperrors.Newf(apperrors.CodeNotJoined, "%s requires join first", env.Type))
		return
	}

	switch env.Type {
	case IntentChatSend:
		err = h.handleChatSend(self, env)
	case IntentTypingSet:
		err = h.handleTypingSet(c, self, env)
	case IntentInviteCreate:
		err = h.handleInviteCreate(c, self, env)
	case IntentInviteRespond:
		err = h.handleInviteRespond(self, env)
	case IntentGameMove:
		err = h.handleGameMove(self, env)
	case IntentGameRematch:
		err = h.handleGameRematch(self, env)
	default:
		err = apperrors.Newf(apperrors.CodeUnknownIntent, "unknown intent %q", env.Type)
	}
	if err != nil {
		h.reject(c, env.Type, err)
	}
}

func isKnownIntent(t string) bool {
	switch t {
	case IntentJoin, IntentChatSend, IntentTypingSet, IntentInviteCreate,
		IntentInviteRespond, IntentGameMove, IntentGameRematch:
		return true
	}
	return false
}

func decodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return apperrors.Newf(apperrors.CodeMalformedFrame, "invalid %s payload: %v", env.Type, err)
	}
	return nil
}

func (h *Hub) reject(c *Client, intent string, err error) {
	code := apperrors.CodeOf(err)
	log.Printf("Rejected %q from %s: %v", intent, c.addr, err)
	h.metrics.rejected.WithLabelValues(string(code)).Inc()
	h.sendTo(c, EventIntentRejected, IntentRejected{
		Intent:  intent,
		Code:    string(code),
		Kind:    string(code.Kind()),
		Message: apperrors.MessageOf(err),
	})
}

func (h *Hub) handleJoin(c *Client, env Envelope) {
	var req JoinPayload
	if err := decodePayload(env, &req); err != nil {
		h.reject(c, env.Type, err)
		return
	}

	p, err := h.registry.Join(c.id, req.Name, req.Avatar)
	if err != nil {
		h.reject(c, env.Type, err)
		return
	}
	log.Printf("Participant %s (%s) joined from %s", p.Name, p.ID, c.addr)

	notice := h.chat.RecordSystemNotice(p.Name + " has joined the chat")
	h.sendTo(c, EventSessionInit, SessionInit{
		Self:         p,
		Participants: h.registry.List(),
		ChatHistory:  h.chat.Snapshot(),
	})
	h.broadcast(EventParticipantJoined, ParticipantJoined{Participant: p, SystemNotice: notice}, c)
}

func (h *Hub) handleChatSend(self presence.Participant, env Envelope) error {
	var req ChatSendPayload
	if err := decodePayload(env, &req); err != nil {
		return err
	}

	event := h.chat.RecordUserMessage(self.Snapshot(), req.Text)
	h.metrics.chatMessages.Inc()
	h.broadcast(EventChatMessage, ChatMessage{Event: event}, nil)
	return nil
}

func (h *Hub) handleTypingSet(c *Client, self presence.Participant, env Envelope) error {
	var req TypingSetPayload
	if err := decodePayload(env, &req); err != nil {
		return err
	}

	if _, err := h.registry.SetTyping(self.ID, req.IsTyping); err != nil {
		return err
	}
	h.broadcast(EventTypingChanged, TypingChanged{
		ParticipantID: self.ID,
		Name:          self.Name,
		IsTyping:      req.IsTyping,
	}, c)
	return nil
}

func (h *Hub) handleInviteCreate(c *Client, self presence.Participant, env Envelope) error {
	var req InviteCreatePayload
	if err := decodePayload(env, &req); err != nil {
		return err
	}
	if req.GameKind == "" {
		req.GameKind = game.KindTicTacToe
	}

	inv, err := h.ledger.Create(self.ID, req.TargetParticipantID, req.GameKind)
	if err != nil {
		return err
	}
	h.metrics.invites.WithLabelValues(outcomeCreated).Inc()
	log.Printf("Invite %s: %s challenged %s to %s", inv.ID, inv.From.Name, inv.To.Name, inv.GameKind)

	h.sendToParticipant(inv.To.ID, EventInviteReceived, InviteNotice{Invite: inv})
	h.sendTo(c, EventInviteSent, InviteNotice{Invite: inv})
	return nil
}

func (h *Hub) handleInviteRespond(self presence.Participant, env Envelope) error {
	var req InviteRespondPayload
	if err := decodePayload(env, &req); err != nil {
		return err
	}

	inv, instance, err := h.ledger.Respond(req.InviteID, self.ID, req.Accept)
	if err != nil {
		return err
	}
	h.stopTimer(inv.ID)

	outcome := outcomeRejected
	if req.Accept {
		outcome = outcomeAccepted
	}
	h.metrics.invites.WithLabelValues(outcome).Inc()

	h.sendToParticipant(inv.From.ID, EventInviteResolved, InviteResolved{
		InviteID:   inv.ID,
		Accepted:   req.Accept,
		InstanceID: inv.InstanceID,
	})
	if instance != nil {
		log.Printf("Game %s started: %s vs %s", instance.ID, instance.Seats[0].Name, instance.Seats[1].Name)
		h.pushGameState(*instance)
	}
	return nil
}

func (h *Hub) handleGameMove(self presence.Participant, env Envelope) error {
	var req GameMovePayload
	if err := decodePayload(env, &req); err != nil {
		return err
	}
	// A missing index is out of range, checked after the table's other rules.
	cell := -1
	if req.CellIndex != nil {
		cell = *req.CellIndex
	}

	instance, err := h.table.ApplyMove(req.InstanceID, self.ID, cell)
	if err != nil {
		return err
	}
	h.metrics.moves.Inc()
	h.pushGameState(instance)
	return nil
}

func (h *Hub) handleGameRematch(self presence.Participant, env Envelope) error {
	var req GameRematchPayload
	if err := decodePayload(env, &req); err != nil {
		return err
	}

	finished, err := h.table.Get(req.InstanceID)
	if err != nil {
		return err
	}
	if _, seated := finished.SeatOf(self.ID); seated {
		for _, seat := range finished.Seats {
			if _, err := h.registry.ByID(seat.ID); err != nil {
				return apperrors.Newf(apperrors.CodeParticipantNotFound, "%s is no longer online", seat.Name)
			}
		}
	}

	instance, err := h.table.Rematch(req.InstanceID, self.ID)
	if err != nil {
		return err
	}
	log.Printf("Rematch %s started from %s", instance.ID, req.InstanceID)
	h.pushGameState(instance)
	return nil
}

// pushGameState sends the instance to whichever seats are still online.
func (h *Hub) pushGameState(instance game.Instance) {
	frame := encode(EventGameState, GameState{Instance: instance})
	for _, seat := range instance.Seats {
		p, err := h.registry.ByID(seat.ID)
		if err != nil {
			continue
		}
		if client, ok := h.clients[p.ConnectionID]; ok {
			h.deliver(client, frame)
		}
	}
}

// handleExpiry runs when an invite timer fires. The ledger ignores invites
// that were answered first.
func (h *Hub) handleExpiry(inviteID string) {
	inv, ok := h.ledger.Expire(inviteID)
	if !ok {
		return
	}
	h.notifyExpired(inv)
}

func (h *Hub) notifyExpired(inv invite.Invite) {
	h.metrics.invites.WithLabelValues(outcomeExpired).Inc()
	log.Printf("Invite %s from %s to %s expired", inv.ID, inv.From.Name, inv.To.Name)

	payload := InviteExpired{InviteID: inv.ID}
	h.sendToParticipant(inv.From.ID, EventInviteExpired, payload)
	h.sendToParticipant(inv.To.ID, EventInviteExpired, payload)
}

// handleDisconnect is the hard logout for a connection that had joined:
// registry removal, forfeits, invite expiry, one system notice, broadcast.
func (h *Hub) handleDisconnect(c *Client) {
	p, err := h.registry.Leave(c.id)
	if err != nil {
		return
	}
	log.Printf("Participant %s (%s) left", p.Name, p.ID)

	for _, instance := range h.table.Forfeit(p.ID) {
		log.Printf("Game %s forfeited by %s", instance.ID, p.Name)
		h.pushGameState(instance)
	}

	for _, inv := range h.ledger.ExpireFor(p.ID) {
		h.stopTimer(inv.ID)
		h.notifyExpired(inv)
	}

	notice := h.chat.RecordSystemNotice(p.Name + " has left the chat")
	h.broadcast(EventParticipantLeft, ParticipantLeft{ParticipantID: p.ID, SystemNotice: notice}, nil)
}
