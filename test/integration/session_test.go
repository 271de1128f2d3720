// Package integration contains end-to-end tests for the GameChat server.
//
// These tests run the hub behind a real HTTP server and drive it with
// gorilla WebSocket clients speaking the JSON envelope protocol.
package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Tyrowin/gamechat/internal/game"
	"github.com/Tyrowin/gamechat/internal/server"
	"github.com/Tyrowin/gamechat/test/testhelpers"
	"github.com/gorilla/websocket"
)

func move(t *testing.T, conn *websocket.Conn, instanceID string, cell int) {
	t.Helper()
	testhelpers.MustSend(t, conn, server.IntentGameMove, server.GameMovePayload{InstanceID: instanceID, CellIndex: &cell})
}

func readState(t *testing.T, conn *websocket.Conn) game.Instance {
	t.Helper()
	var state server.GameState
	testhelpers.ReadUntil(t, conn, server.EventGameState, &state)
	return state.Instance
}

// startGame has challenger invite target and target accept.
func startGame(t *testing.T, challenger, target *websocket.Conn, targetID string) game.Instance {
	t.Helper()
	testhelpers.MustSend(t, challenger, server.IntentInviteCreate, server.InviteCreatePayload{
		TargetParticipantID: targetID,
		GameKind:            game.KindTicTacToe,
	})

	var received server.InviteNotice
	testhelpers.ReadUntil(t, target, server.EventInviteReceived, &received)
	testhelpers.MustSend(t, target, server.IntentInviteRespond, server.InviteRespondPayload{
		InviteID: received.Invite.ID,
		Accept:   true,
	})

	var resolved server.InviteResolved
	testhelpers.ReadUntil(t, challenger, server.EventInviteResolved, &resolved)
	if !resolved.Accepted || resolved.InstanceID == "" {
		t.Fatalf("Expected accepted invite with an instance, got %+v", resolved)
	}

	instance := readState(t, challenger)
	if other := readState(t, target); other.ID != instance.ID {
		t.Fatalf("Seats received different instances: %s vs %s", instance.ID, other.ID)
	}
	return instance
}

// TestChatBroadcastEndToEnd verifies that a chat message reaches every joined
// participant, the sender included, and is replayed to late joiners.
func TestChatBroadcastEndToEnd(t *testing.T) {
	_, testServer := testhelpers.StartServer(t, nil)

	alice := testhelpers.MustConnect(t, testServer.URL)
	aliceInit := testhelpers.JoinAs(t, alice, "alice")
	if len(aliceInit.ChatHistory) != 1 || aliceInit.ChatHistory[0].Text != "alice has joined the chat" {
		t.Fatalf("Unexpected initial history: %+v", aliceInit.ChatHistory)
	}

	bob := testhelpers.MustConnect(t, testServer.URL)
	testhelpers.JoinAs(t, bob, "bob")

	var joined server.ParticipantJoined
	testhelpers.ReadUntil(t, alice, server.EventParticipantJoined, &joined)
	if joined.Participant.Name != "bob" {
		t.Errorf("Expected bob to be announced, got %q", joined.Participant.Name)
	}

	testhelpers.MustSend(t, alice, server.IntentChatSend, server.ChatSendPayload{Text: "hello, bob"})
	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		var msg server.ChatMessage
		testhelpers.ReadUntil(t, conn, server.EventChatMessage, &msg)
		if msg.Event.Text != "hello, bob" || msg.Event.Author.ID != aliceInit.Self.ID {
			t.Errorf("%s received unexpected chat event: %+v", name, msg.Event)
		}
	}

	carol := testhelpers.MustConnect(t, testServer.URL)
	carolInit := testhelpers.JoinAs(t, carol, "carol")
	if len(carolInit.Participants) != 3 {
		t.Errorf("Expected 3 participants, got %d", len(carolInit.Participants))
	}
	if len(carolInit.ChatHistory) != 4 {
		t.Fatalf("Expected 4 history entries, got %d", len(carolInit.ChatHistory))
	}
	if carolInit.ChatHistory[2].Text != "hello, bob" {
		t.Errorf("Expected chat message replayed in order, got %q", carolInit.ChatHistory[2].Text)
	}
}

// TestTicTacToeGameEndToEnd plays a full game to a diagonal win and checks
// the final state through the REST view.
func TestTicTacToeGameEndToEnd(t *testing.T) {
	_, testServer := testhelpers.StartServer(t, nil)

	alice := testhelpers.MustConnect(t, testServer.URL)
	aliceID := testhelpers.JoinAs(t, alice, "alice").Self.ID
	bob := testhelpers.MustConnect(t, testServer.URL)
	bobID := testhelpers.JoinAs(t, bob, "bob").Self.ID

	instance := startGame(t, alice, bob, bobID)
	if instance.Seats[0].ID != aliceID || instance.Turn != game.MarkX {
		t.Fatalf("Challenger should hold X and move first: %+v", instance)
	}

	moves := []struct {
		conn *websocket.Conn
		cell int
	}{{alice, 0}, {bob, 1}, {alice, 4}, {bob, 2}, {alice, 8}}

	var last game.Instance
	for _, m := range moves {
		move(t, m.conn, instance.ID, m.cell)
		last = readState(t, alice)
		if other := readState(t, bob); !other.UpdatedAt.Equal(last.UpdatedAt) {
			t.Fatalf("Seats diverged after cell %d", m.cell)
		}
	}

	if last.Status != game.StatusFinished || last.Winner != game.MarkX || last.IsDraw {
		t.Fatalf("Expected X to win, got %+v", last)
	}

	move(t, bob, instance.ID, 5)
	var rejected server.IntentRejected
	testhelpers.ReadUntil(t, bob, server.EventIntentRejected, &rejected)
	if rejected.Code != "GAME_OVER" {
		t.Errorf("Expected GAME_OVER, got %s", rejected.Code)
	}

	resp := testhelpers.MakeRequest(t, http.MethodGet, testServer.URL+"/api/v1/games/"+instance.ID)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	var stored game.Instance
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("Failed to decode game: %v", err)
	}
	if stored.WinnerID() != aliceID {
		t.Errorf("Expected alice to be recorded as winner, got %q", stored.WinnerID())
	}
}

// TestDisconnectForfeitsEndToEnd verifies that closing a socket mid-game
// hands the win to the remaining seat and announces the departure once.
func TestDisconnectForfeitsEndToEnd(t *testing.T) {
	_, testServer := testhelpers.StartServer(t, nil)

	alice := testhelpers.MustConnect(t, testServer.URL)
	aliceID := testhelpers.JoinAs(t, alice, "alice").Self.ID
	bob := testhelpers.MustConnect(t, testServer.URL)
	bobID := testhelpers.JoinAs(t, bob, "bob").Self.ID

	instance := startGame(t, alice, bob, bobID)

	if err := testhelpers.CloseWebSocket(alice); err != nil {
		t.Fatalf("Failed to close alice: %v", err)
	}

	final := readState(t, bob)
	if final.ID != instance.ID || final.Status != game.StatusFinished {
		t.Fatalf("Expected finished instance %s, got %+v", instance.ID, final)
	}
	if final.ForfeitedBy != aliceID || final.Winner != game.MarkO {
		t.Errorf("Expected alice to forfeit to O, got forfeitedBy=%q winner=%q", final.ForfeitedBy, final.Winner)
	}

	var left server.ParticipantLeft
	testhelpers.ReadUntil(t, bob, server.EventParticipantLeft, &left)
	if left.ParticipantID != aliceID || left.SystemNotice.Text != "alice has left the chat" {
		t.Errorf("Unexpected departure notice: %+v", left)
	}

	resp := testhelpers.MakeRequest(t, http.MethodGet, testServer.URL+"/api/v1/participants")
	var body struct {
		Participants []struct {
			ID string `json:"id"`
		} `json:"participants"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode participants: %v", err)
	}
	if len(body.Participants) != 1 || body.Participants[0].ID != bobID {
		t.Errorf("Expected only bob online, got %+v", body.Participants)
	}
}

// TestTypingIndicatorEndToEnd verifies typing changes skip the sender.
func TestTypingIndicatorEndToEnd(t *testing.T) {
	_, testServer := testhelpers.StartServer(t, nil)

	alice := testhelpers.MustConnect(t, testServer.URL)
	testhelpers.JoinAs(t, alice, "alice")
	bob := testhelpers.MustConnect(t, testServer.URL)
	testhelpers.JoinAs(t, bob, "bob")
	testhelpers.ReadUntil(t, alice, server.EventParticipantJoined, nil)

	testhelpers.MustSend(t, bob, server.IntentTypingSet, server.TypingSetPayload{IsTyping: true})

	var changed server.TypingChanged
	testhelpers.ReadUntil(t, alice, server.EventTypingChanged, &changed)
	if changed.Name != "bob" || !changed.IsTyping {
		t.Errorf("Unexpected typing notification: %+v", changed)
	}
	testhelpers.ExpectNoMessage(t, bob, 200*time.Millisecond)
}
