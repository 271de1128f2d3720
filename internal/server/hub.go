// Package server coordinates client registration, intent dispatch and
// connection cleanup for the GameChat WebSocket system via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Tyrowin/gamechat/internal/chat"
	"github.com/Tyrowin/gamechat/internal/game"
	"github.com/Tyrowin/gamechat/internal/invite"
	"github.com/Tyrowin/gamechat/internal/presence"
	"github.com/gorilla/websocket"
)

// ErrHubStopped is returned by reads issued after the hub has shut down.
var ErrHubStopped = errors.New("hub stopped")

// inbound is a decoded frame waiting for the hub loop. err is set when the
// frame could not be decoded.
type inbound struct {
	client   *Client
	envelope Envelope
	err      error
}

// Hub is the single owner of the presence registry, chat log, invite ledger
// and game table. Every mutation and every read happens on the Run goroutine,
// fed by the register, unregister, inbound, expiries and queries channels.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	expiries   chan string
	queries    chan func()
	failed     []*Client
	timers     map[string]*time.Timer

	registry *presence.Registry
	chat     *chat.Log
	ledger   *invite.Ledger
	table    *game.Table
	metrics  *hubMetrics
	upgrader websocket.Upgrader

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub sized from the active configuration. The returned Hub
// does nothing until Run is started.
func NewHub() *Hub {
	cfg := currentConfig()
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		expiries:   make(chan string),
		queries:    make(chan func()),
		timers:     make(map[string]*time.Timer),
		registry:   presence.NewRegistry(presence.WithAvatarTemplate(cfg.AvatarURLTemplate)),
		chat:       chat.NewLog(cfg.ChatHistorySize),
		table:      game.NewTable(),
		metrics:    newHubMetrics(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.ledger = invite.NewLedger(h.registry, h.table, h, cfg.InviteTimeout)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// MetricsHandler serves the hub's Prometheus registry.
func (h *Hub) MetricsHandler() http.Handler {
	return h.metrics.handler()
}

// submit queues a frame for the loop. It returns false once the hub stops.
func (h *Hub) submit(c *Client, env Envelope, err error) bool {
	select {
	case h.inbound <- inbound{client: c, envelope: env, err: err}:
		return true
	case <-h.done:
		return false
	}
}

// leave queues c for removal unless the hub has already stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ScheduleExpiry arms a timer that hands inviteID back to the loop. The
// ledger decides on arrival whether the invite is still pending.
func (h *Hub) ScheduleExpiry(inviteID string, after time.Duration) {
	h.timers[inviteID] = time.AfterFunc(after, func() {
		select {
		case h.expiries <- inviteID:
		case <-h.done:
		}
	})
}

func (h *Hub) stopTimer(inviteID string) {
	if t, ok := h.timers[inviteID]; ok {
		t.Stop()
		delete(h.timers, inviteID)
	}
}

// Run starts the hub's event loop. It should be called in its own goroutine
// and returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.inbound:
			h.dispatch(msg)

		case inviteID := <-h.expiries:
			delete(h.timers, inviteID)
			h.handleExpiry(inviteID)

		case fn := <-h.queries:
			fn()
		}

		h.removeFailedClients()
		h.updateGauges()
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		log.Printf("Received nil client registration; skipping")
		return
	}

	client.closed = false
	h.clients[client.id] = client
	log.Printf("Client registered from %s. Total clients: %d", client.addr, len(h.clients))

	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// removeClient drops the connection and, if it had joined, runs the
// disconnect procedure. Unknown or already removed clients are ignored.
func (h *Hub) removeClient(client *Client) {
	if client == nil {
		return
	}
	current, ok := h.clients[client.id]
	if !ok || current != client {
		return
	}

	delete(h.clients, client.id)
	client.closed = true
	close(client.send)
	log.Printf("Client unregistered from %s. Total clients: %d", client.addr, len(h.clients))

	h.handleDisconnect(client)
}

// isLive reports whether client is still registered with the hub.
func (h *Hub) isLive(client *Client) bool {
	current, ok := h.clients[client.id]
	return ok && current == client && !client.closed
}

// encode marshals a notification once for fan-out.
func encode(eventType string, payload any) []byte {
	data, err := json.Marshal(notification{Type: eventType, Payload: payload})
	if err != nil {
		log.Printf("Error encoding %s notification: %v", eventType, err)
		return nil
	}
	return data
}

// deliver queues frame on client without blocking. A full buffer marks the
// client for removal once the current event is done.
func (h *Hub) deliver(client *Client, frame []byte) {
	if frame == nil || !h.isLive(client) {
		return
	}

	select {
	case client.send <- frame:
	default:
		h.failed = append(h.failed, client)
	}
}

// sendTo pushes one notification to a single connection.
func (h *Hub) sendTo(client *Client, eventType string, payload any) {
	h.deliver(client, encode(eventType, payload))
}

// sendToParticipant pushes a notification to the participant's connection
// if they are still online.
func (h *Hub) sendToParticipant(participantID, eventType string, payload any) {
	p, err := h.registry.ByID(participantID)
	if err != nil {
		return
	}
	if client, ok := h.clients[p.ConnectionID]; ok {
		h.sendTo(client, eventType, payload)
	}
}

// broadcast sends a notification to every joined connection except skip.
func (h *Hub) broadcast(eventType string, payload any, skip *Client) {
	frame := encode(eventType, payload)
	targets := 0
	for _, p := range h.registry.List() {
		client, ok := h.clients[p.ConnectionID]
		if !ok || client == skip {
			continue
		}
		h.deliver(client, frame)
		targets++
	}
	log.Printf("Broadcasting %s to %d clients", eventType, targets)
}

// removeFailedClients removes clients whose send buffer overflowed. Removing
// a joined client broadcasts its departure, which can overflow others, so
// the queue is drained until it stays empty.
func (h *Hub) removeFailedClients() {
	for len(h.failed) > 0 {
		batch := h.failed
		h.failed = nil
		for _, client := range batch {
			if !h.isLive(client) {
				continue
			}
			log.Printf("Client from %s removed due to full send buffer", client.addr)
			h.metrics.droppedClients.Inc()
			h.removeClient(client)
		}
	}
}

func (h *Hub) updateGauges() {
	h.metrics.connections.Set(float64(len(h.clients)))
	h.metrics.participants.Set(float64(h.registry.Len()))
	h.metrics.activeGames.Set(float64(h.table.Active()))
	h.metrics.pendingInvites.Set(float64(h.ledger.PendingCount()))
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}

	closed := 0
	for id, client := range h.clients {
		delete(h.clients, id)
		client.closed = true
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
		closed++
	}

	log.Printf("Closed %d client connections", closed)
}

// query runs fn on the loop goroutine and waits for it to finish.
func (h *Hub) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case h.queries <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
	<-finished
	return nil
}

// Participants lists who is online, in join order.
func (h *Hub) Participants(ctx context.Context) ([]presence.Participant, error) {
	var out []presence.Participant
	err := h.query(ctx, func() {
		out = h.registry.List()
	})
	return out, err
}

// ChatHistory returns the bounded chat history, oldest first.
func (h *Hub) ChatHistory(ctx context.Context) ([]chat.Event, error) {
	var out []chat.Event
	err := h.query(ctx, func() {
		out = h.chat.Snapshot()
	})
	return out, err
}

// Game returns a copy of a game instance.
func (h *Hub) Game(ctx context.Context, instanceID string) (game.Instance, error) {
	var (
		out    game.Instance
		getErr error
	)
	if err := h.query(ctx, func() {
		out, getErr = h.table.Get(instanceID)
	}); err != nil {
		return game.Instance{}, err
	}
	return out, getErr
}

// Invite returns a copy of an invite in any state.
func (h *Hub) Invite(ctx context.Context, inviteID string) (invite.Invite, error) {
	var (
		out    invite.Invite
		getErr error
	)
	if err := h.query(ctx, func() {
		out, getErr = h.ledger.Get(inviteID)
	}); err != nil {
		return invite.Invite{}, err
	}
	return out, getErr
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
