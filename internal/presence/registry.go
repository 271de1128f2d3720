// Package presence tracks who is online: one Participant per live
// connection, plus each participant's latest typing flag.
package presence

import (
	"fmt"
	"time"

	apperrors "github.com/Tyrowin/gamechat/internal/errors"
	"github.com/google/uuid"
)

// DefaultAvatarTemplate derives an avatar URL from a participant id.
const DefaultAvatarTemplate = "https://api.dicebear.com/7.x/avataaars/svg?seed=%s"

var (
	ErrAlreadyJoined       = apperrors.New(apperrors.CodeAlreadyJoined, "connection already joined")
	ErrConnectionNotFound  = apperrors.New(apperrors.CodeConnectionNotFound, "connection has not joined")
	ErrParticipantNotFound = apperrors.New(apperrors.CodeParticipantNotFound, "participant not found")
)

// Snapshot is a copy of a participant's identity taken at reference time.
type Snapshot struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Participant is an identified, currently-connected actor.
type Participant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar"`
	ConnectionID string    `json:"-"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Snapshot copies the identity fields of p.
func (p Participant) Snapshot() Snapshot {
	return Snapshot{ID: p.ID, Name: p.Name, Avatar: p.Avatar}
}

// Registry maps connection ids to participants. It is not safe for
// concurrent use; the hub event loop owns it.
type Registry struct {
	byConnection   map[string]*Participant
	byID           map[string]*Participant
	order          []string
	typing         map[string]bool
	avatarTemplate string
	newID          func() string
	now            func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithAvatarTemplate sets the fmt template used for default avatars. It must
// contain exactly one %s verb for the participant id.
func WithAvatarTemplate(template string) Option {
	return func(r *Registry) {
		if template != "" {
			r.avatarTemplate = template
		}
	}
}

// WithIDGenerator replaces uuid generation, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byConnection:   make(map[string]*Participant),
		byID:           make(map[string]*Participant),
		typing:         make(map[string]bool),
		avatarTemplate: DefaultAvatarTemplate,
		newID:          func() string { return uuid.NewString() },
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join allocates a fresh identity for connectionID. Empty name or avatar
// fall back to defaults derived from the generated id.
func (r *Registry) Join(connectionID, name, avatar string) (Participant, error) {
	if _, exists := r.byConnection[connectionID]; exists {
		return Participant{}, apperrors.Newf(apperrors.CodeAlreadyJoined, "connection %s already joined", connectionID)
	}

	id := r.newID()
	if name == "" {
		name = defaultName(id)
	}
	if avatar == "" {
		avatar = fmt.Sprintf(r.avatarTemplate, id)
	}

	p := &Participant{
		ID:           id,
		Name:         name,
		Avatar:       avatar,
		ConnectionID: connectionID,
		JoinedAt:     r.now(),
	}
	r.byConnection[connectionID] = p
	r.byID[id] = p
	r.order = append(r.order, connectionID)
	return *p, nil
}

func defaultName(id string) string {
	short := id
	if len(short) > 6 {
		short = short[:6]
	}
	return "User-" + short
}

// Leave removes and returns the participant bound to connectionID.
func (r *Registry) Leave(connectionID string) (Participant, error) {
	p, ok := r.byConnection[connectionID]
	if !ok {
		return Participant{}, apperrors.Newf(apperrors.CodeConnectionNotFound, "connection %s has not joined", connectionID)
	}

	delete(r.byConnection, connectionID)
	delete(r.byID, p.ID)
	delete(r.typing, p.ID)
	for i, c := range r.order {
		if c == connectionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *p, nil
}

// ByConnection returns the participant bound to connectionID.
func (r *Registry) ByConnection(connectionID string) (Participant, error) {
	p, ok := r.byConnection[connectionID]
	if !ok {
		return Participant{}, apperrors.Newf(apperrors.CodeConnectionNotFound, "connection %s has not joined", connectionID)
	}
	return *p, nil
}

// ByID returns the participant with the given stable id.
func (r *Registry) ByID(participantID string) (Participant, error) {
	p, ok := r.byID[participantID]
	if !ok {
		return Participant{}, apperrors.Newf(apperrors.CodeParticipantNotFound, "participant %s not found", participantID)
	}
	return *p, nil
}

// List returns every participant in join order.
func (r *Registry) List() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, *r.byConnection[c])
	}
	return out
}

// Len reports the number of online participants.
func (r *Registry) Len() int {
	return len(r.order)
}

// SetTyping records the latest typing flag and reports whether it changed.
func (r *Registry) SetTyping(participantID string, typing bool) (bool, error) {
	if _, ok := r.byID[participantID]; !ok {
		return false, apperrors.Newf(apperrors.CodeParticipantNotFound, "participant %s not found", participantID)
	}
	prev := r.typing[participantID]
	if typing {
		r.typing[participantID] = true
	} else {
		delete(r.typing, participantID)
	}
	return prev != typing, nil
}

// Typing reports the latest known typing flag.
func (r *Registry) Typing(participantID string) bool {
	return r.typing[participantID]
}
