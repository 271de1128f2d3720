// Package invite tracks game challenges between participants from creation
// to acceptance, rejection or expiry.
package invite

import (
	"sort"
	"time"

	apperrors "github.com/Tyrowin/gamechat/internal/errors"
	"github.com/Tyrowin/gamechat/internal/game"
	"github.com/Tyrowin/gamechat/internal/presence"
	"github.com/google/uuid"
)

// DefaultTimeout is how long an invite stays pending before it expires.
const DefaultTimeout = 60 * time.Second

// Status is the lifecycle state of an invite.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

var (
	ErrNotFound        = apperrors.New(apperrors.CodeInviteNotFound, "invite not found")
	ErrTargetNotFound  = apperrors.New(apperrors.CodeInviteTargetNotFound, "invite target not found")
	ErrForbidden       = apperrors.New(apperrors.CodeInviteForbidden, "only the invited participant may respond")
	ErrAlreadyResolved = apperrors.New(apperrors.CodeInviteAlreadyResolved, "invite already resolved")
	ErrPending         = apperrors.New(apperrors.CodeInvitePending, "an invite between these participants is already pending")
	ErrSelf            = apperrors.New(apperrors.CodeInviteSelf, "cannot invite yourself")
)

// Invite is a time-bounded proposal to start a game.
type Invite struct {
	ID         string            `json:"id"`
	GameKind   game.Kind         `json:"gameType"`
	From       presence.Snapshot `json:"from"`
	To         presence.Snapshot `json:"to"`
	CreatedAt  time.Time         `json:"timestamp"`
	Status     Status            `json:"status"`
	InstanceID string            `json:"instanceId,omitempty"`
}

// Directory resolves participant ids to live participants.
type Directory interface {
	ByID(participantID string) (presence.Participant, error)
}

// Games starts game instances for accepted invites.
type Games interface {
	Supports(kind game.Kind) bool
	Create(kind game.Kind, seatA, seatB presence.Snapshot) (game.Instance, error)
}

// Scheduler arranges for Expire(inviteID) to be called after the delay,
// through the same serialization the ledger's other callers use.
type Scheduler interface {
	ScheduleExpiry(inviteID string, after time.Duration)
}

type pair struct{ a, b string }

func pairOf(x, y string) pair {
	if x > y {
		x, y = y, x
	}
	return pair{x, y}
}

// Ledger holds every invite ever created. It is not safe for concurrent use.
type Ledger struct {
	invites   map[string]*Invite
	pending   map[pair]string
	directory Directory
	games     Games
	scheduler Scheduler
	timeout   time.Duration
	newID     func() string
	now       func() time.Time
}

// NewLedger wires a ledger to its collaborators. A non-positive timeout
// falls back to DefaultTimeout.
func NewLedger(directory Directory, games Games, scheduler Scheduler, timeout time.Duration) *Ledger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Ledger{
		invites:   make(map[string]*Invite),
		pending:   make(map[pair]string),
		directory: directory,
		games:     games,
		scheduler: scheduler,
		timeout:   timeout,
		newID:     func() string { return uuid.NewString() },
		now:       time.Now,
	}
}

// SetClock replaces time.Now.
func (l *Ledger) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Timeout returns the pending lifetime of new invites.
func (l *Ledger) Timeout() time.Duration {
	return l.timeout
}

// Create records a pending invite from fromID to toID and schedules its
// expiry.
func (l *Ledger) Create(fromID, toID string, kind game.Kind) (Invite, error) {
	from, err := l.directory.ByID(fromID)
	if err != nil {
		return Invite{}, err
	}
	to, err := l.directory.ByID(toID)
	if err != nil {
		return Invite{}, apperrors.Newf(apperrors.CodeInviteTargetNotFound, "participant %s is not online", toID)
	}
	if from.ID == to.ID {
		return Invite{}, apperrors.Newf(apperrors.CodeInviteSelf, "participant %s cannot invite themselves", fromID)
	}
	if existing, ok := l.pending[pairOf(from.ID, to.ID)]; ok {
		return Invite{}, apperrors.Newf(apperrors.CodeInvitePending, "invite %s between %s and %s is still pending", existing, from.ID, to.ID)
	}

	inv := &Invite{
		ID:        l.newID(),
		GameKind:  kind,
		From:      from.Snapshot(),
		To:        to.Snapshot(),
		CreatedAt: l.now(),
		Status:    StatusPending,
	}
	l.invites[inv.ID] = inv
	l.pending[pairOf(from.ID, to.ID)] = inv.ID

	if l.scheduler != nil {
		l.scheduler.ScheduleExpiry(inv.ID, l.timeout)
	}
	return *inv, nil
}

// Respond resolves a pending invite on behalf of its target. Accepting an
// invite for a supported game kind starts an instance with the challenger
// in the first seat; the instance is returned and its id recorded on the
// invite.
func (l *Ledger) Respond(inviteID, byID string, accept bool) (Invite, *game.Instance, error) {
	inv, ok := l.invites[inviteID]
	if !ok {
		return Invite{}, nil, apperrors.Newf(apperrors.CodeInviteNotFound, "invite %s not found", inviteID)
	}
	if inv.To.ID != byID {
		return Invite{}, nil, apperrors.Newf(apperrors.CodeInviteForbidden, "participant %s is not the target of invite %s", byID, inviteID)
	}
	if inv.Status != StatusPending {
		return Invite{}, nil, apperrors.Newf(apperrors.CodeInviteAlreadyResolved, "invite %s is %s", inviteID, inv.Status)
	}

	if !accept {
		l.resolve(inv, StatusRejected)
		return *inv, nil, nil
	}

	var instance *game.Instance
	if l.games != nil && l.games.Supports(inv.GameKind) {
		created, err := l.games.Create(inv.GameKind, inv.From, inv.To)
		if err != nil {
			return Invite{}, nil, err
		}
		instance = &created
		inv.InstanceID = created.ID
	}
	l.resolve(inv, StatusAccepted)
	return *inv, instance, nil
}

// Expire moves a still-pending invite to expired. It reports false, and
// changes nothing, when the invite is unknown or already resolved.
func (l *Ledger) Expire(inviteID string) (Invite, bool) {
	inv, ok := l.invites[inviteID]
	if !ok || inv.Status != StatusPending {
		return Invite{}, false
	}
	l.resolve(inv, StatusExpired)
	return *inv, true
}

// ExpireFor expires every pending invite participantID is party to, oldest
// first.
func (l *Ledger) ExpireFor(participantID string) []Invite {
	pending := l.Pending(participantID)
	out := make([]Invite, 0, len(pending))
	for _, p := range pending {
		if inv, ok := l.Expire(p.ID); ok {
			out = append(out, inv)
		}
	}
	return out
}

// Get returns a copy of the invite.
func (l *Ledger) Get(inviteID string) (Invite, error) {
	inv, ok := l.invites[inviteID]
	if !ok {
		return Invite{}, apperrors.Newf(apperrors.CodeInviteNotFound, "invite %s not found", inviteID)
	}
	return *inv, nil
}

// Pending lists the pending invites participantID sent or received, oldest
// first.
func (l *Ledger) Pending(participantID string) []Invite {
	var out []Invite
	for p, id := range l.pending {
		if p.a == participantID || p.b == participantID {
			out = append(out, *l.invites[id])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// PendingCount returns the number of invites awaiting a response.
func (l *Ledger) PendingCount() int {
	return len(l.pending)
}

func (l *Ledger) resolve(inv *Invite, status Status) {
	inv.Status = status
	key := pairOf(inv.From.ID, inv.To.ID)
	if l.pending[key] == inv.ID {
		delete(l.pending, key)
	}
}
