// Package game owns every game instance and enforces turn order and
// terminal-state detection for two-player board games.
package game

import (
	"time"

	apperrors "github.com/Tyrowin/gamechat/internal/errors"
	"github.com/Tyrowin/gamechat/internal/presence"
	"github.com/google/uuid"
)

// Mark is the content of one board cell.
type Mark string

const (
	Empty Mark = ""
	MarkX Mark = "X"
	MarkO Mark = "O"
)

// Kind names a game type, e.g. "tictactoe".
type Kind string

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

var (
	ErrNotFound        = apperrors.New(apperrors.CodeGameNotFound, "game not found")
	ErrGameOver        = apperrors.New(apperrors.CodeGameOver, "game is finished")
	ErrInProgress      = apperrors.New(apperrors.CodeGameInProgress, "game is still being played")
	ErrNotAParticipant = apperrors.New(apperrors.CodeNotAParticipant, "not seated in this game")
	ErrOutOfTurn       = apperrors.New(apperrors.CodeOutOfTurn, "not your turn")
	ErrInvalidCell     = apperrors.New(apperrors.CodeInvalidCell, "cell index out of range")
	ErrCellOccupied    = apperrors.New(apperrors.CodeCellOccupied, "cell is occupied")
	ErrUnknownKind     = apperrors.New(apperrors.CodeUnknownGameKind, "unknown game kind")
	ErrDuplicateSeat   = apperrors.New(apperrors.CodeDuplicateSeat, "both seats hold the same participant")
)

// Instance is one live or completed game. Seat 0 plays X and moves first;
// seat 1 plays O.
type Instance struct {
	ID          string               `json:"id"`
	Kind        Kind                 `json:"gameType"`
	Board       []Mark               `json:"board"`
	Seats       [2]presence.Snapshot `json:"seats"`
	Turn        Mark                 `json:"currentPlayer"`
	Status      Status               `json:"status"`
	Winner      Mark                 `json:"winner"`
	IsDraw      bool                 `json:"isDraw"`
	ForfeitedBy string               `json:"forfeitedBy,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// SeatOf returns the mark played by participantID.
func (in Instance) SeatOf(participantID string) (Mark, bool) {
	switch participantID {
	case in.Seats[0].ID:
		return MarkX, true
	case in.Seats[1].ID:
		return MarkO, true
	}
	return Empty, false
}

// Player returns the seat snapshot playing mark m.
func (in Instance) Player(m Mark) presence.Snapshot {
	if m == MarkO {
		return in.Seats[1]
	}
	return in.Seats[0]
}

// WinnerID returns the participant id of the winner, if any.
func (in Instance) WinnerID() string {
	if in.Winner == Empty {
		return ""
	}
	return in.Player(in.Winner).ID
}

func (in *Instance) clone() Instance {
	out := *in
	out.Board = append([]Mark(nil), in.Board...)
	return out
}

// Table owns all game instances. It is not safe for concurrent use; the
// hub event loop owns it.
type Table struct {
	instances map[string]*Instance
	rules     map[Kind]Rules
	newID     func() string
	now       func() time.Time
}

// NewTable returns a Table with tic-tac-toe registered.
func NewTable() *Table {
	t := &Table{
		instances: make(map[string]*Instance),
		rules:     make(map[Kind]Rules),
		newID:     func() string { return uuid.NewString() },
		now:       time.Now,
	}
	t.Register(KindTicTacToe, TicTacToe{})
	return t
}

// Register makes kind available to Create.
func (t *Table) Register(kind Kind, rules Rules) {
	t.rules[kind] = rules
}

// Supports reports whether kind has registered rules.
func (t *Table) Supports(kind Kind) bool {
	_, ok := t.rules[kind]
	return ok
}

// SetClock replaces time.Now.
func (t *Table) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Create starts a new instance with an empty board and seatA to move.
func (t *Table) Create(kind Kind, seatA, seatB presence.Snapshot) (Instance, error) {
	rules, ok := t.rules[kind]
	if !ok {
		return Instance{}, apperrors.Newf(apperrors.CodeUnknownGameKind, "unknown game kind %q", kind)
	}
	if seatA.ID == seatB.ID {
		return Instance{}, apperrors.Newf(apperrors.CodeDuplicateSeat, "participant %s cannot take both seats", seatA.ID)
	}

	now := t.now()
	in := &Instance{
		ID:        t.newID(),
		Kind:      kind,
		Board:     make([]Mark, rules.Cells()),
		Seats:     [2]presence.Snapshot{seatA, seatB},
		Turn:      MarkX,
		Status:    StatusPlaying,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.instances[in.ID] = in
	return in.clone(), nil
}

// Get returns a copy of the instance.
func (t *Table) Get(instanceID string) (Instance, error) {
	in, ok := t.instances[instanceID]
	if !ok {
		return Instance{}, apperrors.Newf(apperrors.CodeGameNotFound, "game %s not found", instanceID)
	}
	return in.clone(), nil
}

// ApplyMove places the caller's mark on cell. Checks run in order:
// unknown game, finished game, caller not seated, out of turn, cell out of
// range, cell occupied. A rejected move leaves the instance untouched.
func (t *Table) ApplyMove(instanceID, participantID string, cell int) (Instance, error) {
	in, ok := t.instances[instanceID]
	if !ok {
		return Instance{}, apperrors.Newf(apperrors.CodeGameNotFound, "game %s not found", instanceID)
	}
	if in.Status == StatusFinished {
		return Instance{}, apperrors.Newf(apperrors.CodeGameOver, "game %s is finished", instanceID)
	}
	mark, seated := in.SeatOf(participantID)
	if !seated {
		return Instance{}, apperrors.Newf(apperrors.CodeNotAParticipant, "participant %s is not seated in game %s", participantID, instanceID)
	}
	if mark != in.Turn {
		return Instance{}, apperrors.Newf(apperrors.CodeOutOfTurn, "game %s is waiting on %s", instanceID, in.Turn)
	}
	if cell < 0 || cell >= len(in.Board) {
		return Instance{}, apperrors.Newf(apperrors.CodeInvalidCell, "cell %d outside 0..%d", cell, len(in.Board)-1)
	}
	if in.Board[cell] != Empty {
		return Instance{}, apperrors.Newf(apperrors.CodeCellOccupied, "cell %d is taken by %s", cell, in.Board[cell])
	}

	in.Board[cell] = mark
	in.UpdatedAt = t.now()

	// A full board with a winning line is a win, so the line check goes first.
	if winner := t.rules[in.Kind].Winner(in.Board); winner != Empty {
		in.Winner = winner
		in.Status = StatusFinished
	} else if full(in.Board) {
		in.IsDraw = true
		in.Status = StatusFinished
	} else {
		in.Turn = opponent(in.Turn)
	}
	return in.clone(), nil
}

func opponent(m Mark) Mark {
	if m == MarkX {
		return MarkO
	}
	return MarkX
}

// Forfeit finishes every playing instance seating participantID, awarding
// the win to the other seat. It returns the finished instances.
func (t *Table) Forfeit(participantID string) []Instance {
	var out []Instance
	for _, in := range t.instances {
		if in.Status != StatusPlaying {
			continue
		}
		mark, seated := in.SeatOf(participantID)
		if !seated {
			continue
		}
		in.Status = StatusFinished
		in.Winner = opponent(mark)
		in.ForfeitedBy = participantID
		in.UpdatedAt = t.now()
		out = append(out, in.clone())
	}
	return out
}

// Rematch starts a fresh instance between the seats of a finished game,
// with the seats swapped. The finished instance is not modified.
func (t *Table) Rematch(instanceID, participantID string) (Instance, error) {
	in, ok := t.instances[instanceID]
	if !ok {
		return Instance{}, apperrors.Newf(apperrors.CodeGameNotFound, "game %s not found", instanceID)
	}
	if _, seated := in.SeatOf(participantID); !seated {
		return Instance{}, apperrors.Newf(apperrors.CodeNotAParticipant, "participant %s is not seated in game %s", participantID, instanceID)
	}
	if in.Status != StatusFinished {
		return Instance{}, apperrors.Newf(apperrors.CodeGameInProgress, "game %s is still being played", instanceID)
	}
	if playing, ok := t.playingBetween(in.Seats[0].ID, in.Seats[1].ID); ok {
		return Instance{}, apperrors.Newf(apperrors.CodeGameInProgress, "game %s is already being played by the same seats", playing)
	}
	return t.Create(in.Kind, in.Seats[1], in.Seats[0])
}

// playingBetween returns the id of a playing instance seating both a and b.
func (t *Table) playingBetween(a, b string) (string, bool) {
	for id, in := range t.instances {
		if in.Status != StatusPlaying {
			continue
		}
		_, seatedA := in.SeatOf(a)
		_, seatedB := in.SeatOf(b)
		if seatedA && seatedB {
			return id, true
		}
	}
	return "", false
}

// Active counts instances still being played.
func (t *Table) Active() int {
	n := 0
	for _, in := range t.instances {
		if in.Status == StatusPlaying {
			n++
		}
	}
	return n
}
