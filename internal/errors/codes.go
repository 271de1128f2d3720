// Package errors provides the domain error codes shared by the presence,
// chat, invite and game packages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

// Kind groups codes into the categories a caller can react to.
type Kind string

const (
	KindUnknown       Kind = "UNKNOWN"
	KindNotFound      Kind = "NOT_FOUND"
	KindForbidden     Kind = "FORBIDDEN"
	KindInvalidState  Kind = "INVALID_STATE"
	KindInvalidInput  Kind = "INVALID_INPUT"
	KindAlreadyJoined Kind = "ALREADY_JOINED"
)

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Presence errors
	CodeAlreadyJoined       Code = "ALREADY_JOINED"
	CodeConnectionNotFound  Code = "CONNECTION_NOT_FOUND"
	CodeParticipantNotFound Code = "PARTICIPANT_NOT_FOUND"

	// Invite errors
	CodeInviteNotFound        Code = "INVITE_NOT_FOUND"
	CodeInviteTargetNotFound  Code = "INVITE_TARGET_NOT_FOUND"
	CodeInviteForbidden       Code = "INVITE_FORBIDDEN"
	CodeInviteAlreadyResolved Code = "INVITE_ALREADY_RESOLVED"
	CodeInvitePending         Code = "INVITE_PENDING"
	CodeInviteSelf            Code = "INVITE_SELF"

	// Game errors
	CodeGameNotFound    Code = "GAME_NOT_FOUND"
	CodeGameOver        Code = "GAME_OVER"
	CodeGameInProgress  Code = "GAME_IN_PROGRESS"
	CodeNotAParticipant Code = "NOT_A_PARTICIPANT"
	CodeOutOfTurn       Code = "OUT_OF_TURN"
	CodeInvalidCell     Code = "INVALID_CELL"
	CodeCellOccupied    Code = "CELL_OCCUPIED"
	CodeUnknownGameKind Code = "UNKNOWN_GAME_KIND"
	CodeDuplicateSeat   Code = "DUPLICATE_SEAT"

	// Protocol errors
	CodeMalformedFrame Code = "MALFORMED_FRAME"
	CodeUnknownIntent  Code = "UNKNOWN_INTENT"
	CodeNotJoined      Code = "NOT_JOINED"
)

// Kind maps a code to its category.
func (c Code) Kind() Kind {
	switch c {
	case CodeConnectionNotFound,
		CodeParticipantNotFound,
		CodeInviteNotFound,
		CodeInviteTargetNotFound,
		CodeGameNotFound,
		CodeNotJoined:
		return KindNotFound

	case CodeInviteForbidden,
		CodeNotAParticipant:
		return KindForbidden

	case CodeInviteAlreadyResolved,
		CodeInvitePending,
		CodeGameOver,
		CodeGameInProgress,
		CodeOutOfTurn:
		return KindInvalidState

	case CodeInvalidCell,
		CodeCellOccupied,
		CodeInviteSelf,
		CodeUnknownGameKind,
		CodeDuplicateSeat,
		CodeMalformedFrame,
		CodeUnknownIntent:
		return KindInvalidInput

	case CodeAlreadyJoined:
		return KindAlreadyJoined

	default:
		return KindUnknown
	}
}

// Error is a domain error carrying a code and a human-readable message.
type Error struct {
	Code    Code
	Message string
}

// New returns an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf returns an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so package sentinels can be
// compared against errors built with Newf.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// KindOf extracts the category from err.
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}

// MessageOf returns the human-readable part of err.
func MessageOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
