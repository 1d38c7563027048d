package match

import "errors"

// Kind groups errors the way clients react to them.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindPermissionDenied Kind = "permission_denied"
	KindInvalidInput     Kind = "invalid_input"
	KindInternal         Kind = "internal"
)

// Error is a domain error. Code is the stable wire code and the msgcat key suffix.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	RoomID  string
}

func (e *Error) Error() string {
	if e.RoomID != "" {
		return e.Message + " (" + e.RoomID + ")"
	}
	return e.Message
}

// Is matches any *Error with the same code, so copies carrying a RoomID still match the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) withRoom(id string) *Error {
	c := *e
	c.RoomID = id
	return &c
}

var (
	ErrRoomNotFound    = &Error{Kind: KindNotFound, Code: "room_not_found", Message: "room not found"}
	ErrSessionNotFound = &Error{Kind: KindNotFound, Code: "session_not_found", Message: "game session not found"}

	ErrRoomFull      = &Error{Kind: KindConflict, Code: "room_full", Message: "room is full"}
	ErrAlreadyJoined = &Error{Kind: KindConflict, Code: "already_joined", Message: "already joined this room"}
	ErrAlreadyInRoom = &Error{Kind: KindConflict, Code: "already_in_room", Message: "connection is already seated in another room"}
	ErrGameNotActive = &Error{Kind: KindConflict, Code: "game_not_active", Message: "game is not in progress"}

	ErrNotAParticipant = &Error{Kind: KindPermissionDenied, Code: "not_a_participant", Message: "not a participant of this room"}
	ErrOutOfTurn       = &Error{Kind: KindPermissionDenied, Code: "out_of_turn", Message: "not your turn"}

	ErrIllegalMove  = &Error{Kind: KindInvalidInput, Code: "illegal_move", Message: "illegal move"}
	ErrInvalidInput = &Error{Kind: KindInvalidInput, Code: "invalid_input", Message: "invalid input"}
	ErrUnknownEvent = &Error{Kind: KindInvalidInput, Code: "unknown_event", Message: "unknown event"}

	ErrIDExhausted = &Error{Kind: KindInternal, Code: "id_exhausted", Message: "could not allocate a unique room id"}
	ErrInternal    = &Error{Kind: KindInternal, Code: "internal", Message: "internal error"}
)

// AsError extracts the domain error from err; anything else is reported as ErrInternal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
