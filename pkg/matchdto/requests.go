package matchdto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrInvalidPayload = errors.New("invalid payload")

const (
	RoomIDLength       = 8
	MaxUsernameRunes   = 32
	DefaultDisplayName = "Anonymous"
	maxNotationLength  = 16
)

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type MoveRequest struct {
	Move MoveInput `json:"move"`
	Room string    `json:"room"`
}

type ResetRequest struct {
	Room string `json:"room"`
}

// Decode unmarshals data into v and reports ErrInvalidPayload on malformed JSON.
func Decode(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// NormalizeRoomID upper-cases and validates a client supplied room id.
func NormalizeRoomID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if len(id) != RoomIDLength {
		return "", fmt.Errorf("%w: room id must be %d characters", ErrInvalidPayload, RoomIDLength)
	}
	for _, r := range id {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return "", fmt.Errorf("%w: room id must be alphanumeric", ErrInvalidPayload)
		}
	}
	return id, nil
}

// DecodeUsername accepts a JSON string; blanks fall back to DefaultDisplayName.
func DecodeUsername(data json.RawMessage) (string, error) {
	var name string
	if err := Decode(data, &name); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDisplayName, nil
	}
	if utf8.RuneCountInString(name) > MaxUsernameRunes {
		name = string([]rune(name)[:MaxUsernameRunes])
	}
	return name, nil
}

// MoveInput is the client's move as sent: a notation string ("e2e4", "Nf3") or an
// object {from, to, promotion}. The raw JSON is kept so it can be echoed verbatim.
type MoveInput struct {
	Raw       json.RawMessage
	Text      string
	From      string
	To        string
	Promotion string
}

func (m *MoveInput) UnmarshalJSON(b []byte) error {
	m.Raw = append(m.Raw[:0], b...)
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &m.Text)
	case '{':
		var obj struct {
			From      string `json:"from"`
			To        string `json:"to"`
			Promotion string `json:"promotion"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		m.From, m.To, m.Promotion = obj.From, obj.To, obj.Promotion
		return nil
	default:
		return fmt.Errorf("%w: move must be a string or object", ErrInvalidPayload)
	}
}

func (m MoveInput) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	if m.From != "" || m.To != "" {
		return json.Marshal(struct {
			From      string `json:"from"`
			To        string `json:"to"`
			Promotion string `json:"promotion,omitempty"`
		}{m.From, m.To, m.Promotion})
	}
	return json.Marshal(m.Text)
}

// Notation returns the move as text the rules engine understands.
func (m MoveInput) Notation() string {
	if m.From != "" || m.To != "" {
		return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
	}
	return strings.TrimSpace(m.Text)
}

func (m MoveInput) Validate() error {
	n := m.Notation()
	if n == "" {
		return fmt.Errorf("%w: empty move", ErrInvalidPayload)
	}
	if len(n) > maxNotationLength {
		return fmt.Errorf("%w: move too long", ErrInvalidPayload)
	}
	return nil
}

func (r MoveRequest) Validate() (string, error) {
	id, err := NormalizeRoomID(r.Room)
	if err != nil {
		return "", err
	}
	if err := r.Move.Validate(); err != nil {
		return "", err
	}
	return id, nil
}
