package websocket

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// UserID identifies a user across the registry, presence set and wire payloads.
// It decodes from a JSON string or number and always encodes as a string.
type UserID string

func FromUint(id uint) UserID {
	return UserID(strconv.FormatUint(uint64(id), 10))
}

func FromUints(ids []uint) []UserID {
	out := make([]UserID, 0, len(ids))
	for _, id := range ids {
		out = append(out, FromUint(id))
	}
	return out
}

func (u UserID) String() string {
	return string(u)
}

// Uint parses the id as a database key.
func (u UserID) Uint() (uint, error) {
	return parseUint(string(u))
}

func (u *UserID) UnmarshalJSON(b []byte) error {
	s, err := decodeID(b)
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*u = UserID(s)
	return nil
}

// ChatID identifies a chat in realtime payloads.
type ChatID string

func ChatIDFromUint(id uint) ChatID {
	return ChatID(strconv.FormatUint(uint64(id), 10))
}

func (c ChatID) String() string {
	return string(c)
}

func (c ChatID) Uint() (uint, error) {
	return parseUint(string(c))
}

func (c *ChatID) UnmarshalJSON(b []byte) error {
	s, err := decodeID(b)
	if err != nil {
		return fmt.Errorf("chat id: %w", err)
	}
	*c = ChatID(s)
	return nil
}

func decodeID(b []byte) (string, error) {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func parseUint(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(n), nil
}

// Identity is the authenticated user bound to a session.
type Identity struct {
	ID   UserID
	Name string
}

// Handle is one live connection. The registry stores handles but never owns them.
type Handle interface {
	ID() string
	UserID() UserID
	Send(frame []byte) error
	Close() error
}
