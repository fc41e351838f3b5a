package postgres

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor points after the last row of a history page. It is bound to one
// session so a cursor from another event is rejected instead of silently
// paging the wrong log.
type Cursor struct {
	Session string `json:"s"`
	Pos     int64  `json:"p"`
}

func (c Cursor) Encode() string {
	data, _ := json.Marshal(c) // два скалярных поля, ошибки быть не может
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses s for sessionID; an empty s means "from the start".
func DecodeCursor(s, sessionID string) (Cursor, error) {
	if s == "" {
		return Cursor{Session: sessionID}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.Session != sessionID {
		return Cursor{}, fmt.Errorf("%w: issued for another session", ErrInvalidCursor)
	}
	return c, nil
}
