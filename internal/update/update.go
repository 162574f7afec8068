package update

import (
	"encoding/json"
	"errors"
)

// ErrInvalidJSON is returned by Parse for payloads that are not well-formed JSON.
var ErrInvalidJSON = errors.New("update is not valid JSON")

// Update is an opaque event payload flowing through the router.
// The bytes are never mutated after Parse, so fan-out branches share them.
type Update json.RawMessage

// Parse copies b into a new Update after checking it is well-formed JSON.
func Parse(b []byte) (Update, error) {
	if !json.Valid(b) {
		return nil, ErrInvalidJSON
	}
	u := make(Update, len(b))
	copy(u, b)
	return u, nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Update {
	u, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return u
}

// MarshalJSON emits the payload verbatim.
func (u Update) MarshalJSON() ([]byte, error) {
	if u == nil {
		return []byte("null"), nil
	}
	return u, nil
}

// UnmarshalJSON stores a copy of the raw payload.
func (u *Update) UnmarshalJSON(b []byte) error {
	if u == nil {
		return errors.New("update: UnmarshalJSON on nil pointer")
	}
	*u = append(Update(nil), b...)
	return nil
}

// idExtractor pulls only update_id out of a Telegram update.
type idExtractor struct {
	UpdateID *int64 `json:"update_id"`
}

// ID returns the Telegram update_id if the payload carries one.
func (u Update) ID() (int64, bool) {
	var ex idExtractor
	if err := json.Unmarshal(u, &ex); err != nil || ex.UpdateID == nil {
		return 0, false
	}
	return *ex.UpdateID, true
}

// Decode unmarshals the payload into a generic Go value.
func (u Update) Decode() (any, error) {
	var v any
	if err := json.Unmarshal(u, &v); err != nil {
		return nil, err
	}
	return v, nil
}
