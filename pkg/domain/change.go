package domain

import (
	"encoding/json"
	"time"
)

// Action indicates the kind of modification captured in the audit trail.
type Action string

// Change actions enumerate the persisted mutations recorded for audit.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes one persisted mutation: which entity, which action, who
// performed it, and cloned before/after snapshots of the row.
type Change struct {
	Entity     EntityType    `json:"entity"`
	Action     Action        `json:"action"`
	EntityID   string        `json:"entity_id"`
	Actor      string        `json:"actor"`
	OccurredAt time.Time     `json:"occurred_at"`
	Before     ChangePayload `json:"before,omitempty"`
	After      ChangePayload `json:"after,omitempty"`
}

// ChangePayload wraps a JSON snapshot of a change's before/after state. The
// bytes are cloned on construction and on access so audit consumers can never
// mutate shared state.
type ChangePayload struct {
	defined bool
	raw     json.RawMessage
}

// NewChangePayload builds a payload wrapper from raw JSON. Passing a nil
// slice yields a defined but empty payload.
func NewChangePayload(raw json.RawMessage) ChangePayload {
	payload := ChangePayload{defined: true}
	if raw != nil {
		payload.raw = cloneRawMessage(raw)
	}
	return payload
}

// NewChangePayloadFromRow marshals a row into a ChangePayload.
func NewChangePayloadFromRow(row Row) (ChangePayload, error) {
	if row == nil {
		return ChangePayload{}, nil
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return ChangePayload{}, err
	}
	return NewChangePayload(raw), nil
}

// Defined reports whether the payload has been initialized.
func (p ChangePayload) Defined() bool {
	return p.defined
}

// Raw returns a cloned copy of the underlying JSON bytes, or nil when the
// payload is undefined or empty.
func (p ChangePayload) Raw() json.RawMessage {
	if !p.defined || len(p.raw) == 0 {
		return nil
	}
	return cloneRawMessage(p.raw)
}

// MarshalJSON encodes the payload as its raw snapshot, or null when unset.
func (p ChangePayload) MarshalJSON() ([]byte, error) {
	if !p.defined || len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw(), nil
}

// UnmarshalJSON hydrates the payload from its JSON encoding.
func (p *ChangePayload) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = ChangePayload{}
		return nil
	}
	*p = NewChangePayload(data)
	return nil
}

func cloneRawMessage(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}
