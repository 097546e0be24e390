package models

import (
	"bytes"
	"encoding/json"
)

// DiffPayload maps field names to the change captured for each field.
type DiffPayload map[string]Change

// Change is one field-level change. Create records carry only the new side,
// delete records only the old side, updates both. The JSON form is an object
// with "old" and/or "new" keys; anything else is tolerated on decode and
// treated as a bare new value.
type Change struct {
	Old *json.RawMessage
	New *json.RawMessage
}

// changeJSON is the wire form of Change.
type changeJSON struct {
	Old *json.RawMessage `json:"old,omitempty"`
	New *json.RawMessage `json:"new,omitempty"`
}

// NewChange returns a one-sided change carrying only a new value.
func NewChange(newValue json.RawMessage) Change {
	return Change{New: &newValue}
}

// OldChange returns a one-sided change carrying only an old value.
func OldChange(oldValue json.RawMessage) Change {
	return Change{Old: &oldValue}
}

// UpdateChange returns a two-sided change.
func UpdateChange(oldValue, newValue json.RawMessage) Change {
	return Change{Old: &oldValue, New: &newValue}
}

// MarshalJSON encodes the change as {"old":...} / {"new":...} / both.
func (c Change) MarshalJSON() ([]byte, error) {
	return json.Marshal(changeJSON{Old: c.Old, New: c.New})
}

// UnmarshalJSON decodes a change. A value that is not an object carrying an
// "old" or "new" key is malformed; it is kept as a bare new value rather
// than rejected, so foreign or hand-written payloads still fold.
func (c *Change) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wire changeJSON
		if err := json.Unmarshal(trimmed, &wire); err == nil && (wire.Old != nil || wire.New != nil) {
			c.Old = wire.Old
			c.New = wire.New

			return nil
		}
	}

	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)
	c.Old = nil
	c.New = &raw

	return nil
}

// DiffAttributes computes the field-level changes between two attribute maps:
// added keys carry only a new value, removed keys only an old value, and keys
// whose JSON differs carry both. Equal fields are omitted.
func DiffAttributes(oldAttrs, newAttrs map[string]json.RawMessage) DiffPayload {
	diff := make(DiffPayload)

	for k, newVal := range newAttrs {
		oldVal, existed := oldAttrs[k]
		if !existed {
			diff[k] = NewChange(newVal)

			continue
		}

		if !bytes.Equal(oldVal, newVal) {
			diff[k] = UpdateChange(oldVal, newVal)
		}
	}

	for k, oldVal := range oldAttrs {
		if _, exists := newAttrs[k]; !exists {
			diff[k] = OldChange(oldVal)
		}
	}

	return diff
}

// CreatePayload captures a freshly created attribute set as new-only changes.
func CreatePayload(attrs map[string]json.RawMessage) DiffPayload {
	diff := make(DiffPayload, len(attrs))
	for k, v := range attrs {
		diff[k] = NewChange(v)
	}

	return diff
}

// DeletePayload captures the final attribute set as old-only changes.
func DeletePayload(attrs map[string]json.RawMessage) DiffPayload {
	diff := make(DiffPayload, len(attrs))
	for k, v := range attrs {
		diff[k] = OldChange(v)
	}

	return diff
}
