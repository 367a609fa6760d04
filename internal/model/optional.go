package model

import (
	"bytes"
	"encoding/json"
	"errors"
)

// OptionalInt64 tracks presence and value of a nullable id in a PATCH body.
// *int64 alone cannot tell "absent" from "null":
//   - Present=false:             field absent (don't change)
//   - Present=true, Value=nil:   field is JSON null (clear, e.g. move to root)
//   - Present=true, Value=&n:    field set to n
type OptionalInt64 struct {
	Present bool
	Value   *int64
}

// SetInt64 returns a present OptionalInt64 holding v (nil means null).
func SetInt64(v *int64) OptionalInt64 {
	return OptionalInt64{Present: true, Value: v}
}

// UnmarshalJSON is only called when the key is present in the document.
// Numeric strings ("3") are accepted because HTML forms send them.
func (o *OptionalInt64) UnmarshalJSON(data []byte) error {
	o.Present = true

	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	v, err := ParseID(data)
	if err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// ParseID decodes one id from a JSON value. Every id in a request body goes
// through here, so a number and a numeric string ("3") are accepted the same
// way everywhere; anything else, including null, is an error.
func ParseID(data []byte) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, err
	}
	if n == "" {
		return 0, errors.New("id must be a number or a numeric string")
	}
	return n.Int64()
}
