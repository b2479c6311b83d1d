package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// fields indexes a JSON object by key so the servlets' spelling variants can be probed in order.
type fields map[string]json.RawMessage

func decodeFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		f = fields{}
	}
	return f, nil
}

// raw returns the first key present with a non-null value.
func (f fields) raw(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := f[k]
		if !ok || isNull(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

func (f fields) has(keys ...string) bool {
	_, ok := f.raw(keys...)
	return ok
}

func (f fields) str(keys ...string) string {
	v, ok := f.raw(keys...)
	if !ok {
		return ""
	}
	return scalarString(v)
}

func (f fields) integer(keys ...string) (int, bool) {
	v, ok := f.raw(keys...)
	if !ok {
		return 0, false
	}
	s := scalarString(v)
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		return int(fl), true
	}
	return 0, false
}

func (f fields) amount(keys ...string) decimal.Decimal {
	v, ok := f.raw(keys...)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(scalarString(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (f fields) boolean(keys ...string) bool {
	v, ok := f.raw(keys...)
	if !ok {
		return false
	}
	switch strings.ToLower(scalarString(v)) {
	case "true", "1", "yes", "y":
		return true
	default:
		return false
	}
}

func (f fields) into(dst any, keys ...string) bool {
	v, ok := f.raw(keys...)
	if !ok {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}

func isNull(v json.RawMessage) bool {
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// scalarString renders strings, numbers and booleans uniformly.
func scalarString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(v))
}
