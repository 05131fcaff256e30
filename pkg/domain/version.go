package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is an opaque asset-version token.
// The raw JSON text is kept, so the string "1" and the number 1 are different versions.
type Version struct {
	raw string
}

// StringVersion builds a string version token.
func StringVersion(s string) Version {
	b, _ := json.Marshal(s)
	return Version{raw: string(b)}
}

// NumberVersion builds a numeric version token.
func NumberVersion(n int64) Version {
	return Version{raw: strconv.FormatInt(n, 10)}
}

// ParseVersion accepts a JSON string or number literal. null yields the zero Version.
func ParseVersion(raw []byte) (Version, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Version{}, fmt.Errorf("%w: empty version", ErrMalformedResponse)
	}
	switch {
	case bytes.Equal(raw, []byte("null")):
		// Page Sources without asset versioning send null.
		return Version{}, nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Version{}, fmt.Errorf("%w: version: %v", ErrMalformedResponse, err)
		}
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return Version{}, fmt.Errorf("%w: version: %v", ErrMalformedResponse, err)
		}
	default:
		return Version{}, fmt.Errorf("%w: version must be a string or number", ErrMalformedResponse)
	}
	return Version{raw: string(raw)}, nil
}

// IsZero reports whether no version is known.
func (v Version) IsZero() bool {
	return v.raw == ""
}

// Equal compares the raw tokens byte-for-byte.
func (v Version) Equal(other Version) bool {
	return v.raw == other.raw
}

// String returns the header form of the token: strings unquoted, numbers verbatim.
func (v Version) String() string {
	if v.raw == "" {
		return ""
	}
	if v.raw[0] == '"' {
		var s string
		if err := json.Unmarshal([]byte(v.raw), &s); err == nil {
			return s
		}
	}
	return v.raw
}

// MarshalJSON implements json.Marshaler.
func (v Version) MarshalJSON() ([]byte, error) {
	if v.raw == "" {
		return []byte("null"), nil
	}
	return []byte(v.raw), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Version) UnmarshalJSON(data []byte) error {
	parsed, err := ParseVersion(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
