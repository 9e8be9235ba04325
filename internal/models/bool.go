package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Bool is a boolean column that tolerates the heterogeneous representations
// legacy rows carry (true, 't', 1, "true", "yes"). Coercion happens here, once,
// so services only ever see a native bool via Bool.Bool().
type Bool bool

func (b Bool) Value() (driver.Value, error) {
	return bool(b), nil
}

func (b *Bool) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*b = false
	case bool:
		*b = Bool(v)
	case int64:
		*b = v != 0
	case int:
		*b = v != 0
	case float64:
		*b = v != 0
	case []byte:
		return b.Scan(string(v))
	case string:
		parsed, err := ParseBool(v)
		if err != nil {
			return err
		}
		*b = Bool(parsed)
	default:
		return fmt.Errorf("models.Bool: unsupported scan type %T", value)
	}
	return nil
}

func (b Bool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

func (b *Bool) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return b.Scan(normalizeJSON(raw))
}

func (b Bool) Bool() bool { return bool(b) }

// ParseBool accepts every spelling of a boolean we have seen in stored rows.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "1", "yes", "y", "on":
		return true, nil
	case "f", "false", "0", "no", "n", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("models.Bool: cannot parse %q", s)
}

func normalizeJSON(v any) any {
	if f, ok := v.(float64); ok {
		return int64(f)
	}
	return v
}
