package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON is a free-form document column (jsonb on postgres, text on sqlite).
type JSON map[string]any

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSON) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models.JSON: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*j = nil
		return nil
	}
	m := JSON{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*j = m
	return nil
}
