package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringArray stores a string list in a JSON column.
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported StringArray source %T", value)
	}

	if len(data) == 0 {
		*s = StringArray{}
		return nil
	}
	return json.Unmarshal(data, s)
}
