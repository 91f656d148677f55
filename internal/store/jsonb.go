package store

import (
	"encoding/json"
	"fmt"
)

// jsonbValue marshals a value for a jsonb column, mapping nil slices to [].
func jsonbValue(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	if string(data) == "null" {
		return []byte("[]"), nil
	}
	return data, nil
}

func jsonbScan(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}
