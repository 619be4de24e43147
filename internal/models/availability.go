package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AvailabilityWindow is a recurring weekly time range, e.g. MONDAY 15:00-18:00.
type AvailabilityWindow struct {
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// AvailabilityWindows is stored as a JSON array column.
type AvailabilityWindows []AvailabilityWindow

// Value implements driver.Valuer.
func (w AvailabilityWindows) Value() (driver.Value, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode availability: %w", err)
	}
	return payload, nil
}

// Scan implements sql.Scanner.
func (w *AvailabilityWindows) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = AvailabilityWindows{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported availability source %T", src)
	}
	if len(raw) == 0 {
		*w = AvailabilityWindows{}
		return nil
	}
	var decoded []AvailabilityWindow
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode availability: %w", err)
	}
	*w = decoded
	return nil
}
