package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

var (
	_ sql.Scanner   = (*CycleEntitlement)(nil)
	_ driver.Valuer = CycleEntitlement{}
	_ sql.Scanner   = (*Details)(nil)
	_ driver.Valuer = Details(nil)
)

// scanJSONB scans a JSONB database value into a Go pointer. It handles nil,
// []byte and string representations from different drivers.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

func valueJSONB(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (e *CycleEntitlement) Scan(value any) error {
	return scanJSONB(e, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (e CycleEntitlement) Value() (driver.Value, error) {
	return valueJSONB(e)
}

// Details is free-form structured context attached to failure records.
type Details map[string]any

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (d *Details) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}
	return scanJSONB(d, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(map[string]any(d))
}
