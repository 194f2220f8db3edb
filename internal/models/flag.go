package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// Flag is a boolean stored as an INTEGER 0/1 column on every backend.
type Flag bool

// Value implements driver.Valuer.
func (f Flag) Value() (driver.Value, error) {
	if f {
		return int64(1), nil
	}
	return int64(0), nil
}

// Scan implements sql.Scanner.
func (f *Flag) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = false
	case int64:
		*f = v != 0
	case bool:
		*f = Flag(v)
	case []byte:
		return f.parse(string(v))
	case string:
		return f.parse(v)
	default:
		return fmt.Errorf("scan flag: unsupported type %T", src)
	}
	return nil
}

func (f *Flag) parse(raw string) error {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = n != 0
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("scan flag %q: %w", raw, err)
	}
	*f = Flag(b)
	return nil
}
