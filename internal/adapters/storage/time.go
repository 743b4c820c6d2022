package storage

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Timestamp scans a column that may arrive as time.Time (postgres) or as
// text (sqlite). NULL scans to the zero time.
type Timestamp struct {
	Time time.Time
}

// Scan implements sql.Scanner.
func (ts *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		ts.Time = time.Time{}
		return nil
	case time.Time:
		ts.Time = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into Timestamp", src)
}

// Value implements driver.Valuer so a Timestamp can be passed back as an argument.
func (ts Timestamp) Value() (driver.Value, error) {
	if ts.Time.IsZero() {
		return nil, nil
	}
	return ts.Time.UTC(), nil
}

func (ts *Timestamp) parse(s string) error {
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	ts.Time = t
	return nil
}

// ParseTime parses the time formats written by either dialect.
func ParseTime(s string) (time.Time, error) {
	formats := []string{
		sqliteTimeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}
