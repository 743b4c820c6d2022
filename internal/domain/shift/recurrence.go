package shift

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxOccurrences caps how many shifts one recurrence rule may create.
const MaxOccurrences = 52

// ErrTooManyOccurrences is returned when a rule expands past MaxOccurrences.
var ErrTooManyOccurrences = errors.New("recurrence rule produces more than 52 shifts")

// ErrNoOccurrences is returned when a rule expands to nothing.
var ErrNoOccurrences = errors.New("recurrence rule produces no shifts")

// Expand turns a template shift and an RFC 5545 RRULE into one shift per
// occurrence. Each copy keeps the template's duration. DTSTART is the
// template's start time; a rule without COUNT or UNTIL is rejected by the cap.
// PRE: template passes Validate
// POST: Returns len >= 1 shifts sharing seriesID, IDs left empty
func Expand(template Shift, rule string, seriesID string) ([]Shift, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule: %w", err)
	}
	opt.Dtstart = template.StartTime.UTC()
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule: %w", err)
	}

	duration := template.EndTime.Sub(template.StartTime)
	var starts []time.Time
	iter := r.Iterator()
	for {
		t, ok := iter()
		if !ok {
			break
		}
		if len(starts) == MaxOccurrences {
			return nil, ErrTooManyOccurrences
		}
		starts = append(starts, t)
	}
	if len(starts) == 0 {
		return nil, ErrNoOccurrences
	}

	out := make([]Shift, 0, len(starts))
	for _, start := range starts {
		s := template
		s.StartTime = start.UTC()
		s.EndTime = start.Add(duration).UTC()
		s.SeriesID = seriesID
		out = append(out, s)
	}
	return out, nil
}
