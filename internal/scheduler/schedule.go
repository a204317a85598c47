package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entry is one weekly occurrence in a tenant's publishing schedule.
type Entry struct {
	Weekday string `json:"weekday"`
	Time    string `json:"time"` // "15:04", tenant-local
	Mode    string `json:"mode,omitempty"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseSchedule decodes a tenant's schedule JSON. Malformed entries fail the
// whole schedule rather than silently running at the wrong time.
func ParseSchedule(raw []byte) ([]Entry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	for i, e := range entries {
		if _, ok := weekdays[strings.ToLower(e.Weekday)]; !ok {
			return nil, fmt.Errorf("entry %d: unknown weekday %q", i, e.Weekday)
		}
		if _, err := time.Parse("15:04", e.Time); err != nil {
			return nil, fmt.Errorf("entry %d: bad time %q", i, e.Time)
		}
	}
	return entries, nil
}

// Occurrence returns the entry's slot time in the week containing now.
func (e Entry) Occurrence(now time.Time) time.Time {
	wd := weekdays[strings.ToLower(e.Weekday)]
	t, _ := time.Parse("15:04", e.Time)
	dayDelta := int(wd) - int(now.Weekday())
	day := now.AddDate(0, 0, dayDelta)
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}

const (
	windowBefore = 2 * time.Minute
	windowAfter  = 5 * time.Minute
)

// Due reports whether now falls inside the entry's trigger window and, when
// it does, the canonical slot time used for dedup.
func (e Entry) Due(now time.Time) (time.Time, bool) {
	slot := e.Occurrence(now)
	if now.Before(slot.Add(-windowBefore)) || now.After(slot.Add(windowAfter)) {
		return time.Time{}, false
	}
	return slot.UTC(), true
}
