package scheduler

import (
	"testing"
	"time"
)

func TestParseScheduleRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"valid", `[{"weekday":"monday","time":"09:30"},{"weekday":"Friday","time":"17:00","mode":"cms"}]`, true},
		{"empty", ``, true},
		{"bad weekday", `[{"weekday":"someday","time":"09:30"}]`, false},
		{"bad time", `[{"weekday":"monday","time":"9:30pm"}]`, false},
		{"not json", `{oops`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSchedule([]byte(tc.raw))
			if tc.ok && err != nil {
				t.Fatalf("ParseSchedule(%q) = %v, want nil", tc.raw, err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("ParseSchedule(%q) succeeded, want error", tc.raw)
			}
		})
	}
}

func TestParseScheduleOneBadEntryFailsWhole(t *testing.T) {
	raw := `[{"weekday":"monday","time":"09:30"},{"weekday":"monday","time":"nope"}]`
	if _, err := ParseSchedule([]byte(raw)); err == nil {
		t.Fatal("a schedule with one malformed entry must not parse")
	}
}

func TestDueWindow(t *testing.T) {
	entry := Entry{Weekday: "wednesday", Time: "14:00"}
	// 2026-09-02 is a Wednesday.
	slot := time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		due  bool
	}{
		{"well before", slot.Add(-10 * time.Minute), false},
		{"window opens", slot.Add(-2 * time.Minute), true},
		{"just before open", slot.Add(-2*time.Minute - time.Second), false},
		{"on the slot", slot, true},
		{"window closes", slot.Add(5 * time.Minute), true},
		{"just after close", slot.Add(5*time.Minute + time.Second), false},
		{"wrong day", slot.AddDate(0, 0, 1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, due := entry.Due(tc.now)
			if due != tc.due {
				t.Fatalf("Due(%v) = %v, want %v", tc.now, due, tc.due)
			}
			if due && !got.Equal(slot) {
				t.Fatalf("slot = %v, want %v", got, slot)
			}
		})
	}
}

func TestDueReturnsCanonicalUTCSlot(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	entry := Entry{Weekday: "wednesday", Time: "14:00"}
	now := time.Date(2026, 9, 2, 14, 1, 0, 0, berlin)

	slot, due := entry.Due(now)
	if !due {
		t.Fatal("in-window local time not due")
	}
	if slot.Location() != time.UTC {
		t.Fatalf("slot location = %v, want UTC", slot.Location())
	}
	want := time.Date(2026, 9, 2, 14, 0, 0, 0, berlin)
	if !slot.Equal(want) {
		t.Fatalf("slot = %v, want %v", slot, want)
	}
}
