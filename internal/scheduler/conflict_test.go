package scheduler

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var base = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

func slot(id string, offset, length time.Duration, participants ...string) Slot {
	return Slot{ID: id, Participants: participants, Start: base.Add(offset), End: base.Add(offset + length)}
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		existing  []Slot
		candidate Slot
		want      []Conflict
	}{
		{
			name:      "shared therapist overlaps",
			existing:  []Slot{slot("a", 0, 50*time.Minute, "client-1", "therapist")},
			candidate: slot("new", 30*time.Minute, 50*time.Minute, "client-2", "therapist"),
			want:      []Conflict{{WithSlotID: "a", Participant: "therapist"}},
		},
		{
			name:      "both participants overlap",
			existing:  []Slot{slot("a", 0, time.Hour, "client", "therapist")},
			candidate: slot("new", 10*time.Minute, 20*time.Minute, "client", "therapist"),
			want: []Conflict{
				{WithSlotID: "a", Participant: "client"},
				{WithSlotID: "a", Participant: "therapist"},
			},
		},
		{
			name:      "back to back sessions do not overlap",
			existing:  []Slot{slot("a", 0, 50*time.Minute, "client", "therapist")},
			candidate: slot("new", 50*time.Minute, 50*time.Minute, "client", "therapist"),
		},
		{
			name:      "overlap without shared participant",
			existing:  []Slot{slot("a", 0, time.Hour, "client-1", "therapist-1")},
			candidate: slot("new", 0, time.Hour, "client-2", "therapist-2"),
		},
		{
			name:      "rescheduled slot ignores itself",
			existing:  []Slot{slot("a", 0, time.Hour, "client", "therapist")},
			candidate: slot("a", 15*time.Minute, time.Hour, "client", "therapist"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tc.want, DetectConflicts(tc.existing, tc.candidate)); diff != "" {
				t.Fatalf("unexpected conflicts (-want +got):\n%s", diff)
			}
		})
	}
}
