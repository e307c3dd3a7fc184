package reminder

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var baseTime = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

func confirmedAt(id string, offset time.Duration) SessionRecord {
	return SessionRecord{
		ID:               id,
		CounterpartyName: "Dr. " + id,
		ScheduledTime:    baseTime.Add(offset),
		Type:             SessionTypeTherapy,
		Status:           StatusConfirmed,
	}
}

func sessionIDs(reminders []Reminder) []string {
	ids := make([]string, 0, len(reminders))
	for _, r := range reminders {
		ids = append(ids, r.SessionID)
	}
	return ids
}

func TestDerive_FiltersByStatus(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{
		confirmedAt("confirmed", 30*time.Minute),
		{ID: "completed", ScheduledTime: baseTime.Add(30 * time.Minute), Status: StatusCompleted},
		{ID: "cancelled", ScheduledTime: baseTime.Add(2 * time.Minute), Status: StatusCancelled},
		{ID: "unknown", ScheduledTime: baseTime.Add(2 * time.Minute), Status: Status("pending")},
	}

	got := sessionIDs(Derive(sessions, baseTime, nil))
	if diff := cmp.Diff([]string{"confirmed"}, got); diff != "" {
		t.Fatalf("unexpected reminders (-want +got):\n%s", diff)
	}
}

func TestDerive_Window(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{name: "already started", offset: -5 * time.Minute, want: false},
		{name: "starting now", offset: 0, want: false},
		{name: "one second out", offset: time.Second, want: true},
		{name: "exactly sixty minutes", offset: 60 * time.Minute, want: true},
		{name: "just over sixty minutes", offset: 60*time.Minute + time.Second, want: false},
		{name: "ninety minutes", offset: 90 * time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Derive([]SessionRecord{confirmedAt("s", tt.offset)}, baseTime, nil)
			if (len(got) == 1) != tt.want {
				t.Fatalf("expected reminder=%v, got %d reminders", tt.want, len(got))
			}
		})
	}
}

func TestDerive_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		offset    time.Duration
		urgent    bool
		immediate bool
	}{
		{offset: 45 * time.Minute, urgent: false, immediate: false},
		{offset: 10*time.Minute + time.Second, urgent: false, immediate: false},
		{offset: 10 * time.Minute, urgent: true, immediate: false},
		{offset: 8 * time.Minute, urgent: true, immediate: false},
		{offset: 5 * time.Minute, urgent: true, immediate: true},
		{offset: 3 * time.Minute, urgent: true, immediate: true},
	}

	for _, tt := range tests {
		got := Derive([]SessionRecord{confirmedAt("s", tt.offset)}, baseTime, nil)
		if len(got) != 1 {
			t.Fatalf("offset %v: expected one reminder, got %d", tt.offset, len(got))
		}
		r := got[0]
		if r.IsUrgent != tt.urgent || r.IsImmediate != tt.immediate {
			t.Fatalf("offset %v: expected urgent=%v immediate=%v, got urgent=%v immediate=%v",
				tt.offset, tt.urgent, tt.immediate, r.IsUrgent, r.IsImmediate)
		}
		if r.IsImmediate && !r.IsUrgent {
			t.Fatalf("offset %v: immediate reminder must also be urgent", tt.offset)
		}
		if r.TimeUntilSession != tt.offset {
			t.Fatalf("offset %v: unexpected lead time %v", tt.offset, r.TimeUntilSession)
		}
	}
}

func TestDerive_SortsSoonestFirstAndKeepsInputOrderOnTies(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{
		confirmedAt("late", 50*time.Minute),
		confirmedAt("tie-b", 20*time.Minute),
		confirmedAt("soon", 2*time.Minute),
		confirmedAt("tie-a", 20*time.Minute),
	}

	got := sessionIDs(Derive(sessions, baseTime, nil))
	want := []string{"soon", "tie-b", "tie-a", "late"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestDerive_ExcludesDismissedAndZeroTimes(t *testing.T) {
	t.Parallel()

	dismissed := NewDismissalStore()
	dismissed.Dismiss("b")

	sessions := []SessionRecord{
		confirmedAt("a", 15*time.Minute),
		confirmedAt("b", 20*time.Minute),
		{ID: "zero", Status: StatusConfirmed},
	}

	got := sessionIDs(Derive(sessions, baseTime, dismissed))
	if diff := cmp.Diff([]string{"a"}, got); diff != "" {
		t.Fatalf("unexpected reminders (-want +got):\n%s", diff)
	}
}

func TestDerive_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{confirmedAt("b", 40*time.Minute), confirmedAt("a", 10*time.Minute)}
	before := append([]SessionRecord(nil), sessions...)
	_ = Derive(sessions, baseTime, nil)
	if diff := cmp.Diff(before, sessions); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
}

func TestDerive_DismissAndClear(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{
		confirmedAt("a", 5*time.Minute),
		confirmedAt("b", 15*time.Minute),
		confirmedAt("c", 25*time.Minute),
	}
	store := NewDismissalStore()

	if !store.Dismiss("b") {
		t.Fatalf("expected first dismissal to be reported as new")
	}
	if store.Dismiss("b") {
		t.Fatalf("expected repeated dismissal to be a no-op")
	}
	if store.size() != 1 {
		t.Fatalf("expected one dismissed id, got %d", store.size())
	}

	got := sessionIDs(Derive(sessions, baseTime, store))
	if diff := cmp.Diff([]string{"a", "c"}, got); diff != "" {
		t.Fatalf("unexpected reminders after dismiss (-want +got):\n%s", diff)
	}

	store.Clear()
	got = sessionIDs(Derive(sessions, baseTime, store))
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("unexpected reminders after clear (-want +got):\n%s", diff)
	}
}

func TestDerive_DismissalSurvivesReschedule(t *testing.T) {
	t.Parallel()

	store := NewDismissalStore()
	store.Dismiss("a")

	rescheduled := []SessionRecord{confirmedAt("a", 7*time.Minute)}
	if got := Derive(rescheduled, baseTime, store); len(got) != 0 {
		t.Fatalf("expected dismissed id to stay suppressed after reschedule, got %v", got)
	}
}

func TestDismissalStoreSorted(t *testing.T) {
	t.Parallel()

	store := NewDismissalStore()
	store.Dismiss("z")
	store.Dismiss("a")
	store.Dismiss("")

	if diff := cmp.Diff([]string{"a", "z"}, store.sorted()); diff != "" {
		t.Fatalf("unexpected snapshot (-want +got):\n%s", diff)
	}

	var nilStore *DismissalStore
	if nilStore.Contains("a") || nilStore.size() != 0 || nilStore.Dismiss("a") {
		t.Fatalf("nil store must behave as empty")
	}
}

func TestNextBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sessions []SessionRecord
		want     time.Duration
		found    bool
	}{
		{name: "outside window waits for window entry", sessions: []SessionRecord{confirmedAt("a", 90 * time.Minute)}, want: 30 * time.Minute, found: true},
		{name: "inside window waits for urgency", sessions: []SessionRecord{confirmedAt("a", 30 * time.Minute)}, want: 20 * time.Minute, found: true},
		{name: "urgent waits for immediacy", sessions: []SessionRecord{confirmedAt("a", 8 * time.Minute)}, want: 3 * time.Minute, found: true},
		{name: "immediate waits for start", sessions: []SessionRecord{confirmedAt("a", 2 * time.Minute)}, want: 2 * time.Minute, found: true},
		{name: "exactly on a threshold moves to the next one", sessions: []SessionRecord{confirmedAt("a", 10 * time.Minute)}, want: 5 * time.Minute, found: true},
		{name: "started sessions have no boundary", sessions: []SessionRecord{confirmedAt("a", -time.Minute)}, found: false},
		{name: "earliest across sessions", sessions: []SessionRecord{confirmedAt("a", 90 * time.Minute), confirmedAt("b", 6 * time.Minute)}, want: time.Minute, found: true},
		{name: "cancelled sessions ignored", sessions: []SessionRecord{{ID: "c", ScheduledTime: baseTime.Add(time.Minute), Status: StatusCancelled}}, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			next, found := NextBoundary(tt.sessions, baseTime, nil)
			if found != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, found)
			}
			if found && !next.Equal(baseTime.Add(tt.want)) {
				t.Fatalf("expected boundary at +%v, got +%v", tt.want, next.Sub(baseTime))
			}
		})
	}
}

func TestNextBoundaryMatchesDeriveChanges(t *testing.T) {
	t.Parallel()

	sessions := []SessionRecord{confirmedAt("a", 75*time.Minute), confirmedAt("b", 12*time.Minute)}
	now := baseTime
	for i := 0; i < 10; i++ {
		next, ok := NextBoundary(sessions, now, nil)
		if !ok {
			break
		}
		before := Derive(sessions, next.Add(-time.Nanosecond), nil)
		after := Derive(sessions, next, nil)
		if Equal(before, after) {
			t.Fatalf("boundary %v did not change the derivation", next.Sub(baseTime))
		}
		now = next
	}
}
