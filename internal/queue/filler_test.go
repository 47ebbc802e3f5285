package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"statusq/internal/accounts"
	"statusq/internal/clock"
	"statusq/internal/worklock"
)

func nyLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load America/New_York: %v", err)
	}
	return loc
}

func newFiller(t *testing.T, store *memStore, accts []accounts.Account, now time.Time) *Filler {
	t.Helper()
	return &Filler{
		Store:    store,
		Accounts: &fakeAccounts{list: accts},
		Locks:    &worklock.Manager{Dir: t.TempDir()},
		Clock:    clock.Fixed{T: now},
		Loc:      now.Location(),
		Log:      zerolog.Nop(),
	}
}

// 2026-01-23 is a Friday.
func fridayMidnight(t *testing.T) time.Time {
	return time.Date(2026, time.January, 23, 0, 0, 0, 0, nyLoc(t))
}

func TestFillQueueCreatesTodaysSlots(t *testing.T) {
	store := newMemStore()
	now := fridayMidnight(t)
	f := newFiller(t, store, []accounts.Account{
		{Username: "alice", Name: "wonder", Cron: "07,12,14", Days: "friday"},
	}, now)

	if err := f.FillQueue(context.Background()); err != nil {
		t.Fatalf("fill: %v", err)
	}

	got := store.all()
	if len(got) != 3 {
		t.Fatalf("created %d jobs, want 3", len(got))
	}
	loc := now.Location()
	for i, hour := range []int{7, 12, 14} {
		want := time.Date(2026, time.January, 23, hour, 0, 0, 0, loc).Unix()
		if got[i].ScheduledAt != want {
			t.Errorf("job %d scheduled at %d, want %d (%02d:00 local)", i, got[i].ScheduledAt, want, hour)
		}
	}
}

func TestFillQueueIsIdempotent(t *testing.T) {
	store := newMemStore()
	f := newFiller(t, store, []accounts.Account{
		{Username: "alice", Name: "wonder", Cron: "07,12,14", Days: "everyday"},
	}, fridayMidnight(t))
	ctx := context.Background()

	if err := f.FillQueue(ctx); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if err := f.FillQueue(ctx); err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if n := len(store.all()); n != 3 {
		t.Fatalf("after two fills: %d jobs, want 3", n)
	}
}

func TestFillQueueRespectsDayGate(t *testing.T) {
	store := newMemStore()
	f := newFiller(t, store, []accounts.Account{
		{Username: "alice", Name: "wonder", Cron: "07", Days: "monday,tuesday"},
		{Username: "bob", Name: "builder", Cron: "09", Days: "friday"},
		{Username: "carol", Name: "singer", Cron: "null", Days: "everyday"},
	}, fridayMidnight(t))

	if err := f.FillQueue(context.Background()); err != nil {
		t.Fatalf("fill: %v", err)
	}

	got := store.all()
	if len(got) != 1 {
		t.Fatalf("created %d jobs, want 1 (only bob posts fridays)", len(got))
	}
	if got[0].Username != "bob" {
		t.Fatalf("job belongs to %s, want bob", got[0].Username)
	}
}

func TestFillQueueSkipsWhenLockHeld(t *testing.T) {
	store := newMemStore()
	f := newFiller(t, store, []accounts.Account{
		{Username: "alice", Name: "wonder", Cron: "07", Days: "everyday"},
	}, fridayMidnight(t))

	held, err := f.Locks.Acquire("fill-queue")
	if err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}
	defer held.Release()

	if err := f.FillQueue(context.Background()); err != nil {
		t.Fatalf("fill under held lock should no-op, got %v", err)
	}
	if n := len(store.all()); n != 0 {
		t.Fatalf("fill under held lock created %d jobs", n)
	}
}

func TestEnqueueRemainingOnlyFutureHours(t *testing.T) {
	store := newMemStore()
	noon := time.Date(2026, time.January, 23, 12, 30, 0, 0, nyLoc(t))
	f := newFiller(t, store, nil, noon)
	ctx := context.Background()

	if err := f.EnqueueRemaining(ctx, "alice", "wonder", "07,12,14,20", "friday"); err != nil {
		t.Fatalf("enqueue remaining: %v", err)
	}

	got := store.all()
	if len(got) != 2 {
		t.Fatalf("created %d jobs, want 2 (14:00 and 20:00)", len(got))
	}
	loc := noon.Location()
	for i, hour := range []int{14, 20} {
		want := time.Date(2026, time.January, 23, hour, 0, 0, 0, loc).Unix()
		if got[i].ScheduledAt != want {
			t.Errorf("job %d at %d, want %d", i, got[i].ScheduledAt, want)
		}
	}
}

func TestEnqueueRemainingRespectsDayGate(t *testing.T) {
	store := newMemStore()
	monday := time.Date(2026, time.January, 19, 8, 0, 0, 0, nyLoc(t))
	f := newFiller(t, store, nil, monday)

	if err := f.EnqueueRemaining(context.Background(), "alice", "wonder", "10,12", "friday"); err != nil {
		t.Fatalf("enqueue remaining: %v", err)
	}
	if n := len(store.all()); n != 0 {
		t.Fatalf("created %d jobs on a disallowed day", n)
	}
}

func TestScheduleEditFlow(t *testing.T) {
	store := newMemStore()
	noon := time.Date(2026, time.January, 23, 12, 30, 0, 0, nyLoc(t))
	f := newFiller(t, store, []accounts.Account{
		{Username: "alice", Name: "wonder", Cron: "07,14,20", Days: "everyday"},
	}, noon)
	ctx := context.Background()

	if err := f.FillQueue(ctx); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if n := len(store.all()); n != 3 {
		t.Fatalf("seeded %d jobs, want 3", n)
	}

	// user switches the schedule to 16:00 and 21:00 mid-day
	if err := f.RemoveFutureJobs(ctx, "alice", "wonder"); err != nil {
		t.Fatalf("remove future: %v", err)
	}
	if err := f.EnqueueRemaining(ctx, "alice", "wonder", "16,21", "everyday"); err != nil {
		t.Fatalf("enqueue remaining: %v", err)
	}

	got := store.all()
	if len(got) != 3 {
		t.Fatalf("after edit: %d jobs, want 3 (passed 07:00 plus new 16:00, 21:00)", len(got))
	}
	loc := noon.Location()
	wantTimes := []int64{
		time.Date(2026, time.January, 23, 7, 0, 0, 0, loc).Unix(),
		time.Date(2026, time.January, 23, 16, 0, 0, 0, loc).Unix(),
		time.Date(2026, time.January, 23, 21, 0, 0, 0, loc).Unix(),
	}
	for i, want := range wantTimes {
		if got[i].ScheduledAt != want {
			t.Errorf("job %d at %d, want %d", i, got[i].ScheduledAt, want)
		}
	}
}

func TestRemoveAllAndClear(t *testing.T) {
	store := newMemStore()
	f := newFiller(t, store, []accounts.Account{
		{Username: "alice", Name: "wonder", Cron: "07,12", Days: "everyday"},
		{Username: "bob", Name: "builder", Cron: "09", Days: "everyday"},
	}, fridayMidnight(t))
	ctx := context.Background()

	if err := f.FillQueue(ctx); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := f.RemoveAllJobs(ctx, "alice", "wonder"); err != nil {
		t.Fatalf("remove all: %v", err)
	}
	got := store.all()
	if len(got) != 1 || got[0].Username != "bob" {
		t.Fatalf("RemoveAllJobs left %+v", got)
	}

	if err := f.ClearAllJobs(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n := len(store.all()); n != 0 {
		t.Fatalf("ClearAllJobs left %d jobs", n)
	}
}
