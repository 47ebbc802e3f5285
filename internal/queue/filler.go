package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"statusq/internal/clock"
	"statusq/internal/jobs"
	"statusq/internal/schedule"
	"statusq/internal/worklock"
)

// Filler populates the job table with today's posting slots.
type Filler struct {
	Store    JobStore
	Accounts AccountSource
	Locks    *worklock.Manager
	Clock    clock.Clock
	Loc      *time.Location
	Log      zerolog.Logger
}

// FillQueue creates one pending job per (account, scheduled hour) that
// should fire today, skipping slots that already have a row. Safe to run
// repeatedly: a second fill in the same day adds nothing. No-ops when
// another fill holds the lock.
func (f *Filler) FillQueue(ctx context.Context) error {
	lock, err := f.Locks.Acquire("fill-queue")
	if errors.Is(err, worklock.ErrHeld) {
		f.Log.Debug().Msg("fill-queue already running, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	now := f.Clock.Now().In(f.Loc)
	accts, err := f.Accounts.All(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	created := 0
	for _, acct := range accts {
		days := schedule.ParseDays(acct.Days)
		if !schedule.DayAllowed(days, now) {
			continue
		}
		for _, h := range schedule.ParseHours(acct.Cron) {
			n, err := f.enqueueSlot(ctx, acct.Username, acct.Name, schedule.HourOnDay(h, now))
			if err != nil {
				return err
			}
			created += n
		}
	}

	f.Log.Info().Int("created", created).Int("accounts", len(accts)).Msg("queue filled")
	return nil
}

// EnqueueRemaining fills only the slots still ahead of the current hour
// today, for one account. Called after a mid-day schedule edit, typically
// right after RemoveFutureJobs, so the rest of today follows the new
// schedule without duplicating slots that already passed.
func (f *Filler) EnqueueRemaining(ctx context.Context, username, account, cron, days string) error {
	now := f.Clock.Now().In(f.Loc)
	if !schedule.DayAllowed(schedule.ParseDays(days), now) {
		return nil
	}
	for _, h := range schedule.RemainingHours(schedule.ParseHours(cron), now) {
		if _, err := f.enqueueSlot(ctx, username, account, schedule.HourOnDay(h, now)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFutureJobs drops the account's jobs scheduled at or after now.
func (f *Filler) RemoveFutureJobs(ctx context.Context, username, account string) error {
	n, err := f.Store.DeleteFuture(ctx, username, account, f.Clock.Now().Unix())
	if err != nil {
		return err
	}
	if n > 0 {
		f.Log.Debug().Int64("removed", n).Str("username", username).Str("account", account).
			Msg("future jobs removed")
	}
	return nil
}

// RemoveAllJobs drops every job for the account, for account removal.
func (f *Filler) RemoveAllJobs(ctx context.Context, username, account string) error {
	_, err := f.Store.DeleteForAccount(ctx, username, account)
	return err
}

// ClearAllJobs empties the queue entirely, ahead of a full requeue.
func (f *Filler) ClearAllJobs(ctx context.Context) error {
	_, err := f.Store.DeleteAll(ctx)
	return err
}

func (f *Filler) enqueueSlot(ctx context.Context, username, account string, at time.Time) (int, error) {
	ts := at.Unix()
	exists, err := f.Store.Exists(ctx, username, account, ts)
	if err != nil {
		return 0, fmt.Errorf("check slot %s/%s@%d: %w", username, account, ts, err)
	}
	if exists {
		return 0, nil
	}
	j := &jobs.Job{
		ID:          uuid.NewString(),
		Username:    username,
		Account:     account,
		ScheduledAt: ts,
		Status:      jobs.StatusPending,
	}
	if err := f.Store.Insert(ctx, j); err != nil {
		return 0, fmt.Errorf("insert slot %s/%s@%d: %w", username, account, ts, err)
	}
	return 1, nil
}
