// Package queue contains the two scheduler entry points: the filler, which
// turns account schedules into job rows, and the runner, which claims and
// executes due jobs.
//
// Both are short-lived invocations: an external trigger (system cron or the
// worker daemon) launches them, they take their job-type lock or no-op, do
// one pass over the table, and exit. Coordination between processes happens
// in the jobs table itself through conditional single-row updates.
package queue

import (
	"context"

	"statusq/internal/accounts"
	"statusq/internal/jobs"
)

// JobStore is the slice of the persistent job table the scheduler needs.
// *jobs.Store implements it; tests use an in-memory fake.
type JobStore interface {
	Exists(ctx context.Context, username, account string, scheduledAt int64) (bool, error)
	Insert(ctx context.Context, j *jobs.Job) error
	Due(ctx context.Context, now int64) ([]jobs.Job, error)
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ResetAllProcessing(ctx context.Context) (int64, error)
	DeleteFuture(ctx context.Context, username, account string, from int64) (int64, error)
	DeleteForAccount(ctx context.Context, username, account string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// AccountSource lists every account with its schedule configuration.
type AccountSource interface {
	All(ctx context.Context) ([]accounts.Account, error)
}

// QuotaGate decides whether a user may spend one more generation call and
// records the spend afterwards.
type QuotaGate interface {
	Allow(ctx context.Context, username string) (bool, error)
	Consume(ctx context.Context, username string) error
}

// Generator produces one status for an account. Any failure is an error;
// the runner does not distinguish failure modes.
type Generator interface {
	GenerateStatus(ctx context.Context, account, username string) error
}
