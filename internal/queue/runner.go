package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"statusq/internal/clock"
	"statusq/internal/jobs"
	"statusq/internal/worklock"
)

// Runner claims due jobs and executes them through the generation service.
//
// Per job the state machine is:
//
//	pending ──claim──► processing ──success──► deleted
//	                       │
//	                       ├─failure, was pending──► retry (unclaimed)
//	                       └─failure, was retry────► deleted
//
// One retry, scoped to a later run rather than retried in-process: the
// generation call is a paid API, and transient failures clear on the scale
// of the next scheduled invocation, not milliseconds.
type Runner struct {
	Store JobStore
	Quota QuotaGate
	Gen   Generator
	Locks *worklock.Manager
	Clock clock.Clock
	Log   zerolog.Logger
}

// RunQueue performs one scheduler pass. It returns nil both on a clean pass
// and when another runner holds the lock; only store unavailability is an
// error. Individual job failures are logged, never returned.
func (r *Runner) RunQueue(ctx context.Context) error {
	lock, err := r.Locks.Acquire("run-queue")
	if errors.Is(err, worklock.ErrHeld) {
		r.Log.Debug().Msg("run-queue already running, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	// Sweep first: jobs a crashed worker left claimed become claimable
	// again before this pass fetches, so they are recovered within the
	// same invocation.
	stale, err := r.Store.ResetAllProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reset processing flags: %w", err)
	}
	if stale > 0 {
		r.Log.Warn().Int64("jobs", stale).Msg("released stale processing flags")
	}

	due, err := r.Store.Due(ctx, r.Clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("fetch due jobs: %w", err)
	}

	for _, job := range due {
		claimed, err := r.Store.Claim(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("claim job %s: %w", job.ID, err)
		}
		if !claimed {
			// another worker won the row between fetch and claim
			continue
		}
		r.process(ctx, job)
	}
	return nil
}

func (r *Runner) process(ctx context.Context, job jobs.Job) {
	log := r.Log.With().
		Str("job", job.ID).
		Str("username", job.Username).
		Str("account", job.Account).
		Logger()

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("generator panicked")
			r.fail(ctx, job, log)
		}
	}()

	allowed, err := r.Quota.Allow(ctx, job.Username)
	if err != nil {
		// Cannot tell whether quota remains; release without burning the
		// retry so the job is picked up again next run.
		log.Error().Err(err).Msg("quota check failed, releasing job")
		r.release(ctx, job, log)
		return
	}
	if !allowed {
		// Deliberately not an error and not a retry: the job stays in
		// place, claimable again once the monthly reset restores quota.
		log.Debug().Msg("quota exhausted, releasing job")
		r.release(ctx, job, log)
		return
	}

	if err := r.Gen.GenerateStatus(ctx, job.Account, job.Username); err != nil {
		log.Error().Err(err).Str("status", string(job.Status)).Msg("generation failed")
		r.fail(ctx, job, log)
		return
	}

	if err := r.Quota.Consume(ctx, job.Username); err != nil {
		log.Error().Err(err).Msg("quota consume failed")
	}
	if err := r.Store.Delete(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("delete completed job failed")
		return
	}
	log.Info().Msg("job completed")
}

func (r *Runner) fail(ctx context.Context, job jobs.Job, log zerolog.Logger) {
	switch job.Status {
	case jobs.StatusPending:
		if err := r.Store.MarkRetry(ctx, job.ID); err != nil {
			log.Error().Err(err).Msg("mark retry failed")
		}
	case jobs.StatusRetry:
		// second failure is terminal
		if err := r.Store.Delete(ctx, job.ID); err != nil {
			log.Error().Err(err).Msg("delete failed job failed")
		} else {
			log.Warn().Msg("job failed twice, dropped")
		}
	}
}

func (r *Runner) release(ctx context.Context, job jobs.Job, log zerolog.Logger) {
	if err := r.Store.Release(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("release job failed")
	}
}
