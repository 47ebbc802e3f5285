// Package maintenance holds the daily and monthly sweeps. They share the
// lock manager with the queue jobs but are otherwise simple: age out old
// statuses and images, and reset the monthly quota window.
package maintenance

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"statusq/internal/clock"
	"statusq/internal/worklock"
)

type StatusPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type QuotaResetter interface {
	ResetAllQuotas(ctx context.Context) (int64, error)
}

type Daily struct {
	Statuses     StatusPurger
	ImageDir     string
	StatusMaxAge time.Duration
	ImageMaxAge  time.Duration
	Locks        *worklock.Manager
	Clock        clock.Clock
	Log          zerolog.Logger
}

// Run ages out old statuses and generated image files. No-ops when another
// daily sweep holds the lock.
func (d *Daily) Run(ctx context.Context) error {
	lock, err := d.Locks.Acquire("daily")
	if errors.Is(err, worklock.ErrHeld) {
		d.Log.Debug().Msg("daily already running, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	now := d.Clock.Now()

	purged, err := d.Statuses.PurgeOlderThan(ctx, now.Add(-d.StatusMaxAge))
	if err != nil {
		return err
	}

	removedImages := 0
	if d.ImageDir != "" {
		removedImages, err = purgeFilesOlderThan(d.ImageDir, now.Add(-d.ImageMaxAge))
		if err != nil {
			d.Log.Error().Err(err).Str("dir", d.ImageDir).Msg("image purge failed")
		}
	}

	d.Log.Info().Int64("statuses", purged).Int("images", removedImages).Msg("daily sweep done")
	return nil
}

func purgeFilesOlderThan(dir string, cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

type Monthly struct {
	Users QuotaResetter
	Locks *worklock.Manager
	Log   zerolog.Logger
}

// Run zeroes every user's consumed API calls and re-arms the limit email.
func (m *Monthly) Run(ctx context.Context) error {
	lock, err := m.Locks.Acquire("monthly")
	if errors.Is(err, worklock.ErrHeld) {
		m.Log.Debug().Msg("monthly already running, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	n, err := m.Users.ResetAllQuotas(ctx)
	if err != nil {
		return err
	}
	m.Log.Info().Int64("users", n).Msg("monthly quota reset done")
	return nil
}
