package jobs

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Store persists jobs in the shared relational table that coordinates all
// worker processes. Every mutation is a single conditional statement so the
// claim step stays race-free without wrapping transactions around reads.
type Store struct {
	DB *gorm.DB
}

func (s *Store) Exists(ctx context.Context, username, account string, scheduledAt int64) (bool, error) {
	var j Job
	err := s.DB.WithContext(ctx).
		Select("id").
		Where("username = ? AND account = ? AND scheduled_at = ?", username, account, scheduledAt).
		Take(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Insert(ctx context.Context, j *Job) error {
	return s.DB.WithContext(ctx).Create(j).Error
}

// Due returns every unclaimed job whose scheduled time has passed, oldest
// first so staleness stays bounded.
func (s *Store) Due(ctx context.Context, now int64) ([]Job, error) {
	var out []Job
	err := s.DB.WithContext(ctx).
		Where("scheduled_at <= ? AND processing = false", now).
		Order("scheduled_at asc").
		Find(&out).Error
	return out, err
}

// Claim flips processing false->true for one job. The conditional update is
// the actual mutual-exclusion point between workers: only the caller that
// sees RowsAffected == 1 owns the job.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND processing = false", id).
		Update("processing", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release hands a claimed job back without touching its status, so it is
// claimable again on a later run. Used when quota blocks execution.
func (s *Store) Release(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Update("processing", false).Error
}

// MarkRetry records a first failure: one more attempt on a later run.
func (s *Store) MarkRetry(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": StatusRetry, "processing": false}).Error
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Where("id = ?", id).Delete(&Job{}).Error
}

// ResetAllProcessing force-releases every claimed job. A crashed worker
// never runs its cleanup path, so each run starts by sweeping the previous
// run's leftovers; re-running a job beats leaving it stuck forever.
func (s *Store) ResetAllProcessing(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&Job{}).
		Where("processing = true").
		Update("processing", false)
	return res.RowsAffected, res.Error
}

// DeleteFuture removes an account's jobs scheduled at or after from, so a
// schedule edit can drop the old slots before enqueueing the new ones.
func (s *Store) DeleteFuture(ctx context.Context, username, account string, from int64) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("username = ? AND account = ? AND scheduled_at >= ?", username, account, from).
		Delete(&Job{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteForAccount(ctx context.Context, username, account string) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("username = ? AND account = ?", username, account).
		Delete(&Job{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Where("1 = 1").Delete(&Job{})
	return res.RowsAffected, res.Error
}

// Stats is a point-in-time snapshot of the queue for the ops API.
type Stats struct {
	Pending    int64  `json:"pending"`
	Retry      int64  `json:"retry"`
	Processing int64  `json:"processing"`
	NextDueAt  *int64 `json:"next_due_at,omitempty"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	if err := s.DB.WithContext(ctx).Model(&Job{}).Where("status = ?", StatusPending).Count(&st.Pending).Error; err != nil {
		return st, err
	}
	if err := s.DB.WithContext(ctx).Model(&Job{}).Where("status = ?", StatusRetry).Count(&st.Retry).Error; err != nil {
		return st, err
	}
	if err := s.DB.WithContext(ctx).Model(&Job{}).Where("processing = true").Count(&st.Processing).Error; err != nil {
		return st, err
	}

	var next Job
	err := s.DB.WithContext(ctx).
		Where("processing = false").
		Order("scheduled_at asc").
		Select("scheduled_at").
		Take(&next).Error
	if err == nil {
		st.NextDueAt = &next.ScheduledAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return st, err
	}
	return st, nil
}
