package status

import (
	"context"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Status is one generated post kept for the account's feed and RSS. The
// generation pipeline writes these rows; the scheduler only ages them out.
type Status struct {
	ID        uint64         `gorm:"primaryKey"`
	Username  string         `gorm:"index:idx_statuses_owner;not null"`
	Account   string         `gorm:"index:idx_statuses_owner;not null"`
	Content   string         `gorm:"type:text;not null;default:''"`
	Tags      pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	ImagePath *string        `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"index;not null;default:now()"`
}

func (Status) TableName() string { return "statuses" }

type Repo struct {
	DB *gorm.DB
}

// PurgeOlderThan removes statuses created before cutoff.
func (r *Repo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Status{})
	return res.RowsAffected, res.Error
}
