package users

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// User carries the quota state the scheduler reads and updates. Everything
// else about users (authentication, profile) lives in the platform's front
// end.
type User struct {
	ID             uint64    `gorm:"primaryKey"`
	Username       string    `gorm:"uniqueIndex;not null"`
	Email          string    `gorm:"not null"`
	UsedAPICalls   int       `gorm:"not null;default:0"`
	MaxAPICalls    int       `gorm:"not null;default:31"`
	LimitEmailSent bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null;default:now()"`
}

func (User) TableName() string { return "users" }

type Repo struct {
	DB *gorm.DB
}

func (r *Repo) Get(ctx context.Context, username string) (*User, error) {
	var u User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).Take(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) AddUsedAPICalls(ctx context.Context, username string, n int) error {
	return r.DB.WithContext(ctx).Model(&User{}).
		Where("username = ?", username).
		Update("used_api_calls", gorm.Expr("used_api_calls + ?", n)).Error
}

func (r *Repo) SetLimitEmailSent(ctx context.Context, username string, sent bool) error {
	return r.DB.WithContext(ctx).Model(&User{}).
		Where("username = ?", username).
		Update("limit_email_sent", sent).Error
}

// ResetAllQuotas zeroes every user's consumed calls and re-arms the limit
// notification. Run by the monthly maintenance sweep.
func (r *Repo) ResetAllQuotas(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&User{}).
		Where("used_api_calls > 0 OR limit_email_sent = true").
		Updates(map[string]any{"used_api_calls": 0, "limit_email_sent": false})
	return res.RowsAffected, res.Error
}
