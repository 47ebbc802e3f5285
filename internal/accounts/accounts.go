package accounts

import (
	"context"

	"gorm.io/gorm"
)

// Account is one connected social-media account and its posting schedule.
// Cron is a comma-separated list of hours ("07,12,14") or the literal
// "null" when posting is disabled; Days is a comma-separated list of
// lowercase day names or "everyday". Both fields are owned by the platform's
// front end; the scheduler only reads them.
type Account struct {
	ID       uint64 `gorm:"primaryKey"`
	Username string `gorm:"index:idx_accounts_owner;not null"`
	Name     string `gorm:"column:account;index:idx_accounts_owner;not null"`
	Cron     string `gorm:"type:text;not null;default:'null'"`
	Days     string `gorm:"type:text;not null;default:'everyday'"`
}

func (Account) TableName() string { return "accounts" }

type Repo struct {
	DB *gorm.DB
}

func (r *Repo) All(ctx context.Context) ([]Account, error) {
	var out []Account
	err := r.DB.WithContext(ctx).Order("username, account").Find(&out).Error
	return out, err
}
