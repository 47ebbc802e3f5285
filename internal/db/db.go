package db

import (
	"fmt"

	"statusq/internal/accounts"
	"statusq/internal/jobs"
	"statusq/internal/status"
	"statusq/internal/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&jobs.Job{},
		&accounts.Account{},
		&users.User{},
		&status.Status{},
	); err != nil {
		return err
	}

	// No unique constraint on (username, account, scheduled_at): the filler
	// checks before inserting, and a duplicate slot is harmless enough not
	// to pay for constraint violations on every re-fill.
	stmts := []string{
		`create index if not exists idx_jobs_due on jobs(processing, scheduled_at);`,
		`create index if not exists idx_jobs_slot on jobs(username, account, scheduled_at);`,
		`create index if not exists idx_statuses_age on statuses(created_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
