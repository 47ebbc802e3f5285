package jobs

// Status is the retry state of a queued job. There is no third state: a job
// is either waiting for its first attempt or waiting for its single retry.
// Success and second failure both remove the row.
type Status string

const (
	StatusPending Status = "pending"
	StatusRetry   Status = "retry"
)

// Job is one scheduled posting slot for one account.
//
// At most one row may exist per (username, account, scheduled_at); callers
// go through Store.Exists before Store.Insert. Processing is the claim flag:
// true while a worker holds the job, and always eventually false again (a
// crashed worker's rows are force-released by the next run's sweep).
type Job struct {
	ID          string `gorm:"primaryKey;type:char(36)"`
	Username    string `gorm:"index:idx_jobs_owner;not null"`
	Account     string `gorm:"index:idx_jobs_owner;not null"`
	ScheduledAt int64  `gorm:"index;not null"`
	Status      Status `gorm:"type:text;not null;default:'pending';check:jobs_status_valid,status IN ('pending','retry')"`
	Processing  bool   `gorm:"not null;default:false"`
}

func (Job) TableName() string { return "jobs" }
