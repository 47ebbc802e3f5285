package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"statusq/internal/accounts"
	"statusq/internal/clock"
	"statusq/internal/config"
	"statusq/internal/db"
	"statusq/internal/generate"
	"statusq/internal/jobs"
	"statusq/internal/maintenance"
	"statusq/internal/mailer"
	"statusq/internal/ops"
	"statusq/internal/queue"
	"statusq/internal/quota"
	"statusq/internal/status"
	"statusq/internal/users"
	"statusq/internal/worklock"
)

func usage() {
	fmt.Println("usage: statusq <run-queue | fill-queue | daily | monthly | worker [task]>")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	task := os.Args[1]
	switch task {
	case "run-queue", "fill-queue", "daily", "monthly", "worker":
	default:
		usage()
		os.Exit(1)
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Str("task", task).Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal().Err(err).Msg("database migrate failed")
	}

	app := newApp(cfg, gdb, log)

	if task == "worker" {
		var only string
		if len(os.Args) > 2 {
			only = os.Args[2]
		}
		if err := app.runWorker(only); err != nil {
			log.Fatal().Err(err).Msg("worker failed")
		}
		return
	}

	// Per-job failures inside a pass are logged, not surfaced: a
	// partial-failure batch still means "the scheduler ran". Only store
	// or lock-infrastructure errors reach here.
	if err := app.runTask(context.Background(), task); err != nil {
		log.Fatal().Err(err).Msg("task failed")
	}
}

type app struct {
	cfg     config.Config
	log     zerolog.Logger
	store   *jobs.Store
	filler  *queue.Filler
	runner  *queue.Runner
	daily   *maintenance.Daily
	monthly *maintenance.Monthly
}

func newApp(cfg config.Config, gdb *gorm.DB, log zerolog.Logger) *app {
	locks := &worklock.Manager{Dir: cfg.LockDir}
	clk := clock.System{}

	store := &jobs.Store{DB: gdb}
	userRepo := &users.Repo{DB: gdb}

	var mail mailer.Mailer
	if cfg.SMTPAddr != "" {
		mail = &mailer.SMTP{
			Addr: cfg.SMTPAddr,
			From: cfg.SMTPFrom,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			Host: smtpHost(cfg.SMTPAddr),
		}
	} else {
		mail = &mailer.Log{Logger: log}
	}

	tracker := &quota.Tracker{Users: userRepo, Mail: mail, Log: log}

	return &app{
		cfg:   cfg,
		log:   log,
		store: store,
		filler: &queue.Filler{
			Store:    store,
			Accounts: &accounts.Repo{DB: gdb},
			Locks:    locks,
			Clock:    clk,
			Loc:      cfg.Location,
			Log:      log,
		},
		runner: &queue.Runner{
			Store: store,
			Quota: tracker,
			Gen: &generate.Client{
				URL:   cfg.GeneratorURL,
				Token: cfg.GeneratorToken,
				Log:   log,
			},
			Locks: locks,
			Clock: clk,
			Log:   log,
		},
		daily: &maintenance.Daily{
			Statuses:     &status.Repo{DB: gdb},
			ImageDir:     cfg.ImageDir,
			StatusMaxAge: time.Duration(cfg.StatusRetentionDays) * 24 * time.Hour,
			ImageMaxAge:  time.Duration(cfg.ImageRetentionDays) * 24 * time.Hour,
			Locks:        locks,
			Clock:        clk,
			Log:          log,
		},
		monthly: &maintenance.Monthly{
			Users: userRepo,
			Locks: locks,
			Log:   log,
		},
	}
}

func (a *app) runTask(ctx context.Context, task string) error {
	switch task {
	case "run-queue":
		return a.runner.RunQueue(ctx)
	case "fill-queue":
		return a.filler.FillQueue(ctx)
	case "daily":
		return a.daily.Run(ctx)
	case "monthly":
		return a.monthly.Run(ctx)
	}
	return fmt.Errorf("unknown task %q", task)
}

// taskSchedules maps each task to when the worker daemon fires it, in the
// configured timezone.
var taskSchedules = map[string]string{
	"run-queue":  "0 * * * *",
	"fill-queue": "5 0 * * *",
	"daily":      "10 3 * * *",
	"monthly":    "10 4 1 * *",
}

// runWorker keeps the scheduler resident for deployments without system
// cron: an in-process cron fires the tasks on their schedules and the ops
// API serves queue stats. An empty only runs every task.
func (a *app) runWorker(only string) error {
	if only != "" {
		if _, ok := taskSchedules[only]; !ok {
			usage()
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New(cron.WithLocation(a.cfg.Location))
	for task, spec := range taskSchedules {
		if only != "" && task != only {
			continue
		}
		task := task
		if _, err := c.AddFunc(spec, func() {
			if err := a.runTask(ctx, task); err != nil {
				a.log.Error().Err(err).Str("task", task).Msg("scheduled task failed")
			}
		}); err != nil {
			return fmt.Errorf("register %s: %w", task, err)
		}
	}
	c.Start()
	a.log.Info().Str("tz", a.cfg.Location.String()).Msg("worker started")

	srv := &http.Server{
		Addr:              a.cfg.OpsAddr,
		Handler:           ops.NewRouter(a.cfg, a.store, a.log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.log.Info().Str("addr", a.cfg.OpsAddr).Msg("ops api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error().Err(err).Msg("ops api failed")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	<-c.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	a.log.Info().Msg("worker stopped")
	return nil
}

func smtpHost(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
