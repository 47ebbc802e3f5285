package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string

	// Timezone is the zone every user-entered schedule hour is interpreted in.
	Timezone string
	Location *time.Location

	// LockDir holds the per-job-type lock files.
	LockDir string

	OpsAddr              string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	GeneratorURL   string
	GeneratorToken string

	SMTPAddr string
	SMTPFrom string
	SMTPUser string
	SMTPPass string

	StatusRetentionDays int
	ImageRetentionDays  int
	ImageDir            string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL: mustGetenv("DATABASE_URL"),
		Timezone:    getenv("TIMEZONE", "America/New_York"),
		LockDir:     getenv("LOCK_DIR", "/tmp/statusq"),

		OpsAddr:              getenv("OPS_ADDR", ":8090"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",

		GeneratorURL:   getenv("GENERATOR_URL", "http://localhost:8081/v1/generate"),
		GeneratorToken: getenv("GENERATOR_TOKEN", ""),

		SMTPAddr: getenv("SMTP_ADDR", ""),
		SMTPFrom: getenv("SMTP_FROM", ""),
		SMTPUser: getenv("SMTP_USER", ""),
		SMTPPass: getenv("SMTP_PASS", ""),

		StatusRetentionDays: getenvInt("STATUS_RETENTION_DAYS", 30),
		ImageRetentionDays:  getenvInt("IMAGE_RETENTION_DAYS", 30),
		ImageDir:            getenv("IMAGE_DIR", ""),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}
