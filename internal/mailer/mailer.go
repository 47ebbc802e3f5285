package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"statusq/internal/users"
)

// Mailer delivers the one-time quota notification. Delivery details belong
// to the platform; the scheduler only needs a narrow send interface.
type Mailer interface {
	SendLimitEmail(ctx context.Context, u *users.User) error
}

// SMTP sends through a plain SMTP relay. No library for this appears in the
// ecosystem slice this project draws from, so net/smtp it is.
type SMTP struct {
	Addr string // host:port
	From string
	User string
	Pass string
	Host string // for AUTH, the host part of Addr
}

func (s *SMTP) SendLimitEmail(ctx context.Context, u *users.User) error {
	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Monthly status limit reached\r\n\r\n"+
			"Hi %s,\r\n\r\n"+
			"You have used all %d of your status generations for this period.\r\n"+
			"Scheduled posts will resume automatically when your quota resets.\r\n",
		s.From, u.Email, u.Username, u.MaxAPICalls,
	)

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	if err := smtp.SendMail(s.Addr, auth, s.From, []string{u.Email}, []byte(body)); err != nil {
		return fmt.Errorf("send limit email to %s: %w", u.Email, err)
	}
	return nil
}

// Log records the notification instead of sending it. Used when SMTP is not
// configured, so development environments still see the quota transition.
type Log struct {
	Logger zerolog.Logger
}

func (l *Log) SendLimitEmail(ctx context.Context, u *users.User) error {
	l.Logger.Info().
		Str("username", u.Username).
		Str("email", u.Email).
		Int("max_api_calls", u.MaxAPICalls).
		Msg("limit email (smtp not configured, logging only)")
	return nil
}
