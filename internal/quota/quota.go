// Package quota gates job execution on each user's monthly API allowance
// and notifies the user exactly once per exhaustion episode.
package quota

import (
	"context"

	"github.com/rs/zerolog"

	"statusq/internal/users"
)

type UserSource interface {
	Get(ctx context.Context, username string) (*users.User, error)
	AddUsedAPICalls(ctx context.Context, username string, n int) error
	SetLimitEmailSent(ctx context.Context, username string, sent bool) error
}

type Mailer interface {
	SendLimitEmail(ctx context.Context, u *users.User) error
}

type Tracker struct {
	Users UserSource
	Mail  Mailer
	Log   zerolog.Logger
}

// Allow reports whether the user has quota left for one more generation.
// It mutates nothing except the one-time notification flag: finding the
// user already exhausted with the notification unsent (the front end raised
// max and lowered it again, or the flag predates this mechanism) still
// triggers the single email.
func (t *Tracker) Allow(ctx context.Context, username string) (bool, error) {
	u, err := t.Users.Get(ctx, username)
	if err != nil {
		return false, err
	}
	if u.UsedAPICalls >= u.MaxAPICalls {
		t.notifyOnce(ctx, u)
		return false, nil
	}
	return true, nil
}

// Consume records one successful generation. When this increment is the one
// that exhausts the quota, the user is notified.
func (t *Tracker) Consume(ctx context.Context, username string) error {
	if err := t.Users.AddUsedAPICalls(ctx, username, 1); err != nil {
		return err
	}
	u, err := t.Users.Get(ctx, username)
	if err != nil {
		return err
	}
	if u.UsedAPICalls >= u.MaxAPICalls {
		t.notifyOnce(ctx, u)
	}
	return nil
}

// notifyOnce sends the limit email unless it was already sent this episode.
// The flag is only set after a successful send, so a failed delivery is
// retried on the next exhausted check. The monthly quota reset re-arms it.
func (t *Tracker) notifyOnce(ctx context.Context, u *users.User) {
	if u.LimitEmailSent {
		return
	}
	if err := t.Mail.SendLimitEmail(ctx, u); err != nil {
		t.Log.Error().Err(err).Str("username", u.Username).Msg("limit email failed")
		return
	}
	if err := t.Users.SetLimitEmailSent(ctx, u.Username, true); err != nil {
		t.Log.Error().Err(err).Str("username", u.Username).Msg("persist limit_email_sent failed")
		return
	}
	u.LimitEmailSent = true
	t.Log.Info().
		Str("username", u.Username).
		Int("used", u.UsedAPICalls).
		Int("max", u.MaxAPICalls).
		Msg("quota exhausted, user notified")
}
