package scanner

import (
	"context"
	"time"

	"moments/internal/model"
	"moments/internal/push"
)

// Directory provides access to user records and their device token lists.
type Directory interface {
	// ListUsers returns all users. Failure aborts the scan run.
	ListUsers(ctx context.Context) ([]model.User, error)

	// RemoveTokens removes dead tokens from a user's token list in one
	// batched update.
	RemoveTokens(ctx context.Context, userID string, tokens []string) error
}

// SettingsSource provides per-user notification settings.
type SettingsSource interface {
	// GetSettings returns settings for a user, defaults when unset.
	GetSettings(ctx context.Context, userID string) (model.Settings, error)
}

// EventSource provides a user's recurring events.
type EventSource interface {
	// ListEvents returns the user's events. Failure aborts the scan run.
	ListEvents(ctx context.Context, userID string) ([]model.Event, error)
}

// SentLog is the idempotency guard: one record per
// (user, event, reminder, year).
type SentLog interface {
	// GetSent returns the record for key, or nil when none exists.
	GetSent(ctx context.Context, key string) (*model.SentRecord, error)

	// PutSent writes the record for key.
	PutSent(ctx context.Context, key string, rec model.SentRecord) error

	// DeleteSentBefore removes records older than cutoff, returning the
	// count deleted.
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Pusher delivers one payload to one device token. A push.ErrTokenInvalid
// result means the token is permanently dead and should be pruned.
type Pusher interface {
	Send(ctx context.Context, token string, p push.Payload) error
}
