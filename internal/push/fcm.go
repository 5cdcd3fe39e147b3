package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// ErrTokenInvalid marks a permanent per-token failure: the registration token
// is malformed or no longer registered with FCM. Callers prune such tokens;
// any other send error is treated as transient.
var ErrTokenInvalid = errors.New("push: invalid or unregistered token")

// Payload is the data-only message envelope. FCM does not auto-display
// data-only messages, so the receiving service worker stays in charge of
// rendering.
type Payload struct {
	Title      string
	Body       string
	Tag        string
	PersonID   string
	PersonName string
}

// Data flattens the payload into the FCM data map (string values only).
func (p Payload) Data() map[string]string {
	data := map[string]string{
		"title": p.Title,
		"body":  p.Body,
		"tag":   p.Tag,
	}
	if p.PersonID != "" {
		data["personId"] = p.PersonID
	}
	if p.PersonName != "" {
		data["personName"] = p.PersonName
	}
	return data
}

// Sender delivers payloads through Firebase Cloud Messaging, one token per
// call, throttled by a token-bucket limiter.
type Sender struct {
	client  *messaging.Client
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// Config holds FCM sender configuration.
type Config struct {
	CredentialsFile string
	ProjectID       string
	RatePerSecond   float64
	Burst           int
}

// NewSender initializes the Firebase app and messaging client.
func NewSender(ctx context.Context, cfg Config, logger *zerolog.Logger) (*Sender, error) {
	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}

	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 30
	}

	return &Sender{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:  logger,
	}, nil
}

// Send delivers a payload to a single device token. Returns ErrTokenInvalid
// (wrapped) when FCM reports the token as permanently dead.
func (s *Sender) Send(ctx context.Context, token string, p Payload) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	msg := &messaging.Message{
		Token: token,
		Data:  p.Data(),
	}

	if _, err := s.client.Send(ctx, msg); err != nil {
		if messaging.IsUnregistered(err) || errorutils.IsInvalidArgument(err) {
			return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		return err
	}

	s.logger.Debug().
		Str("tag", p.Tag).
		Str("token_prefix", tokenPrefix(token)).
		Msg("push delivered")
	return nil
}

// tokenPrefix truncates a token for logging. Full tokens are credentials and
// must not land in logs.
func tokenPrefix(token string) string {
	if len(token) > 20 {
		return token[:20] + "..."
	}
	return token
}
