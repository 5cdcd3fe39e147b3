package presenter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Defaults used when a push payload carries no display fields.
const (
	DefaultTitle = "Moments Reminder 🎉"
	DefaultBody  = "You have an upcoming moment!"
	DefaultTag   = "moment-reminder"
	IconPath     = "/icon.png"
)

// Notification action identifiers.
const (
	ActionOpen    = "open"
	ActionDismiss = "dismiss"
)

// Action is one button on a displayed notification.
type Action struct {
	ID    string `json:"action"`
	Title string `json:"title"`
}

// Notification is a platform notification ready for display.
type Notification struct {
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Icon    string            `json:"icon"`
	Badge   string            `json:"badge"`
	Tag     string            `json:"tag"`
	Data    map[string]string `json:"data,omitempty"`
	Vibrate []int             `json:"vibrate,omitempty"`
	Actions []Action          `json:"actions,omitempty"`
}

// NotificationEnvelope is the direct-display variant of a push payload.
type NotificationEnvelope struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Payload is an incoming push message. The backend sends data-only payloads,
// but a notification envelope is honored when present so either variant
// renders.
type Payload struct {
	Notification *NotificationEnvelope `json:"notification,omitempty"`
	Data         map[string]string     `json:"data,omitempty"`
}

// ParsePayload decodes a raw push message body.
func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode push payload: %w", err)
	}
	return p, nil
}

// Window is one open application window.
type Window interface {
	URL() string
	Focused() bool
	Focus() error
}

// Runtime is the platform surface the presenter drives: notification display,
// window enumeration and the worker lifecycle.
type Runtime interface {
	ShowNotification(ctx context.Context, n Notification) error
	Windows(ctx context.Context) ([]Window, error)
	OpenWindow(ctx context.Context, url string) error
	SkipWaiting() error
	ClaimClients(ctx context.Context) error
}

// Closer closes a displayed notification.
type Closer interface {
	Close()
}

// Presenter renders pushed payloads as platform notifications and routes
// clicks back into the app.
type Presenter struct {
	runtime Runtime
	appURL  string // substring identifying this app's windows
	logger  *zerolog.Logger
}

// New creates a presenter. appURL is the URL fragment that identifies the
// app's own windows when focusing on click.
func New(runtime Runtime, appURL string, logger *zerolog.Logger) *Presenter {
	if appURL == "" {
		appURL = "birthday-reminder"
	}
	return &Presenter{runtime: runtime, appURL: appURL, logger: logger}
}

// Derive builds the displayable notification from a payload: the notification
// envelope wins, then the data fields, then the generic defaults.
func Derive(p Payload) Notification {
	n := Notification{
		Title:   DefaultTitle,
		Body:    DefaultBody,
		Tag:     DefaultTag,
		Icon:    IconPath,
		Badge:   IconPath,
		Data:    p.Data,
		Vibrate: []int{200, 100, 200},
		Actions: []Action{
			{ID: ActionOpen, Title: "Open App"},
			{ID: ActionDismiss, Title: "Dismiss"},
		},
	}
	if p.Notification != nil {
		if p.Notification.Title != "" {
			n.Title = p.Notification.Title
		}
		if p.Notification.Body != "" {
			n.Body = p.Notification.Body
		}
	} else if p.Data != nil {
		if t := p.Data["title"]; t != "" {
			n.Title = t
		}
		if b := p.Data["body"]; b != "" {
			n.Body = b
		}
	}
	if p.Data != nil {
		if tag := p.Data["tag"]; tag != "" {
			n.Tag = tag
		}
	}
	return n
}

// HandlePush displays a notification for an incoming payload. When an app
// window already has focus the payload is dropped: the foreground page is in
// charge then.
func (p *Presenter) HandlePush(ctx context.Context, payload Payload) error {
	windows, err := p.runtime.Windows(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("window enumeration failed")
	}
	for _, w := range windows {
		if w.Focused() && strings.Contains(w.URL(), p.appURL) {
			p.logger.Debug().Msg("app focused, skipping notification display")
			return nil
		}
	}

	n := Derive(payload)
	if err := p.runtime.ShowNotification(ctx, n); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	p.logger.Debug().Str("tag", n.Tag).Msg("notification displayed")
	return nil
}

// HandleClick reacts to a notification click. The notification is always
// closed; dismiss does nothing further, anything else focuses an existing app
// window or opens a new one at the root path.
func (p *Presenter) HandleClick(ctx context.Context, action string, notification Closer) error {
	notification.Close()

	if action == ActionDismiss {
		return nil
	}

	windows, err := p.runtime.Windows(ctx)
	if err != nil {
		return fmt.Errorf("window enumeration failed: %w", err)
	}
	for _, w := range windows {
		if strings.Contains(w.URL(), p.appURL) {
			return w.Focus()
		}
	}
	return p.runtime.OpenWindow(ctx, "/")
}

// HandleInstall skips the waiting phase so the new worker version activates
// immediately.
func (p *Presenter) HandleInstall() error {
	p.logger.Info().Msg("worker installed")
	return p.runtime.SkipWaiting()
}

// HandleActivate takes control of all open clients immediately.
func (p *Presenter) HandleActivate(ctx context.Context) error {
	p.logger.Info().Msg("worker activated")
	return p.runtime.ClaimClients(ctx)
}
