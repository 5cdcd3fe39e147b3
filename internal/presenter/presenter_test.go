package presenter

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockWindow implements Window.
type MockWindow struct {
	url     string
	focused bool
	focuses int
}

func (w *MockWindow) URL() string   { return w.url }
func (w *MockWindow) Focused() bool { return w.focused }
func (w *MockWindow) Focus() error {
	w.focuses++
	return nil
}

// MockRuntime implements Runtime and records everything it is asked to do.
type MockRuntime struct {
	windows    []Window
	shown      []Notification
	opened     []string
	skipped    bool
	claimed    bool
	windowsErr error
}

func (r *MockRuntime) ShowNotification(ctx context.Context, n Notification) error {
	r.shown = append(r.shown, n)
	return nil
}

func (r *MockRuntime) Windows(ctx context.Context) ([]Window, error) {
	if r.windowsErr != nil {
		return nil, r.windowsErr
	}
	return r.windows, nil
}

func (r *MockRuntime) OpenWindow(ctx context.Context, url string) error {
	r.opened = append(r.opened, url)
	return nil
}

func (r *MockRuntime) SkipWaiting() error {
	r.skipped = true
	return nil
}

func (r *MockRuntime) ClaimClients(ctx context.Context) error {
	r.claimed = true
	return nil
}

// MockCloser implements Closer.
type MockCloser struct{ closed bool }

func (c *MockCloser) Close() { c.closed = true }

func newTestPresenter(rt *MockRuntime) *Presenter {
	logger := zerolog.Nop()
	return New(rt, "birthday-reminder", &logger)
}

func TestDeriveDefaults(t *testing.T) {
	n := Derive(Payload{})

	assert.Equal(t, DefaultTitle, n.Title)
	assert.Equal(t, DefaultBody, n.Body)
	assert.Equal(t, DefaultTag, n.Tag)
	assert.Equal(t, IconPath, n.Icon)
	assert.Equal(t, IconPath, n.Badge)
	assert.Equal(t, []int{200, 100, 200}, n.Vibrate)
	require.Len(t, n.Actions, 2)
	assert.Equal(t, ActionOpen, n.Actions[0].ID)
	assert.Equal(t, ActionDismiss, n.Actions[1].ID)
}

func TestDeriveFromDataFields(t *testing.T) {
	n := Derive(Payload{Data: map[string]string{
		"title": "Moments Reminder 🎉",
		"body":  "🎉 Today is Ada's Birthday!",
		"tag":   "moment-e1",
	}})

	assert.Equal(t, "Moments Reminder 🎉", n.Title)
	assert.Equal(t, "🎉 Today is Ada's Birthday!", n.Body)
	assert.Equal(t, "moment-e1", n.Tag)
}

func TestDeriveEnvelopeWinsOverData(t *testing.T) {
	n := Derive(Payload{
		Notification: &NotificationEnvelope{Title: "Envelope", Body: "envelope body"},
		Data:         map[string]string{"title": "data title", "body": "data body", "tag": "t1"},
	})

	assert.Equal(t, "Envelope", n.Title)
	assert.Equal(t, "envelope body", n.Body)
	// The tag always comes from data.
	assert.Equal(t, "t1", n.Tag)
}

func TestDerivePartialEnvelopeFallsBack(t *testing.T) {
	n := Derive(Payload{Notification: &NotificationEnvelope{Title: "Only a title"}})

	assert.Equal(t, "Only a title", n.Title)
	assert.Equal(t, DefaultBody, n.Body)
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload([]byte(`{"data":{"title":"T","body":"B","tag":"x"}}`))
	require.NoError(t, err)
	require.NotNil(t, p.Data)
	assert.Equal(t, "T", p.Data["title"])

	_, err = ParsePayload([]byte(`{{`))
	assert.Error(t, err)
}

func TestHandlePushDisplaysNotification(t *testing.T) {
	rt := &MockRuntime{}
	pr := newTestPresenter(rt)

	err := pr.HandlePush(context.Background(), Payload{Data: map[string]string{"body": "hi"}})
	require.NoError(t, err)
	require.Len(t, rt.shown, 1)
	assert.Equal(t, "hi", rt.shown[0].Body)
}

func TestHandlePushSkipsWhenAppFocused(t *testing.T) {
	rt := &MockRuntime{windows: []Window{
		&MockWindow{url: "https://birthday-reminder.app/", focused: true},
	}}
	pr := newTestPresenter(rt)

	err := pr.HandlePush(context.Background(), Payload{})
	require.NoError(t, err)
	assert.Empty(t, rt.shown)
}

func TestHandlePushIgnoresFocusedForeignWindow(t *testing.T) {
	rt := &MockRuntime{windows: []Window{
		&MockWindow{url: "https://example.com/", focused: true},
		&MockWindow{url: "https://birthday-reminder.app/", focused: false},
	}}
	pr := newTestPresenter(rt)

	err := pr.HandlePush(context.Background(), Payload{})
	require.NoError(t, err)
	assert.Len(t, rt.shown, 1)
}

func TestHandleClickDismissOnlyCloses(t *testing.T) {
	rt := &MockRuntime{}
	pr := newTestPresenter(rt)
	closer := &MockCloser{}

	require.NoError(t, pr.HandleClick(context.Background(), ActionDismiss, closer))
	assert.True(t, closer.closed)
	assert.Empty(t, rt.opened)
}

func TestHandleClickFocusesExistingWindow(t *testing.T) {
	win := &MockWindow{url: "https://birthday-reminder.app/settings"}
	rt := &MockRuntime{windows: []Window{win}}
	pr := newTestPresenter(rt)
	closer := &MockCloser{}

	require.NoError(t, pr.HandleClick(context.Background(), ActionOpen, closer))
	assert.True(t, closer.closed)
	assert.Equal(t, 1, win.focuses)
	assert.Empty(t, rt.opened)
}

func TestHandleClickOpensWindowWhenNoneMatch(t *testing.T) {
	rt := &MockRuntime{windows: []Window{
		&MockWindow{url: "https://example.com/"},
	}}
	pr := newTestPresenter(rt)

	require.NoError(t, pr.HandleClick(context.Background(), "", &MockCloser{}))
	assert.Equal(t, []string{"/"}, rt.opened)
}

func TestWorkerLifecycle(t *testing.T) {
	rt := &MockRuntime{}
	pr := newTestPresenter(rt)

	require.NoError(t, pr.HandleInstall())
	assert.True(t, rt.skipped)

	require.NoError(t, pr.HandleActivate(context.Background()))
	assert.True(t, rt.claimed)
}
