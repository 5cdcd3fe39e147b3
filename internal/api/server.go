package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"moments/internal/model"
	"moments/internal/push"
)

// UserDirectory is the slice of the store the trigger endpoint needs.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	RemoveTokens(ctx context.Context, userID string, tokens []string) error
}

// Pusher delivers one payload to one device token.
type Pusher interface {
	Send(ctx context.Context, token string, p push.Payload) error
}

// Server exposes the manual notification trigger. It exists purely for
// manual testing of the push pipeline.
type Server struct {
	users   UserDirectory
	pusher  Pusher
	limiter *RateLimiter
	logger  *zerolog.Logger
}

// NewServer creates the trigger API server.
func NewServer(users UserDirectory, pusher Pusher, limiter *RateLimiter, logger *zerolog.Logger) *Server {
	return &Server{users: users, pusher: pusher, limiter: limiter, logger: logger}
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/notifications/test", s.handleTestNotification)
	return mux
}

// testRequest is the trigger request body.
type testRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// handleTestNotification sends a literal message to every one of a user's
// device tokens. Any token that fails is removed from the user's list, which
// matches the scan path's handling of permanently dead tokens.
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.limiter != nil && !s.limiter.Allow(clientIP(r)) {
		writeText(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	requestID := uuid.New().String()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Message == "" {
		writeText(w, http.StatusBadRequest, "Missing userId or message")
		return
	}

	user, err := s.users.GetUser(r.Context(), req.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("test notification: user lookup failed")
		writeText(w, http.StatusInternalServerError, fmt.Sprintf("Error: %v", err))
		return
	}
	if user == nil {
		writeText(w, http.StatusNotFound, "User not found")
		return
	}
	if len(user.FCMTokens) == 0 {
		writeText(w, http.StatusBadRequest, "User has no FCM tokens")
		return
	}

	payload := push.Payload{
		Title: "Test Notification 🧪",
		Body:  req.Message,
		Tag:   "test-notification",
	}

	success := 0
	var failed []string
	for _, token := range user.FCMTokens {
		if err := s.pusher.Send(r.Context(), token, payload); err != nil {
			logger.Error().Err(err).Msg("test notification: send failed")
			failed = append(failed, token)
			continue
		}
		success++
	}

	if len(failed) > 0 {
		if err := s.users.RemoveTokens(r.Context(), req.UserID, failed); err != nil {
			logger.Error().Err(err).Msg("test notification: token removal failed")
		}
	}

	logger.Info().
		Str("user_id", req.UserID).
		Int("sent", success).
		Int("removed", len(failed)).
		Msg("test notification processed")

	if success > 0 {
		writeText(w, http.StatusOK,
			fmt.Sprintf("Notification sent to %d device(s). %d invalid token(s) removed.", success, len(failed)))
		return
	}
	writeText(w, http.StatusBadRequest,
		fmt.Sprintf("All %d tokens failed. They have been removed. User needs to re-enable notifications.", len(user.FCMTokens)))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// Run serves the API on the given port until ctx is done.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
