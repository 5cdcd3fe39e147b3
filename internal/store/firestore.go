package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"moments/internal/model"
)

// Firestore document layout.
const (
	usersCollection    = "users"
	settingsCollection = "settings"
	settingsDoc        = "notifications"
	eventsCollection   = "birthdays"
	sentCollection     = "sentNotifications"
)

// Store wraps the Firestore client behind the operations the scanner, the
// trigger endpoint and the settings sync need. An optional Redis client adds
// a read-through cache for per-user settings and events.
type Store struct {
	client   *firestore.Client
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *zerolog.Logger
}

// NewStore opens a Firestore client for the given project.
func NewStore(ctx context.Context, projectID, credentialsFile string, logger *zerolog.Logger) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	return &Store{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ListUsers returns every user document. A failure here aborts the whole scan
// run; the next scheduled invocation retries.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	iter := s.client.Collection(usersCollection).Documents(ctx)
	defer iter.Stop()

	var users []model.User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		var u model.User
		if err := doc.DataTo(&u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", doc.Ref.ID, err)
		}
		u.ID = doc.Ref.ID
		users = append(users, u)
	}
	return users, nil
}

// GetUser fetches one user, or nil when the document does not exist.
func (s *Store) GetUser(ctx context.Context, userID string) (*model.User, error) {
	doc, err := s.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	var u model.User
	if err := doc.DataTo(&u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	u.ID = doc.Ref.ID
	return &u, nil
}

// settingsEnvelope mirrors the settings document shape: the settings object
// lives under a `settings` field next to an updatedAt stamp.
type settingsEnvelope struct {
	Settings  model.Settings `firestore:"settings"`
	UpdatedAt string         `firestore:"updatedAt,omitempty"`
}

// LookupSettings returns the user's stored notification settings, or nil when
// the user never saved any.
func (s *Store) LookupSettings(ctx context.Context, userID string) (*model.Settings, error) {
	doc, err := s.client.Collection(usersCollection).Doc(userID).
		Collection(settingsCollection).Doc(settingsDoc).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings for %s: %w", userID, err)
	}

	var env settingsEnvelope
	if err := doc.DataTo(&env); err != nil {
		return nil, fmt.Errorf("decode settings for %s: %w", userID, err)
	}
	if len(env.Settings.Reminders) == 0 {
		return nil, nil
	}
	return &env.Settings, nil
}

// GetSettings returns the user's notification settings, falling back to the
// defaults when the document is missing or empty.
func (s *Store) GetSettings(ctx context.Context, userID string) (model.Settings, error) {
	cacheKey := "settings:" + userID
	var cached model.Settings
	if s.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	stored, err := s.LookupSettings(ctx, userID)
	if err != nil {
		return model.Settings{}, err
	}
	if stored == nil {
		return model.DefaultSettings(), nil
	}

	s.writeCache(ctx, cacheKey, *stored)
	return *stored, nil
}

// SaveSettings overwrites the user's settings document and drops the cached
// copy.
func (s *Store) SaveSettings(ctx context.Context, userID string, settings model.Settings) error {
	_, err := s.client.Collection(usersCollection).Doc(userID).
		Collection(settingsCollection).Doc(settingsDoc).Set(ctx, settingsEnvelope{
		Settings:  settings,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("save settings for %s: %w", userID, err)
	}
	s.dropCache(ctx, "settings:"+userID)
	return nil
}

// ListEvents returns the user's events. A failure aborts the run.
func (s *Store) ListEvents(ctx context.Context, userID string) ([]model.Event, error) {
	cacheKey := "events:" + userID
	var cached []model.Event
	if s.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	iter := s.client.Collection(usersCollection).Doc(userID).
		Collection(eventsCollection).Documents(ctx)
	defer iter.Stop()

	var events []model.Event
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list events for %s: %w", userID, err)
		}
		var e model.Event
		if err := doc.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", doc.Ref.ID, err)
		}
		e.ID = doc.Ref.ID
		events = append(events, e)
	}

	s.writeCache(ctx, cacheKey, events)
	return events, nil
}

// GetSent returns the sent record for key, or nil when none exists.
func (s *Store) GetSent(ctx context.Context, key string) (*model.SentRecord, error) {
	doc, err := s.client.Collection(sentCollection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sent record %s: %w", key, err)
	}
	var rec model.SentRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode sent record %s: %w", key, err)
	}
	return &rec, nil
}

// PutSent writes (or overwrites) the sent record under its composite key.
func (s *Store) PutSent(ctx context.Context, key string, rec model.SentRecord) error {
	_, err := s.client.Collection(sentCollection).Doc(key).Set(ctx, rec)
	if err != nil {
		return fmt.Errorf("put sent record %s: %w", key, err)
	}
	return nil
}

// RemoveTokens removes the given tokens from the user's fcmTokens array in a
// single update.
func (s *Store) RemoveTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	vals := make([]interface{}, len(tokens))
	for i, t := range tokens {
		vals[i] = t
	}
	_, err := s.client.Collection(usersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "fcmTokens", Value: firestore.ArrayRemove(vals...)},
	})
	if err != nil {
		return fmt.Errorf("remove tokens for %s: %w", userID, err)
	}
	return nil
}

// DeleteSentBefore deletes every sent record older than cutoff in one batched
// pass and returns the number of records removed. A run with nothing to
// delete is a no-op.
func (s *Store) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int, error) {
	iter := s.client.Collection(sentCollection).
		Where("sentAt", "<", cutoff).Documents(ctx)
	defer iter.Stop()

	bw := s.client.BulkWriter(ctx)
	deleted := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return deleted, fmt.Errorf("query old sent records: %w", err)
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			bw.End()
			return deleted, fmt.Errorf("delete sent record %s: %w", doc.Ref.ID, err)
		}
		deleted++
	}
	bw.End()
	return deleted, nil
}

// ListSentBetween returns sent records in [from, to) ordered by sentAt, for
// the delivery report.
func (s *Store) ListSentBetween(ctx context.Context, from, to time.Time) ([]model.SentRecord, []string, error) {
	iter := s.client.Collection(sentCollection).
		Where("sentAt", ">=", from).
		Where("sentAt", "<", to).
		OrderBy("sentAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var recs []model.SentRecord
	var keys []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("list sent records: %w", err)
		}
		var rec model.SentRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, nil, fmt.Errorf("decode sent record %s: %w", doc.Ref.ID, err)
		}
		recs = append(recs, rec)
		keys = append(keys, doc.Ref.ID)
	}
	return recs, keys, nil
}
