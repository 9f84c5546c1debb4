// Package prefs holds user settings with a local fast path and an
// authoritative remote copy, reconciled opportunistically.
package prefs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/localstore"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/storage"
)

// DefaultAlertThresholdPercent applies when the user never set one.
var DefaultAlertThresholdPercent = decimal.NewFromFloat(2.0)

const (
	localKeyPrefix = "preferences/"
	remoteTimeout  = 10 * time.Second
)

// UserPreferences are the per-user engine settings.
type UserPreferences struct {
	UserID                string               `json:"user_id"`
	Currency              pricing.Currency     `json:"currency"`
	NotificationsEnabled  bool                 `json:"notifications_enabled"`
	AlertThresholdPercent decimal.Decimal      `json:"alert_threshold_pct"`
	LastNotifiedAt        map[string]time.Time `json:"last_notified_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

// Default returns fresh preferences, minting a user id when none is supplied.
func Default(userID string) UserPreferences {
	if userID == "" {
		userID = uuid.NewString()
	}
	return UserPreferences{
		UserID:                userID,
		Currency:              pricing.USD,
		NotificationsEnabled:  true,
		AlertThresholdPercent: DefaultAlertThresholdPercent,
		LastNotifiedAt:        make(map[string]time.Time),
	}
}

// Store reads and writes preferences. Local reads never wait on the network;
// the remote copy wins on conflict and is reconciled in the background.
type Store struct {
	mu     sync.Mutex
	local  *localstore.Store
	remote storage.PreferenceStore
	logger zerolog.Logger
}

// New constructs a preferences store. remote may be nil when the database is
// not configured; the store then runs local-only.
func New(local *localstore.Store, remote storage.PreferenceStore, logger zerolog.Logger) *Store {
	return &Store{
		local:  local,
		remote: remote,
		logger: logger.With().Str("component", "prefs_store").Logger(),
	}
}

// Load returns the local copy immediately, then reconciles against the remote
// store in the background: a present remote record overwrites local, an absent
// one gets the local copy pushed up.
func (s *Store) Load(ctx context.Context, userID string) UserPreferences {
	current := s.loadLocal(userID)

	if s.remote != nil {
		go s.reconcile(current)
	}
	return current
}

// Save writes local synchronously and pushes remote best-effort. Callers
// always see an immediate success; a remote failure is logged and the next
// Load reconciles.
func (s *Store) Save(ctx context.Context, p UserPreferences) error {
	if p.UserID == "" {
		return errors.New("prefs: user id is required")
	}
	if !p.Currency.Valid() {
		return errors.New("prefs: unsupported currency")
	}
	if p.AlertThresholdPercent.IsNegative() {
		return errors.New("prefs: alert threshold cannot be negative")
	}
	if p.LastNotifiedAt == nil {
		p.LastNotifiedAt = make(map[string]time.Time)
	}
	p.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	err := s.writeLocal(p)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.remote != nil {
		go s.pushRemote(p)
	}
	return nil
}

// MarkNotified records a notification firing time for a category and persists
// it through the usual local-then-remote path.
func (s *Store) MarkNotified(ctx context.Context, userID, category string, at time.Time) {
	current := s.loadLocal(userID)
	if current.LastNotifiedAt == nil {
		current.LastNotifiedAt = make(map[string]time.Time)
	}
	current.LastNotifiedAt[category] = at

	if err := s.Save(ctx, current); err != nil {
		s.logger.Error().Err(err).Str("category", category).Msg("failed to record notification time")
	}
}

func (s *Store) loadLocal(userID string) UserPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := Default(userID)
	if s.local == nil {
		return current
	}

	var stored UserPreferences
	ok, err := s.local.Get(localKeyPrefix+current.UserID, &stored)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read local preferences, using defaults")
		return current
	}
	if !ok {
		return current
	}

	if stored.LastNotifiedAt == nil {
		stored.LastNotifiedAt = make(map[string]time.Time)
	}
	if stored.AlertThresholdPercent.IsZero() {
		stored.AlertThresholdPercent = DefaultAlertThresholdPercent
	}
	return stored
}

func (s *Store) writeLocal(p UserPreferences) error {
	if s.local == nil {
		return nil
	}
	return s.local.Put(localKeyPrefix+p.UserID, p)
}

// reconcile runs off the caller's path: remote wins when present, local is
// pushed up when the remote has no record yet.
func (s *Store) reconcile(local UserPreferences) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()

	record, err := s.remote.GetPreferences(ctx, local.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		s.pushRemote(local)
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("remote preference fetch failed, keeping local copy")
		return
	}

	remote := fromRecord(record)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocal(remote); err != nil {
		s.logger.Error().Err(err).Msg("failed to overwrite local preferences from remote")
	}
}

func (s *Store) pushRemote(p UserPreferences) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()

	if err := s.remote.UpsertPreferences(ctx, toRecord(p)); err != nil {
		// Not retried; the next Load cycle reconciles naturally.
		s.logger.Error().Err(err).Str("user_id", p.UserID).Msg("remote preference write failed")
	}
}

func toRecord(p UserPreferences) storage.PreferencesRecord {
	return storage.PreferencesRecord{
		UserID:                p.UserID,
		Currency:              string(p.Currency),
		NotificationsEnabled:  p.NotificationsEnabled,
		AlertThresholdPercent: p.AlertThresholdPercent,
		LastNotifiedAt:        p.LastNotifiedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func fromRecord(rec storage.PreferencesRecord) UserPreferences {
	prefs := UserPreferences{
		UserID:                rec.UserID,
		Currency:              pricing.Currency(rec.Currency),
		NotificationsEnabled:  rec.NotificationsEnabled,
		AlertThresholdPercent: rec.AlertThresholdPercent,
		LastNotifiedAt:        rec.LastNotifiedAt,
		UpdatedAt:             rec.UpdatedAt,
	}
	if prefs.LastNotifiedAt == nil {
		prefs.LastNotifiedAt = make(map[string]time.Time)
	}
	if !prefs.Currency.Valid() {
		prefs.Currency = pricing.USD
	}
	if prefs.AlertThresholdPercent.IsZero() {
		prefs.AlertThresholdPercent = DefaultAlertThresholdPercent
	}
	return prefs
}
