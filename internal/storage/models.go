package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PreferencesRecord is the authoritative remote copy of a user's settings.
type PreferencesRecord struct {
	UserID                string
	Currency              string
	NotificationsEnabled  bool
	AlertThresholdPercent decimal.Decimal
	LastNotifiedAt        map[string]time.Time
	UpdatedAt             time.Time
}

// PriceSample is one persisted live observation for a (metal, currency) key.
type PriceSample struct {
	Metal         string
	Currency      string
	PricePerGram  decimal.Decimal
	PricePerOunce decimal.Decimal
	ChangePercent *decimal.Decimal
	Direction     *string
	Source        string
	ObservedAt    time.Time
	CreatedAt     time.Time
}

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID               int64
	UserID           string
	Category         string
	Metal            string
	Currency         string
	ChangePercent    decimal.Decimal
	ThresholdPercent decimal.Decimal
	Direction        string
	Message          string
	CreatedAt        time.Time
}
