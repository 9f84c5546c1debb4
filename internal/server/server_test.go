package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/alerting"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/history"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/localstore"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/prefs"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricecache"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/resolver"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/service"
)

type staticResolver struct{}

func (staticResolver) Resolve(ctx context.Context) (pricing.PriceTable, resolver.Outcome) {
	table := pricing.NewTable("static", time.Now().UTC())
	for _, metal := range pricing.Metals() {
		for _, currency := range pricing.Currencies() {
			table.Set(pricing.NewQuote(metal, currency, decimal.NewFromInt(100), table.FetchedAt, "static"))
		}
	}
	return table, resolver.Resolved
}

func testEnv(t *testing.T) (http.Handler, *prefs.Store) {
	t.Helper()

	local, err := localstore.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("open localstore: %v", err)
	}

	logger := zerolog.Nop()
	prefsStore := prefs.New(local, nil, logger)
	policy := alerting.NewPolicy(logger)
	hist := history.New(local, logger)

	cycle := service.NewCycle(staticResolver{}, hist, prefsStore, policy, nil, nil, nil, "user-1", logger)
	cache := pricecache.New(cycle, time.Hour, logger)
	engine := service.New(cache, prefsStore, policy, nil, nil, "user-1", logger)

	return New(Options{}, engine, logger).http.Handler, prefsStore
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	handler, _ := testEnv(t)
	return handler
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetPrices(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/prices", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var table pricing.PriceTable
	if err := json.Unmarshal(rec.Body.Bytes(), &table); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	quote, ok := table.Quote(pricing.Gold, pricing.USD)
	if !ok {
		t.Fatal("response missing gold/USD quote")
	}
	if !quote.PricePerGram.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected gold price %s", quote.PricePerGram)
	}
}

func TestConvertEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/convert?metal=gold&amount=100&unit=grams&currency=USD", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Value decimal.Decimal `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Value.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected 10000, got %s", resp.Value)
	}
}

func TestConvertRejectsBadInput(t *testing.T) {
	handler := testHandler(t)

	for _, target := range []string{
		"/v1/convert?metal=platinum&amount=1&currency=USD",
		"/v1/convert?metal=gold&amount=abc&currency=USD",
		"/v1/convert?metal=gold&amount=-1&currency=USD",
		"/v1/convert?metal=gold&amount=1&currency=JPY",
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestNisabEndpointDefaultsToUserCurrency(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nisab", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var thresholds map[pricing.Metal]pricing.NisabThreshold
	if err := json.Unmarshal(rec.Body.Bytes(), &thresholds); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	gold, ok := thresholds[pricing.Gold]
	if !ok {
		t.Fatal("missing gold threshold")
	}
	if gold.Currency != pricing.USD {
		t.Fatalf("expected default USD currency, got %s", gold.Currency)
	}
	if !gold.ThresholdWeightGrams.Equal(pricing.NisabWeightGold) {
		t.Fatalf("unexpected threshold weight %s", gold.ThresholdWeightGrams)
	}
}

func TestNisabCheckEndpoint(t *testing.T) {
	body := `{"metal":"gold","prev_amount":"80","new_amount":"90","unit":"grams"}`
	rec := httptest.NewRecorder()
	testHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/nisab/check", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		MeetsNisab bool `json:"meets_nisab"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.MeetsNisab {
		t.Fatal("90g of gold should meet nisab")
	}
}

func TestNisabCheckRejectsUnknownMetal(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/nisab/check", strings.NewReader(`{"metal":"copper"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	handler := testHandler(t)

	body := `{"user_id":"user-1","currency":"EGP","notifications_enabled":true,"alert_threshold_pct":"3"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/preferences", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/preferences", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var loaded prefs.UserPreferences
	if err := json.Unmarshal(rec.Body.Bytes(), &loaded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if loaded.Currency != pricing.EGP {
		t.Fatalf("expected EGP, got %s", loaded.Currency)
	}
	if !loaded.AlertThresholdPercent.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected threshold 3, got %s", loaded.AlertThresholdPercent)
	}
}

func TestPutPreferencesIgnoresClientCooldownState(t *testing.T) {
	handler, prefsStore := testEnv(t)
	ctx := context.Background()

	firedAt := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	prefsStore.MarkNotified(ctx, "user-1", alerting.CategoryDailyUpdate, firedAt)

	// The body tries to wipe the cooldown map entirely.
	body := `{"user_id":"user-1","currency":"USD","notifications_enabled":true,"alert_threshold_pct":"2","last_notified_at":{}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/preferences", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	loaded := prefsStore.Load(ctx, "user-1")
	got, ok := loaded.LastNotifiedAt[alerting.CategoryDailyUpdate]
	if !ok {
		t.Fatal("client request cleared the cooldown state")
	}
	if !got.Equal(firedAt) {
		t.Fatalf("cooldown time changed: expected %s, got %s", firedAt, got)
	}
}

func TestPutPreferencesRejectsBadCurrency(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/preferences", strings.NewReader(`{"user_id":"user-1","currency":"JPY"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
