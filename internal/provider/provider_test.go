package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

func assertPerGram(t *testing.T, table pricing.PriceTable, metal pricing.Metal, currency pricing.Currency, expected decimal.Decimal) {
	t.Helper()
	quote, ok := table.Quote(metal, currency)
	if !ok {
		t.Fatalf("missing quote for %s/%s", metal, currency)
	}
	tolerance := expected.Abs().Mul(decimal.NewFromFloat(1e-9))
	if quote.PricePerGram.Sub(expected).Abs().GreaterThan(tolerance) {
		t.Fatalf("%s/%s per-gram price %s, expected %s", metal, currency, quote.PricePerGram, expected)
	}
}

func TestGoldAPIFetch(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		if got := r.Header.Get("x-access-token"); got != "token-123" {
			t.Errorf("expected access token header, got %q", got)
		}
		switch r.URL.Path {
		case "/XAU/USD":
			fmt.Fprint(w, `{"metal":"XAU","currency":"USD","price":3110.34768}`)
		case "/XAG/USD":
			fmt.Fprint(w, `{"metal":"XAG","currency":"USD","price":31.1034768}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	source := NewGoldAPI(GoldAPIOptions{BaseURL: server.URL, APIKey: "token-123"}, zerolog.Nop())
	table, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("table invalid: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("expected one request per metal, got %v", requests)
	}

	// 3110.34768 per ounce is exactly 100 USD per gram.
	assertPerGram(t, table, pricing.Gold, pricing.USD, decimal.NewFromInt(100))
	assertPerGram(t, table, pricing.Silver, pricing.USD, decimal.NewFromInt(1))
	// GBP applies the embedded fallback rate, the payload has no fiat rates.
	assertPerGram(t, table, pricing.Gold, pricing.GBP, decimal.NewFromInt(79))
	if table.Source != goldAPIName {
		t.Fatalf("expected source %q, got %q", goldAPIName, table.Source)
	}
}

func TestGoldAPIFetchPayloadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"invalid api key"}`)
	}))
	defer server.Close()

	source := NewGoldAPI(GoldAPIOptions{BaseURL: server.URL, APIKey: "bad"}, zerolog.Nop())
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("payload error should fail the fetch")
	}
}

func TestGoldAPIFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewGoldAPI(GoldAPIOptions{BaseURL: server.URL, APIKey: "token"}, zerolog.Nop())
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("non-200 status should fail the fetch")
	}
}

func TestGoldAPIUnavailableWithoutKey(t *testing.T) {
	source := NewGoldAPI(GoldAPIOptions{}, zerolog.Nop())
	if source.Available() {
		t.Fatal("adapter without an api key must report unavailable")
	}
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("fetch without an api key must fail")
	}
}

func TestMetalPriceAPIFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api_key"); got != "key-456" {
			t.Errorf("expected api_key query param, got %q", got)
		}
		if got := r.URL.Query().Get("base"); got != "USD" {
			t.Errorf("expected USD base, got %q", got)
		}
		// Inverse quotes: 1/3110.34768 ounces of gold per USD.
		fmt.Fprint(w, `{"success":true,"base":"USD","rates":{
			"XAU":0.000321507,"XAG":0.0321507,
			"GBP":0.80,"AED":3.6725,"SAR":3.75,"EGP":48.6
		}}`)
	}))
	defer server.Close()

	source := NewMetalPriceAPI(MetalPriceAPIOptions{BaseURL: server.URL, APIKey: "key-456"}, zerolog.Nop())
	table, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("table invalid: %v", err)
	}

	// 1/0.000321507 per ounce is 100.00 USD per gram give or take rounding.
	goldUSD, _ := table.Quote(pricing.Gold, pricing.USD)
	diff := goldUSD.PricePerGram.Sub(decimal.NewFromInt(100)).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Fatalf("gold per-gram price %s too far from 100", goldUSD.PricePerGram)
	}

	// GBP uses the payload rate, not the embedded fallback.
	goldGBP, _ := table.Quote(pricing.Gold, pricing.GBP)
	expected := goldUSD.PricePerGram.Mul(decimal.NewFromFloat(0.80))
	if goldGBP.PricePerGram.Sub(expected).Abs().GreaterThan(decimal.NewFromFloat(0.001)) {
		t.Fatalf("expected payload GBP rate applied, got %s", goldGBP.PricePerGram)
	}
}

func TestMetalPriceAPIFetchRejectsFailureEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"error":{"code":101,"info":"no api key"}}`)
	}))
	defer server.Close()

	source := NewMetalPriceAPI(MetalPriceAPIOptions{BaseURL: server.URL, APIKey: "key"}, zerolog.Nop())
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("failed envelope should fail the fetch")
	}
}

func TestMetalPriceAPIFetchRejectsMissingMetal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"rates":{"XAU":0.0003}}`)
	}))
	defer server.Close()

	source := NewMetalPriceAPI(MetalPriceAPIOptions{BaseURL: server.URL, APIKey: "key"}, zerolog.Nop())
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("missing silver rate should fail the fetch")
	}
}

func TestMetalsDevFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("unit"); got != "toz" {
			t.Errorf("expected toz unit, got %q", got)
		}
		fmt.Fprint(w, `{"status":"success",
			"metals":{"gold":3110.34768,"silver":31.1034768},
			"currencies":{"USD":1,"GBP":0.78,"AED":3.67,"SAR":3.75,"EGP":48.2}}`)
	}))
	defer server.Close()

	source := NewMetalsDev(MetalsDevOptions{BaseURL: server.URL, APIKey: "key-789"}, zerolog.Nop())
	table, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("table invalid: %v", err)
	}

	assertPerGram(t, table, pricing.Gold, pricing.USD, decimal.NewFromInt(100))
	assertPerGram(t, table, pricing.Silver, pricing.EGP, decimal.NewFromFloat(48.2))
}

func TestMetalsDevFetchRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"failure","error_message":"quota exceeded"}`)
	}))
	defer server.Close()

	source := NewMetalsDev(MetalsDevOptions{BaseURL: server.URL, APIKey: "key"}, zerolog.Nop())
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("failure status should fail the fetch")
	}
}

func TestMetalsDevFetchRejectsZeroPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","metals":{"gold":0,"silver":31.1}}`)
	}))
	defer server.Close()

	source := NewMetalsDev(MetalsDevOptions{BaseURL: server.URL, APIKey: "key"}, zerolog.Nop())
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("zero price should fail the fetch")
	}
}

func TestFiatRateFallsBackWhenProviderOmitsCurrency(t *testing.T) {
	rate, err := fiatRate(map[pricing.Currency]decimal.Decimal{pricing.GBP: decimal.NewFromFloat(0.81)}, pricing.GBP)
	if err != nil {
		t.Fatalf("fiat rate: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(0.81)) {
		t.Fatalf("provider rate should win, got %s", rate)
	}

	rate, err = fiatRate(nil, pricing.SAR)
	if err != nil {
		t.Fatalf("fallback fiat rate: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(3.75)) {
		t.Fatalf("expected embedded SAR rate, got %s", rate)
	}
}
