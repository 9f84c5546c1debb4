package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

const metalsDevName = "metalsdev"

// MetalsDevOptions parameterise the metals.dev adapter.
type MetalsDevOptions struct {
	BaseURL string
	APIKey  string
}

// MetalsDev fetches spot prices from metals.dev. Auth is an api_key query
// parameter; the envelope carries a metals map in USD per troy ounce plus a
// currencies map of units-per-USD multipliers.
type MetalsDev struct {
	opts    MetalsDevOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMetalsDev constructs the metals.dev adapter.
func NewMetalsDev(opts MetalsDevOptions, logger zerolog.Logger) *MetalsDev {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.metals.dev/v1"
	}
	return &MetalsDev{
		opts:    opts,
		logger:  logger.With().Str("component", "metalsdev_source").Logger(),
		client:  &http.Client{},
		baseURL: baseURL,
	}
}

// Name identifies the adapter in quote source tags.
func (m *MetalsDev) Name() string { return metalsDevName }

// Available reports whether an API key was configured.
func (m *MetalsDev) Available() bool { return m.opts.APIKey != "" }

type metalsDevResponse struct {
	Status     string             `json:"status"`
	ErrMessage string             `json:"error_message"`
	Metals     map[string]float64 `json:"metals"`
	Currencies map[string]float64 `json:"currencies"`
}

// Fetch retrieves the latest snapshot and normalises it to a full table.
func (m *MetalsDev) Fetch(ctx context.Context) (pricing.PriceTable, error) {
	if !m.Available() {
		return pricing.PriceTable{}, fmt.Errorf("%s: api key not configured", metalsDevName)
	}

	query := url.Values{}
	query.Set("api_key", m.opts.APIKey)
	query.Set("currency", "USD")
	query.Set("unit", "toz")

	endpoint := m.baseURL + "/latest?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pricing.PriceTable{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return pricing.PriceTable{}, fmt.Errorf("%s: %w", metalsDevName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return pricing.PriceTable{}, fmt.Errorf("%s: read body: %w", metalsDevName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return pricing.PriceTable{}, fmt.Errorf("%s: status %d: %s", metalsDevName, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed metalsDevResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return pricing.PriceTable{}, fmt.Errorf("%s: decode: %w", metalsDevName, err)
	}
	if parsed.Status != "success" {
		return pricing.PriceTable{}, fmt.Errorf("%s: api status %q: %s", metalsDevName, parsed.Status, parsed.ErrMessage)
	}

	perOunce := make(map[pricing.Metal]decimal.Decimal, len(pricing.Metals()))
	for _, metal := range pricing.Metals() {
		price, ok := parsed.Metals[string(metal)]
		if !ok || price <= 0 {
			return pricing.PriceTable{}, fmt.Errorf("%s: missing or invalid %s price", metalsDevName, metal)
		}
		perOunce[metal] = decimal.NewFromFloat(price)
	}

	fiat := make(map[pricing.Currency]decimal.Decimal, len(pricing.Currencies()))
	fiat[pricing.USD] = decimal.NewFromInt(1)
	for _, currency := range pricing.Currencies() {
		if rate, ok := parsed.Currencies[string(currency)]; ok && rate > 0 {
			fiat[currency] = decimal.NewFromFloat(rate)
		}
	}

	return buildTable(metalsDevName, perOunce, fiat, time.Now().UTC())
}

var _ Source = (*MetalsDev)(nil)
