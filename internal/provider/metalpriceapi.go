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

const metalPriceAPIName = "metalpriceapi"

// MetalPriceAPIOptions parameterise the metalpriceapi.com adapter.
type MetalPriceAPIOptions struct {
	BaseURL string
	APIKey  string
}

// MetalPriceAPI fetches metal and fiat rates from metalpriceapi.com in one
// request. Auth is an api_key query parameter. The envelope quotes inverse
// rates: rates.XAU is ounces of gold per USD.
type MetalPriceAPI struct {
	opts    MetalPriceAPIOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMetalPriceAPI constructs the metalpriceapi.com adapter.
func NewMetalPriceAPI(opts MetalPriceAPIOptions, logger zerolog.Logger) *MetalPriceAPI {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.metalpriceapi.com/v1"
	}
	return &MetalPriceAPI{
		opts:    opts,
		logger:  logger.With().Str("component", "metalpriceapi_source").Logger(),
		client:  &http.Client{},
		baseURL: baseURL,
	}
}

// Name identifies the adapter in quote source tags.
func (m *MetalPriceAPI) Name() string { return metalPriceAPIName }

// Available reports whether an API key was configured.
func (m *MetalPriceAPI) Available() bool { return m.opts.APIKey != "" }

type metalPriceAPIResponse struct {
	Success bool               `json:"success"`
	Base    string             `json:"base"`
	Rates   map[string]float64 `json:"rates"`
	Error   struct {
		Code int    `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// Fetch retrieves the latest rates and normalises them to a full table.
func (m *MetalPriceAPI) Fetch(ctx context.Context) (pricing.PriceTable, error) {
	if !m.Available() {
		return pricing.PriceTable{}, fmt.Errorf("%s: api key not configured", metalPriceAPIName)
	}

	symbols := make([]string, 0, len(pricing.Metals())+len(pricing.Currencies()))
	for _, metal := range pricing.Metals() {
		symbols = append(symbols, metal.Symbol())
	}
	for _, currency := range pricing.Currencies() {
		if currency != pricing.USD {
			symbols = append(symbols, string(currency))
		}
	}

	query := url.Values{}
	query.Set("api_key", m.opts.APIKey)
	query.Set("base", "USD")
	query.Set("currencies", strings.Join(symbols, ","))

	endpoint := m.baseURL + "/latest?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pricing.PriceTable{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return pricing.PriceTable{}, fmt.Errorf("%s: %w", metalPriceAPIName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return pricing.PriceTable{}, fmt.Errorf("%s: read body: %w", metalPriceAPIName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return pricing.PriceTable{}, fmt.Errorf("%s: status %d: %s", metalPriceAPIName, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed metalPriceAPIResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return pricing.PriceTable{}, fmt.Errorf("%s: decode: %w", metalPriceAPIName, err)
	}
	if !parsed.Success {
		return pricing.PriceTable{}, fmt.Errorf("%s: api error %d: %s", metalPriceAPIName, parsed.Error.Code, parsed.Error.Info)
	}

	perOunce := make(map[pricing.Metal]decimal.Decimal, len(pricing.Metals()))
	for _, metal := range pricing.Metals() {
		inverse, ok := parsed.Rates[metal.Symbol()]
		if !ok || inverse <= 0 {
			return pricing.PriceTable{}, fmt.Errorf("%s: missing or invalid %s rate", metalPriceAPIName, metal.Symbol())
		}
		// Inverse quote: USD per ounce is the reciprocal.
		perOunce[metal] = decimal.NewFromInt(1).Div(decimal.NewFromFloat(inverse))
	}

	fiat := make(map[pricing.Currency]decimal.Decimal, len(pricing.Currencies()))
	fiat[pricing.USD] = decimal.NewFromInt(1)
	for _, currency := range pricing.Currencies() {
		if currency == pricing.USD {
			continue
		}
		if rate, ok := parsed.Rates[string(currency)]; ok && rate > 0 {
			fiat[currency] = decimal.NewFromFloat(rate)
		}
	}

	return buildTable(metalPriceAPIName, perOunce, fiat, time.Now().UTC())
}

var _ Source = (*MetalPriceAPI)(nil)
