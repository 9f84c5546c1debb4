package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

const goldAPIName = "goldapi"

// GoldAPIOptions parameterise the goldapi.io adapter.
type GoldAPIOptions struct {
	BaseURL   string
	APIKey    string
	UserAgent string
}

// GoldAPI fetches spot prices from goldapi.io, one request per metal.
// Auth is a token in the x-access-token header.
type GoldAPI struct {
	opts    GoldAPIOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewGoldAPI constructs the goldapi.io adapter.
func NewGoldAPI(opts GoldAPIOptions, logger zerolog.Logger) *GoldAPI {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.goldapi.io/api"
	}
	return &GoldAPI{
		opts:    opts,
		logger:  logger.With().Str("component", "goldapi_source").Logger(),
		client:  &http.Client{},
		baseURL: baseURL,
	}
}

// Name identifies the adapter in quote source tags.
func (g *GoldAPI) Name() string { return goldAPIName }

// Available reports whether an API key was configured.
func (g *GoldAPI) Available() bool { return g.opts.APIKey != "" }

type goldAPIResponse struct {
	Price     float64 `json:"price"`
	PriceGram float64 `json:"price_gram_24k"`
	Currency  string  `json:"currency"`
	Metal     string  `json:"metal"`
	Error     string  `json:"error"`
}

// Fetch retrieves XAU/USD and XAG/USD and normalises them to a full table.
func (g *GoldAPI) Fetch(ctx context.Context) (pricing.PriceTable, error) {
	if !g.Available() {
		return pricing.PriceTable{}, fmt.Errorf("%s: api key not configured", goldAPIName)
	}

	perOunce := make(map[pricing.Metal]decimal.Decimal, len(pricing.Metals()))
	for _, metal := range pricing.Metals() {
		price, err := g.fetchMetal(ctx, metal)
		if err != nil {
			return pricing.PriceTable{}, err
		}
		perOunce[metal] = price
	}

	return buildTable(goldAPIName, perOunce, nil, time.Now().UTC())
}

func (g *GoldAPI) fetchMetal(ctx context.Context, metal pricing.Metal) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/%s/USD", g.baseURL, metal.Symbol())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-access-token", g.opts.APIKey)
	if ua := strings.TrimSpace(g.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", goldAPIName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: read body: %w", goldAPIName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("%s: status %d: %s", goldAPIName, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed goldAPIResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: decode: %w", goldAPIName, err)
	}
	if parsed.Error != "" {
		return decimal.Decimal{}, fmt.Errorf("%s: api error: %s", goldAPIName, parsed.Error)
	}
	if parsed.Price <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%s: non-positive %s price %f", goldAPIName, metal, parsed.Price)
	}

	return decimal.NewFromFloat(parsed.Price), nil
}

var _ Source = (*GoldAPI)(nil)
