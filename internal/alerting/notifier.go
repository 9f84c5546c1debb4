package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/metrics"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

// Notification is a decided alert, ready for a delivery sink.
type Notification struct {
	Category  string
	Title     string
	Body      string
	Metal     pricing.Metal
	Currency  pricing.Currency
	ChangePct decimal.Decimal
	Direction pricing.Direction
}

// Notifier delivers notifications. Implementations report delivery failures as
// errors; callers log and swallow them.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Dispatch sends a notification best-effort. Delivery failures are logged and
// consumed; the policy decision stands either way. A nil notifier means no
// sink is configured (the platform permission was never granted).
func Dispatch(ctx context.Context, notifier Notifier, note Notification, logger zerolog.Logger) {
	metrics.AlertsFired.WithLabelValues(note.Category).Inc()

	if notifier == nil {
		logger.Debug().Str("category", note.Category).Msg("no notifier configured, alert decision recorded without delivery")
		return
	}
	if err := notifier.Notify(ctx, note); err != nil {
		logger.Error().Err(err).Str("category", note.Category).Msg("failed to deliver notification")
	}
}

// TelegramNotifier pushes notifications through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram delivery sink.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the notification text via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("category", note.Category).
		Str("title", note.Title).
		Msg("notification delivered (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Rizq Trackr] ")
	builder.WriteString(note.Title)
	builder.WriteString("\n")
	builder.WriteString(note.Body)
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
