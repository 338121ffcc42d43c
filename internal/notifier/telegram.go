package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const telegramAPI = "https://api.telegram.org"

// ErrNotConfigured is returned when a send is attempted without a token or chat.
var ErrNotConfigured = errors.New("telegram not configured")

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string

	client     *resty.Client
	pollClient *resty.Client
	logger     *zap.Logger
	backoff    time.Duration // first retry delay, doubled per attempt
	pollPause  time.Duration // wait after a failed poll
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().SetBaseURL(telegramAPI).SetTimeout(30 * time.Second)
	// long polls hold the request for up to 30s server side
	pollClient := resty.New().SetBaseURL(telegramAPI).SetTimeout(35 * time.Second)
	if proxyURL != "" {
		client.SetProxy(proxyURL)
		pollClient.SetProxy(proxyURL)
	}
	return &TelegramNotifier{
		BotToken:   botToken,
		ChatID:     chatID,
		client:     client,
		pollClient: pollClient,
		logger:     logger,
		backoff:    time.Second,
		pollPause:  5 * time.Second,
	}
}

// SetAPIBase points the notifier at another Bot API host.
func (t *TelegramNotifier) SetAPIBase(base string) {
	t.client.SetBaseURL(base)
	t.pollClient.SetBaseURL(base)
}

func (t *TelegramNotifier) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	if !t.Configured() {
		return ErrNotConfigured
	}
	var out apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.ChatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post("/bot" + t.BotToken + "/sendMessage")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	_ = json.Unmarshal(resp.Body(), &out)
	if resp.StatusCode() != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram API error: status %d, description: %s", resp.StatusCode(), out.Description)
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotConfigured) {
			return err
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := t.backoff * time.Duration(1<<uint(i))
		t.logger.Warn("telegram send failed, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}
