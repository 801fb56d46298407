package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"packtrack/internal/config"
)

// Webhook posts alerts to a chat webhook. The payload carries both a
// "content" field (Discord) and a "text" field (Slack) so one URL setting
// works for either service.
type Webhook struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type webhookPayload struct {
	Content string `json:"content"`
	Text    string `json:"text"`
}

func NewWebhook(cfg config.Config) *Webhook {
	return &Webhook{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.WebhookTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.WebhookRateLimitRPS),
	}
}

func (w *Webhook) Enabled() bool {
	return w.cfg.WebhookEnabled && strings.TrimSpace(w.cfg.WebhookURL) != ""
}

// PriorityReceived announces a priority package hitting the scan lane.
func (w *Webhook) PriorityReceived(tracking, itemName string, quantity int) error {
	msg := fmt.Sprintf("PRIORITY package received: %s (%s) x%d", itemName, tracking, quantity)
	return w.Send(msg)
}

// PastDueDigest announces how many packages slipped past their expected date.
func (w *Webhook) PastDueDigest(count int) error {
	if count <= 0 {
		return nil
	}
	msg := fmt.Sprintf("%d package(s) are past due", count)
	return w.Send(msg)
}

func (w *Webhook) Send(message string) error {
	if !w.Enabled() {
		return nil
	}

	body, err := json.Marshal(webhookPayload{Content: message, Text: message})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		w.limiter.WaitTurn()

		req, err := http.NewRequest(http.MethodPost, w.cfg.WebhookURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 3 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("webhook status %d", resp.StatusCode)
				continue
			}
			return fmt.Errorf("webhook error: status=%d body=%s", resp.StatusCode, string(respBody))
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("webhook request failed")
	}
	return lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
