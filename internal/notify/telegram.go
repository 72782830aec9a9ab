package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Relay pushes a text message to an external messaging channel.
type Relay interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TelegramRelay sends messages through the Telegram Bot API.
type TelegramRelay struct {
	botToken string
	baseURL  string
	client   *http.Client
}

// NewTelegramRelay creates a relay for the given bot token.
func NewTelegramRelay(botToken string) *TelegramRelay {
	return &TelegramRelay{
		botToken: botToken,
		baseURL:  "https://api.telegram.org",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one sendMessage call and reports any transport or API failure.
func (r *TelegramRelay) Send(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", r.baseURL, r.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("telegram API status %d: %s", resp.StatusCode, apiErr.Description)
	}
	return nil
}
