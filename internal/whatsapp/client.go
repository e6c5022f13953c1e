// Package whatsapp é o cliente fino da API de mensagens. Falhas de envio são
// logadas pelo chamador, nunca propagadas até o webhook.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Config is parsed from the environment by envconfig.
type Config struct {
	BaseURL string `split_words:"true" required:"true"`
	Session string `split_words:"true" default:"default"`
	Timeout int    `split_words:"true" default:"30"`
}

// Client envia mensagens de texto via gateway HTTP.
type Client struct {
	baseURL    string
	session    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		session: cfg.Session,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// sendTextRequest é o payload aceito pelo gateway.
type sendTextRequest struct {
	ChatID      string `json:"chatId"`
	Text        string `json:"text"`
	LinkPreview bool   `json:"linkPreview"`
	Session     string `json:"session"`
}

// SendText delivers one text message to a chat.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	request := sendTextRequest{
		ChatID:      to,
		Text:        text,
		LinkPreview: false,
		Session:     c.session,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/sendText", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("messaging gateway returned status %d", resp.StatusCode)
	}

	log.Info().Str("to", to).Str("session", c.session).Msg("📤 Message sent")
	return nil
}
