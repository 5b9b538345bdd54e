package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"
	defaultSendTimeout     = 10 * time.Second
)

// TelegramSenderDeps wires the dependencies required by the Telegram sender.
type TelegramSenderDeps struct {
	BotToken   string
	BaseURL    string
	HTTPClient *http.Client
}

// TelegramSender delivers messages through the Telegram Bot API.
type TelegramSender struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewTelegramSender constructs a TelegramSender validating required dependencies.
func NewTelegramSender(deps TelegramSenderDeps) (*TelegramSender, error) {
	token := strings.TrimSpace(deps.BotToken)
	if token == "" {
		return nil, errors.New("telegram sender: bot token is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultSendTimeout}
	}

	return &TelegramSender{
		token:   token,
		baseURL: baseURL,
		client:  client,
	}, nil
}

type telegramSendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramSendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Send posts one message to the given chat.
func (s *TelegramSender) Send(ctx context.Context, chatID, text string) error {
	if s == nil || s.client == nil {
		return errors.New("telegram sender: not initialised")
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return errors.New("telegram sender: chat id is required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("telegram sender: text is required")
	}

	payload, err := json.Marshal(telegramSendRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("telegram sender: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram sender: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sender: send: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	var body telegramSendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telegram sender: status %d", resp.StatusCode)
		}
		return fmt.Errorf("telegram sender: decode response: %w", err)
	}
	if !body.OK {
		return fmt.Errorf("telegram sender: api error: %s", strings.TrimSpace(body.Description))
	}
	return nil
}
