package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/notifier"
	"github.com/newthinker/buddy/internal/report"
)

const (
	defaultAPIURL = "https://api.telegram.org"
	maxLength     = 4096
)

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiURL:   defaultAPIURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	switch chatID := cfg.Params["chat_id"].(type) {
	case string:
		t.chatID = chatID
	case int, int64, float64:
		t.chatID = fmt.Sprint(chatID)
	}
	if apiURL, ok := cfg.Params["api_url"].(string); ok && apiURL != "" {
		t.apiURL = strings.TrimRight(apiURL, "/")
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.apiURL == "" {
		t.apiURL = defaultAPIURL
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (t *Telegram) Send(r report.Report) error {
	return t.SendText(t.formatReport(r))
}

func (t *Telegram) SendText(text string) error {
	for _, part := range report.Split(text, maxLength) {
		if err := t.sendMessage(part); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) formatReport(r report.Report) string {
	var sb strings.Builder

	// Action emoji
	actionEmoji := "⏸️"
	if r.LastSignal.IsBuy() {
		actionEmoji = "📈"
	} else if r.LastSignal.IsSell() {
		actionEmoji = "📉"
	}

	sb.WriteString(fmt.Sprintf("%s %s (%s) - %s\n", actionEmoji, r.Ticker, r.Name, r.LastSignal.Label()))
	sb.WriteString(fmt.Sprintf("📊 Rate: %s %%\n", report.Amount(r.Rate)))
	sb.WriteString(fmt.Sprintf("💵 Invested: %s $\n", report.Amount(r.Invested)))
	sb.WriteString(fmt.Sprintf("💰 Balance: %s $\n", report.Amount(r.Balance)))

	if r.Strategy != "" {
		sb.WriteString(fmt.Sprintf("🎯 Strategy: %s\n", r.Strategy))
	}

	if b := r.Benchmark; b != nil {
		sb.WriteString(fmt.Sprintf("⚖️ %s: %s %%, %s $\n", b.Ticker, report.Amount(b.Rate), report.Amount(b.Balance)))
	}

	if !r.End.IsZero() {
		sb.WriteString(fmt.Sprintf("⏰ Period: %s ~ %s", r.MinDataDate.Format(time.DateOnly), r.End.Format(time.DateOnly)))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func (t *Telegram) sendMessage(text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken)

	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return core.WrapError(core.ErrUpstreamDelivery, fmt.Errorf("telegram: failed to send message: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return core.Errorf(core.ErrUpstreamDelivery, "telegram: API error (status %d): %v", resp.StatusCode, result["description"])
	}

	return nil
}
