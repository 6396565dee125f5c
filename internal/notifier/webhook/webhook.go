// Package webhook posts reports to a Discord-style webhook.
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/notifier"
	"github.com/newthinker/buddy/internal/report"
)

// Webhook implements the Notifier interface for chat webhooks
type Webhook struct {
	url      string
	username string
	headers  map[string]string
	client   *http.Client
}

// New creates a new Webhook notifier
func New(url string, headers map[string]string) *Webhook {
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Init(cfg notifier.Config) error {
	if url, ok := cfg.Params["url"].(string); ok {
		w.url = url
	}
	if username, ok := cfg.Params["username"].(string); ok {
		w.username = username
	}
	switch headers := cfg.Params["headers"].(type) {
	case map[string]string:
		w.headers = headers
	case map[string]any:
		w.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			w.headers[k] = fmt.Sprint(v)
		}
	}

	if w.url == "" {
		return fmt.Errorf("webhook: url is required")
	}

	if w.client == nil {
		w.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (w *Webhook) Send(r report.Report) error {
	return w.SendText(r.Text())
}

// SendText posts text, split to the sink's message limit.
func (w *Webhook) SendText(text string) error {
	for _, part := range report.Split(text, report.MaxMessageLength) {
		if err := w.post(message{Content: part, Username: w.username}); err != nil {
			return err
		}
	}
	return nil
}

type message struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

func (w *Webhook) post(payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrUpstreamDelivery, fmt.Errorf("webhook: request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.Errorf(core.ErrUpstreamDelivery, "webhook: server returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	return nil
}
