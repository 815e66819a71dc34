// Package notify posts pending completed-works summaries to a chat webhook
// (Discord-compatible {"content": ...} payload).
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/obras/report"
)

var (
	ErrNoURL       = errors.New("notify: webhook url not configured")
	ErrNonePending = errors.New("notify: no pending records")
)

// ErrSendFailed is returned when the webhook did not accept the message.
type ErrSendFailed struct {
	Status int
	Cause  error
}

func (e *ErrSendFailed) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("notify: webhook returned %d", e.Status)
	}
	return fmt.Sprintf("notify: send failed: %v", e.Cause)
}

func (e *ErrSendFailed) Unwrap() error { return e.Cause }

// Config configures a Webhook.
type Config struct {
	URL string `yaml:"url"`

	// Secret, when set, signs each payload in X-Signature-256 (hex HMAC-SHA256).
	Secret string `yaml:"secret"`

	// MaxLines caps the listed items (default 15); the rest are counted.
	MaxLines int `yaml:"max_lines"`

	// Title heads the message.
	Title string `yaml:"title"`

	Timeout time.Duration `yaml:"timeout"`

	Client *http.Client `yaml:"-"`
	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxLines <= 0 {
		c.MaxLines = 15
	}
	if c.Title == "" {
		c.Title = "**Pendências detectadas no painel Concluídas**"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Webhook delivers notifications.
type Webhook struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Webhook.
func New(cfg Config) *Webhook {
	cfg.defaults()
	return &Webhook{cfg: cfg, logger: cfg.Logger}
}

// Message renders the notification body for items.
func (w *Webhook) Message(items []report.PendingItem) string {
	lines := []string{w.cfg.Title}
	for i, it := range items {
		if i == w.cfg.MaxLines {
			lines = append(lines, fmt.Sprintf("... e %d registros extras", len(items)-w.cfg.MaxLines))
			break
		}
		lines = append(lines, it.String())
	}
	return strings.Join(lines, "\n")
}

// NotifyPending posts the pending items.
func (w *Webhook) NotifyPending(ctx context.Context, items []report.PendingItem) error {
	if len(items) == 0 {
		return ErrNonePending
	}
	if w.cfg.URL == "" {
		return ErrNoURL
	}

	body, err := json.Marshal(map[string]string{"content": w.Message(items)})
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(w.cfg.Secret))
		mac.Write(body)
		req.Header.Set("X-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.cfg.Client.Do(req)
	if err != nil {
		return &ErrSendFailed{Cause: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ErrSendFailed{Status: resp.StatusCode}
	}
	w.logger.Info("pending notification sent", "items", len(items))
	return nil
}
