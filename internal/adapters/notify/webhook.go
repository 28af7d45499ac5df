package notify

// webhook.go — alertas por webhook HTTP.
//
// POST JSON {message, level, timestamp, data} al endpoint configurado.
// Fire-and-forget: un webhook caído se loguea y nada más, las alertas
// nunca bloquean el trading.

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/snipebot/internal/ports"
)

const webhookTimeout = 10 * time.Second

// Webhook implementa ports.Notifier contra un endpoint HTTP.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook crea el notificador. La URL ya viene validada por config.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: webhookTimeout},
	}
}

type webhookPayload struct {
	Message   string         `json:"message"`
	Level     string         `json:"level"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Send entrega la alerta. Nunca devuelve error: los fallos se loguean.
func (w *Webhook) Send(ctx context.Context, message, level string, data map[string]any) {
	payload := webhookPayload{
		Message:   message,
		Level:     level,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("webhook: marshal failed", "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		slog.Warn("webhook: build request failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		slog.Warn("webhook: delivery failed", "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Warn("webhook: non-2xx response", "status", resp.StatusCode)
	}
}

// Multi repite cada alerta en varios notifiers.
type Multi struct {
	targets []ports.Notifier
}

// NewMulti agrupa notifiers.
func NewMulti(targets ...ports.Notifier) *Multi {
	return &Multi{targets: targets}
}

// Send reenvía a todos los targets.
func (m *Multi) Send(ctx context.Context, message, level string, data map[string]any) {
	for _, t := range m.targets {
		t.Send(ctx, message, level, data)
	}
}
