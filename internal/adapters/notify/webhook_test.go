package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/snipebot/internal/adapters/notify"
	"github.com/alejandrodnm/snipebot/internal/ports"
)

func TestWebhook_Send(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
	}))
	defer srv.Close()

	wh := notify.NewWebhook(srv.URL)
	wh.Send(context.Background(), "Position opened: TKN", ports.LevelInfo, map[string]any{
		"pnl_eth": 1.5,
	})

	require.NotNil(t, received)
	assert.Equal(t, "Position opened: TKN", received["message"])
	assert.Equal(t, "INFO", received["level"])
	assert.NotEmpty(t, received["timestamp"])
	data := received["data"].(map[string]any)
	assert.Equal(t, 1.5, data["pnl_eth"])
}

func TestWebhook_SendSwallowsFailures(t *testing.T) {
	// Endpoint muerto: Send no debe panicar ni devolver nada.
	wh := notify.NewWebhook("http://127.0.0.1:1/unreachable")
	wh.Send(context.Background(), "msg", ports.LevelError, nil)
}

func TestConsole_Send(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.Send(context.Background(), "Honeypot detected", ports.LevelWarning, map[string]any{
		"token": "0xdead",
	})

	out := buf.String()
	assert.Contains(t, out, "Honeypot detected")
	assert.Contains(t, out, "WARNING")
	assert.Contains(t, out, "token=0xdead")
}

func TestMulti_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := notify.NewMulti(notify.NewConsoleWriter(&a), notify.NewConsoleWriter(&b))

	m.Send(context.Background(), "msg", ports.LevelInfo, nil)

	assert.Contains(t, a.String(), "msg")
	assert.Contains(t, b.String(), "msg")
}
