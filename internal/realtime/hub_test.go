package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/srbio/internal/models"
)

func dial(t *testing.T, srv *httptest.Server, origin string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	hdr := http.Header{}
	if origin != "" {
		hdr.Set("Origin", origin)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestHub_BroadcastsStatusChanges(t *testing.T) {
	hub := NewHub([]string{"*"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "")
	assert.Equal(t, "hello", read(t, conn).Type)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.DeviceStatusChanged(ctx, models.StatusChange{DeviceID: "d1", Status: models.StatusOnline, At: time.Now()})

	m := read(t, conn)
	assert.Equal(t, "event", m.Type)
	assert.Equal(t, EventDeviceStatusChanged, m.Event)
	data, ok := m.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "d1", data["device_id"])
	assert.Equal(t, "online", data["status"])
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "")
	read(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://admin.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	assert.True(t, check(r), "non-browser clients send no origin")

	r.Header.Set("Origin", "https://admin.example.com")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))

	assert.True(t, originChecker([]string{"*"})(r))
}
