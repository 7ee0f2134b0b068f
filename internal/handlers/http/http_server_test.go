package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapStreamApp/internal/domain/model"
	httpserver "swapStreamApp/internal/handlers/http"
	ws "swapStreamApp/internal/handlers/websocket"
	"swapStreamApp/internal/lib/logger/handlers/slogdiscard"
)

type stubFeed struct {
	broadcaster *ws.WebSocketBroadcaster
}

func (f *stubFeed) Handler() http.HandlerFunc { return f.broadcaster.Handler() }

func (f *stubFeed) Stats() *model.BridgeStats {
	return &model.BridgeStats{
		Feed:          "base",
		ConsumerState: "CONSUMING",
		Subscribers:   f.broadcaster.SubscriberCount(),
		Consumed:      7,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *ws.WebSocketBroadcaster) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slogdiscard.NewDiscardLogger()
	broadcaster := ws.NewWebSocketBroadcaster("Base swaps", 8, log)
	srv := httpserver.NewServer(":0", &stubFeed{broadcaster: broadcaster}, log)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		broadcaster.Close()
		ts.Close()
	})
	return ts, broadcaster
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_StatsAndWebSocket(t *testing.T) {
	ts, broadcaster := newTestServer(t)

	for _, path := range []string{"/", "/ws"} {
		conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+path, nil)
		require.NoError(t, err, path)
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var control model.ControlMessage
		require.NoError(t, json.Unmarshal(data, &control))
		assert.Equal(t, "WebSocket connected to Base swaps stream", control.Message)
	}
	require.Eventually(t, func() bool { return broadcaster.SubscriberCount() == 2 }, time.Second, 5*time.Millisecond)

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats model.BridgeStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "base", stats.Feed)
	assert.Equal(t, 2, stats.Subscribers)
	assert.Equal(t, uint64(7), stats.Consumed)
}

func TestServer_PlainGetOnRootIsRejected(t *testing.T) {
	ts, broadcaster := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, broadcaster.SubscriberCount())
}
