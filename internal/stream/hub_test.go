package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketfeed/internal/aggregate"
	"marketfeed/internal/market"
	"marketfeed/internal/observability"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) map[string]aggregate.Entry {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]aggregate.Entry
	require.NoError(t, json.Unmarshal(msg, &out))
	return out
}

func snap(v float64) aggregate.Snapshot {
	return aggregate.Snapshot{market.Sensex: {Quote: market.Quote{Current: v}, HistoricalData: []market.QuotePoint{}}}
}

func TestHub_SendsLastSnapshotOnConnect(t *testing.T) {
	t.Parallel()

	h := NewHub(zap.NewNop(), nil)
	require.NoError(t, h.Publish(t.Context(), snap(65250)))

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv)
	got := readSnapshot(t, conn)
	require.InDelta(t, 65250, got["sensex"].Current, 0)
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	t.Parallel()

	m := observability.NewMetrics("")
	h := NewHub(zap.NewNop(), m)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 2 }, time.Second, 5*time.Millisecond)
	require.InDelta(t, 2, testutil.ToFloat64(m.StreamClients), 0)

	require.NoError(t, h.Publish(t.Context(), snap(1)))
	require.InDelta(t, 1, readSnapshot(t, a)["sensex"].Current, 0)
	require.InDelta(t, 1, readSnapshot(t, b)["sensex"].Current, 0)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.InDelta(t, 1, testutil.ToFloat64(m.StreamClients), 0)
}

func TestHub_DropsSlowClient(t *testing.T) {
	t.Parallel()

	h := NewHub(zap.NewNop(), nil)
	c := &client{id: "slow", send: make(chan []byte, sendBuffer)}
	h.clients[c] = struct{}{}

	for i := 0; i <= sendBuffer; i++ {
		require.NoError(t, h.Publish(t.Context(), snap(float64(i))))
	}
	require.Zero(t, h.Clients())
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	h := NewHub(zap.NewNop(), nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	h.Close()
	require.Zero(t, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
