package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketfeed/internal/aggregate"
	"marketfeed/internal/market"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeService struct {
	current   aggregate.Snapshot
	fetched   aggregate.Snapshot
	refreshes int
}

func (f *fakeService) Current() aggregate.Snapshot { return f.current }

func (f *fakeService) Latest(ctx context.Context) aggregate.Snapshot {
	if len(f.current) > 0 {
		return f.current
	}
	return f.Refresh(ctx)
}

func (f *fakeService) Refresh(context.Context) aggregate.Snapshot {
	f.refreshes++
	f.current = f.fetched
	return f.fetched
}

func fetchedSnapshot() aggregate.Snapshot {
	return aggregate.Snapshot{
		market.Nifty50: {
			Quote:          market.Quote{Current: 19450, Change: 50, ChangePercent: 0.26, Source: market.SourceSynthetic, Timestamp: 1},
			HistoricalData: []market.QuotePoint{{Timestamp: 1, Value: 19450, Change: 50, ChangePercent: 0.26}},
		},
		market.Sensex:    {HistoricalData: []market.QuotePoint{}, Error: "boom"},
		market.BankNifty: {Quote: market.Quote{Current: 44480}, HistoricalData: []market.QuotePoint{}},
	}
}

func do(r http.Handler, method, path string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSnapshot_FetchesOnFirstRequest(t *testing.T) {
	svc := &fakeService{fetched: fetchedSnapshot()}
	r := NewRouter(Options{Service: svc, Logger: zap.NewNop()})

	rr := do(r, http.MethodGet, "/api/market")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, 1, svc.refreshes)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 3)
	require.InDelta(t, 19450, got["nifty50"]["current"], 0)
	require.Len(t, got["nifty50"]["historicalData"], 1)
	require.Equal(t, "boom", got["sensex"]["error"])
	require.NotContains(t, got["bankNifty"], "error")

	rr = do(r, http.MethodGet, "/api/market")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, svc.refreshes)
}

func TestRefresh(t *testing.T) {
	svc := &fakeService{current: aggregate.Snapshot{}, fetched: fetchedSnapshot()}
	r := NewRouter(Options{Service: svc, Logger: zap.NewNop()})

	rr := do(r, http.MethodPost, "/api/market/refresh")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, svc.refreshes)
	require.Contains(t, rr.Body.String(), `"bankNifty"`)
}

func TestInstrument(t *testing.T) {
	svc := &fakeService{fetched: fetchedSnapshot()}
	r := NewRouter(Options{Service: svc, Logger: zap.NewNop()})

	rr := do(r, http.MethodGet, "/api/market/nifty50")
	require.Equal(t, http.StatusNotFound, rr.Code)

	svc.current = fetchedSnapshot()
	rr = do(r, http.MethodGet, "/api/market/BANKNIFTY")
	require.Equal(t, http.StatusOK, rr.Code)
	var e aggregate.Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	require.InDelta(t, 44480, e.Current, 0)

	rr = do(r, http.MethodGet, "/api/market/dowjones")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "unknown instrument")
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	r := NewRouter(Options{Service: &fakeService{}, Logger: zap.NewNop()})

	rr := do(r, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
	require.NotEmpty(t, rr.Header().Get(requestIDHeader))
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = do(r, http.MethodGet, "/healthz", requestIDHeader, "abc")
	require.Equal(t, "abc", rr.Header().Get(requestIDHeader))

	rr = do(r, http.MethodOptions, "/api/market/refresh")
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMiddleware_Gzip(t *testing.T) {
	svc := &fakeService{current: fetchedSnapshot()}
	r := NewRouter(Options{Service: svc, Logger: zap.NewNop()})

	rr := do(r, http.MethodGet, "/api/market", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(body), "{"))
	require.Contains(t, string(body), `"nifty50"`)
}

type panicService struct{ fakeService }

func (panicService) Refresh(context.Context) aggregate.Snapshot { panic("kaboom") }

func TestMiddleware_Recovery(t *testing.T) {
	r := NewRouter(Options{Service: &panicService{}, Logger: zap.NewNop()})

	rr := do(r, http.MethodPost, "/api/market/refresh")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "internal server error")
}

func TestOptionalMounts(t *testing.T) {
	r := NewRouter(Options{
		Service: &fakeService{},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})
	rr := do(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "# metrics", rr.Body.String())

	rr = do(r, http.MethodGet, "/ws")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
