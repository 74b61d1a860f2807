package server

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"optionsdata/internal/insights"
	"optionsdata/internal/metrics"
	"optionsdata/internal/optionsdata"
	"optionsdata/internal/provider"
	"optionsdata/internal/provider/cache"
)

type stubProvider struct{ calls atomic.Int32 }

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Fetch(_ context.Context, contracts []string) (*provider.Batch, error) {
	s.calls.Add(1)
	qs := make([]provider.Quote, 0, len(contracts))
	for _, c := range contracts {
		qs = append(qs, provider.Quote{Contract: c, Status: provider.StatusSuccess})
	}
	return provider.Partition(qs, "STUB", time.Now()), nil
}

type failingInsights struct{}

func (failingInsights) Analyze(context.Context, insights.AnalysisRequest) (insights.Analysis, error) {
	return insights.Analysis{}, errors.New("down")
}

func (failingInsights) Learn(context.Context, insights.LearningRequest) (insights.LearningResults, error) {
	panic("boom")
}

func newTestServer(t *testing.T) (*httptest.Server, *stubProvider) {
	t.Helper()
	sp := &stubProvider{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.HTTPRequests)
	ph := insights.NewPlaceholder(1, 2)
	srv := httptest.NewServer(New(Deps{
		Options:        optionsdata.NewHandler(sp, cache.New(cache.Options{})),
		Analyzer:       ph,
		Learner:        ph,
		AllowedOrigins: []string{"*"},
		Gatherer:       reg,
	}))
	t.Cleanup(srv.Close)
	return srv, sp
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(b)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	res, body := get(t, srv.URL+"/healthz")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ok", body)
	require.NotEmpty(t, res.Header.Get("X-Request-ID"))
}

func TestOptionsDataRoute(t *testing.T) {
	srv, sp := newTestServer(t)
	res, body := get(t, srv.URL+"/options-data?contracts=SPY240315C00450000")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, body, `"cached":false`)

	_, body = get(t, srv.URL+"/options-data?contracts=SPY240315C00450000")
	require.Contains(t, body, `"cached":true`)
	require.EqualValues(t, 1, sp.calls.Load())

	res, _ = get(t, srv.URL+"/options-data/summary?contracts=SPY240315C00450000")
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, "abc-123", res.Header.Get("X-Request-ID"))
}

func TestPreflightAnyPath(t *testing.T) {
	srv, sp := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/options-data", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, b)
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	require.EqualValues(t, 0, sp.calls.Load())
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	res, body := get(t, srv.URL+"/nope")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Contains(t, body, `"success":false`)

	res, err := http.Post(srv.URL+"/options-data", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func post(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(b)
}

func TestAnalysis(t *testing.T) {
	srv, _ := newTestServer(t)
	res, body := post(t, srv.URL+"/ml-analysis", `{"trades":[{"symbol":"SPY"}],"marketData":{"vix":14}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp struct {
		Success  bool           `json:"success"`
		Analysis map[string]any `json:"analysis"`
		Extra    map[string]any `json:"data"`
		Stamp    time.Time      `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.True(t, resp.Success)
	require.Nil(t, resp.Extra)
	require.False(t, resp.Stamp.IsZero())
	for _, k := range []string{"riskScore", "recommendation", "confidence", "factors"} {
		require.Contains(t, resp.Analysis, k)
	}

	res, body = post(t, srv.URL+"/ml-analysis", `{bad`)
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	require.Contains(t, body, `"success":false`)

	res, _ = get(t, srv.URL+"/ml-analysis")
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestLearning(t *testing.T) {
	srv, _ := newTestServer(t)
	res, body := post(t, srv.URL+"/ml-learning", `{"trades":[]}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp struct {
		Success bool           `json:"success"`
		Results map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.True(t, resp.Success)
	for _, k := range []string{"patternsFound", "accuracy", "recommendations"} {
		require.Contains(t, resp.Results, k)
	}

	res, _ = get(t, srv.URL+"/ml-learning")
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestInsightsFailures(t *testing.T) {
	h := New(Deps{
		Options:  optionsdata.NewHandler(&stubProvider{}, cache.New(cache.Options{})),
		Analyzer: failingInsights{},
		Learner:  failingInsights{},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ml-analysis", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "down")

	// a panicking handler still yields JSON with CORS headers
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ml-learning", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "Internal server error")
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestGzip(t *testing.T) {
	srv, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/ml-learning", strings.NewReader(`{"trades":[]}`))
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	res, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
	zr, err := gzip.NewReader(res.Body)
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(b), `"success":true`)
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	get(t, srv.URL+"/healthz")
	res, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, body, "options_http_requests_total")
}
