package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcn/conceptdeps/internal/conceptservice"
	"github.com/upcn/conceptdeps/internal/corpus"
	"github.com/upcn/conceptdeps/internal/depindex"
	"github.com/upcn/conceptdeps/internal/formula"
	"github.com/upcn/conceptdeps/internal/httpapi"
	"github.com/upcn/conceptdeps/internal/patterns"
	"github.com/upcn/conceptdeps/internal/payroll"
)

type stubAggregator struct {
	lines []payroll.Line
	err   error
}

func (s *stubAggregator) Aggregate(_ context.Context, _ payroll.Query) ([]payroll.Line, error) {
	return s.lines, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, concepts ...corpus.Concept) *httptest.Server {
	t.Helper()
	mem := corpus.NewMemory(concepts...)
	parser := formula.New(patterns.New())
	idx := depindex.New(mem, parser, discardLogger())
	require.NoError(t, idx.Build(t.Context()))

	svc := conceptservice.New(mem, parser, idx)
	agg := &stubAggregator{}
	srv := httpapi.New(svc, agg, "*", discardLogger())
	return httptest.NewServer(srv.Handler())
}

func TestHandleList(t *testing.T) {
	ts := newTestServer(t, corpus.Concept{
		Code: "0100", Description: "test concept", Classification: corpus.Definitive,
	})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/conceptos")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var summaries []conceptservice.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "0100", summaries[0].Code)
}

func TestHandleDetail_NotFound(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/conceptos/9999")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleRange_BadRequestOnUnparseableBounds(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/conceptos/rango/abc/0100")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleBatch_SkipsUnknownCodes(t *testing.T) {
	ts := newTestServer(t, corpus.Concept{
		Code: "0100", Description: "known", Classification: corpus.Definitive,
	})
	defer ts.Close()

	body, err := json.Marshal([]string{"0100", "9999"})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/conceptos/batch", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var details []conceptservice.Detail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&details))
	require.Len(t, details, 1)
	assert.Equal(t, "0100", details[0].Code)
}

func TestHandleCacheStats(t *testing.T) {
	ts := newTestServer(t, corpus.Concept{
		Code: "0100", Description: "known", Classification: corpus.Definitive,
	})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/conceptos/cache/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stats depindex.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.True(t, stats.Ready)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/conceptos", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
