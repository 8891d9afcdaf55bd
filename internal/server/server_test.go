package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozercan/siteinsight/apimodels"
	"github.com/sozercan/siteinsight/internal/config"
	"github.com/sozercan/siteinsight/internal/core"
	"github.com/sozercan/siteinsight/internal/logger"
	"github.com/sozercan/siteinsight/internal/metrics"
)

type stubRouter struct {
	resp apimodels.FusedResponse
	got  core.Query
}

func (s *stubRouter) Route(ctx context.Context, q core.Query) apimodels.FusedResponse {
	s.got = q
	return s.resp
}

func newTestServer(t *testing.T, router Router) http.Handler {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveQuery("analytics", "success")
	return New(config.Config{}, router, reg, logger.NewTestLogger(t)).Handler()
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleQuery(t *testing.T) {
	router := &stubRouter{resp: apimodels.FusedResponse{Status: apimodels.StatusSuccess, Summary: "ok"}}
	h := newTestServer(t, router)

	rec := post(t, h, `{"query":"  Show me users from last week ","propertyId":"123","checks":["https"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Show me users from last week", router.got.RawText)
	assert.Equal(t, "123", router.got.PropertyID)
	assert.Equal(t, []string{"https"}, router.got.Checks)
	assert.False(t, router.got.RequestedAt.IsZero())

	var resp apimodels.FusedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Summary)
	assert.NotEmpty(t, resp.Metadata.RequestID)
	assert.Equal(t, resp.Metadata.RequestID, rec.Header().Get("X-Request-Id"))
}

func TestHandleQueryStatusCodes(t *testing.T) {
	validation := &core.ErrorDescriptor{Kind: core.KindValidation}
	auth := &core.ErrorDescriptor{Kind: core.KindAuth}

	tests := []struct {
		name string
		resp apimodels.FusedResponse
		want int
	}{
		{"partial", apimodels.FusedResponse{Status: apimodels.StatusPartial, Errors: []*core.ErrorDescriptor{auth}}, http.StatusOK},
		{"validation only", apimodels.FusedResponse{Status: apimodels.StatusError, Errors: []*core.ErrorDescriptor{validation}}, http.StatusUnprocessableEntity},
		{"upstream", apimodels.FusedResponse{Status: apimodels.StatusError, Errors: []*core.ErrorDescriptor{validation, auth}}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, newTestServer(t, &stubRouter{resp: tt.resp}), `{"query":"x"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleQueryRejectsBadRequests(t *testing.T) {
	h := newTestServer(t, &stubRouter{})

	rec := post(t, h, `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "query must not be empty")
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, &stubRouter{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "siteinsight_queries_total")
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestServer(t, &stubRouter{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}
