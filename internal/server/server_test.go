package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omashka/circles-sub001/internal/ai"
	"github.com/Omashka/circles-sub001/internal/metrics"
	"github.com/Omashka/circles-sub001/internal/models"
)

const testToken = "secret-token-long-enough"

type stubGateway struct {
	err   error
	panic bool
}

func (g *stubGateway) Dispatch(_ context.Context, kind models.OperationKind, payload models.OperationPayload) (ai.Outcome, error) {
	if g.panic {
		panic("boom")
	}
	if g.err != nil {
		return ai.Outcome{}, g.err
	}
	switch kind {
	case models.OpVoiceSummarization:
		summary := models.EmptySummary("summarized: " + payload.Text)
		return ai.Outcome{Summary: &summary}, nil
	case models.OpScreenshotImport:
		shot := models.ScreenshotSummary{AISummary: models.EmptySummary("shot"), Confidence: 0.9}
		return ai.Outcome{Screenshot: &shot}, nil
	case models.OpGiftIdeas:
		return ai.Outcome{Ideas: []string{"chess set"}}, nil
	}
	return ai.Outcome{}, fmt.Errorf("unexpected kind %s", kind)
}

func testServer(t *testing.T, gw ai.Gateway) *Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	return New(gw, testToken, "0", logger, metrics.NewCollector())
}

func postJSON(t *testing.T, handler http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthNoAuthRequired(t *testing.T) {
	srv := testServer(t, &stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, serviceName, body["service"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Contains(t, body, "uptime_seconds")
}

func TestAuthRejections(t *testing.T) {
	srv := testServer(t, &stubGateway{})
	payload := map[string]string{"transcription": "hello"}

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"short token", "short"},
		{"wrong token", "wrong-token-long-enough"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, srv.Handler(), "/api/summarize-voice-note", tt.token, payload)
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "unauthorized", body["error"])
		})
	}
}

func TestSummarizeVoiceNote(t *testing.T) {
	srv := testServer(t, &stubGateway{})

	rec := postJSON(t, srv.Handler(), "/api/summarize-voice-note", testToken,
		map[string]string{"transcription": "met sarah for coffee"})
	require.Equal(t, http.StatusOK, rec.Code)

	// The response body must parse back through the client-side decoder.
	result := models.ParseSummary(rec.Body.String())
	require.False(t, result.Degraded)
	assert.Equal(t, "summarized: met sarah for coffee", result.Summary().Summary)
}

func TestSummarizeVoiceNoteValidation(t *testing.T) {
	srv := testServer(t, &stubGateway{})

	rec := postJSON(t, srv.Handler(), "/api/summarize-voice-note", testToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateGiftIdeas(t *testing.T) {
	srv := testServer(t, &stubGateway{})

	rec := postJSON(t, srv.Handler(), "/api/generate-gift-ideas", testToken,
		map[string]any{"contactName": "Sarah", "interests": []string{"chess"}})
	require.Equal(t, http.StatusOK, rec.Code)

	ideas := models.ParseGiftIdeas(rec.Body.String())
	assert.Equal(t, []string{"chess set"}, ideas)
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t, &stubGateway{})

	req := httptest.NewRequest(http.MethodOptions, "/api/summarize-voice-note", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORSOnRegularResponses(t *testing.T) {
	srv := testServer(t, &stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitPerIP(t *testing.T) {
	srv := testServer(t, &stubGateway{})
	payload := map[string]string{"transcription": "hello"}

	for i := 0; i < rateLimitMax; i++ {
		rec := postJSON(t, srv.Handler(), "/api/summarize-voice-note", testToken, payload)
		require.Equal(t, http.StatusOK, rec.Code, "request %d within the limit", i+1)
	}

	rec := postJSON(t, srv.Handler(), "/api/summarize-voice-note", testToken, payload)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body["error"])
}

func TestRateLimitSeparatePerIP(t *testing.T) {
	limiter := newRateLimiter(rateLimitWindow, 2)

	require.True(t, limiter.allow("10.0.0.1"))
	require.True(t, limiter.allow("10.0.0.1"))
	require.False(t, limiter.allow("10.0.0.1"))

	// A different client is unaffected.
	assert.True(t, limiter.allow("10.0.0.2"))
}

func TestRateLimitWindowSlides(t *testing.T) {
	limiter := newRateLimiter(rateLimitWindow, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	require.True(t, limiter.allow("10.0.0.1"))
	require.False(t, limiter.allow("10.0.0.1"))

	// Once the first hit ages out of the rolling window, capacity returns.
	now = now.Add(rateLimitWindow + time.Second)
	assert.True(t, limiter.allow("10.0.0.1"))
}

func TestPanicRecovery(t *testing.T) {
	srv := testServer(t, &stubGateway{panic: true})

	rec := postJSON(t, srv.Handler(), "/api/summarize-voice-note", testToken,
		map[string]string{"transcription": "hello"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestUpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        *ai.Error
		wantStatus int
	}{
		{"rate limited upstream", &ai.Error{Code: ai.CodeRateLimited, Msg: "quota"}, http.StatusTooManyRequests},
		{"server failure upstream", &ai.Error{Code: ai.CodeServerFailure, Msg: "upstream 503"}, http.StatusBadGateway},
		{"network failure upstream", &ai.Error{Code: ai.CodeNetworkFailure, Msg: "timeout"}, http.StatusBadGateway},
		{"missing provider key", &ai.Error{Code: ai.CodeAPIKeyMissing, Msg: "no key"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, &stubGateway{err: tt.err})
			rec := postJSON(t, srv.Handler(), "/api/summarize-voice-note", testToken,
				map[string]string{"transcription": "hello"})
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
