// Package server implements the proxy backend: the HTTP service that
// holds the real AI credential and performs summarization on behalf of
// clients that only carry a proxy token.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Omashka/circles-sub001/internal/ai"
	"github.com/Omashka/circles-sub001/internal/metrics"
	"github.com/Omashka/circles-sub001/internal/models"
)

const serviceName = "circles-proxy"

// Server is the proxy backend HTTP server.
type Server struct {
	gateway   ai.Gateway
	logger    *slog.Logger
	collector *metrics.Collector
	token     string
	port      string

	httpServer *http.Server
}

// New assembles the server and its middleware chain. The gateway must
// be direct-routed; a proxy that forwards to another proxy is a
// misconfiguration the caller is expected to prevent.
func New(gateway ai.Gateway, token string, port string, logger *slog.Logger, collector *metrics.Collector) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		gateway:   gateway,
		logger:    logger,
		collector: collector,
		token:     token,
		port:      port,
	}

	limiter := newRateLimiter(rateLimitWindow, rateLimitMax)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/summarize-voice-note", s.handleSummarizeVoiceNote)
	api.HandleFunc("POST /api/process-screenshot", s.handleProcessScreenshot)
	api.HandleFunc("POST /api/generate-gift-ideas", s.handleGenerateGiftIdeas)
	mux.Handle("/api/", chain(api,
		authMiddleware(token, logger),
		limiter.middleware(logger),
	))

	handler := chain(mux,
		loggingMiddleware(logger),
		recoveryMiddleware(logger),
		corsMiddleware,
	)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// chain wraps h in the given middleware, outermost first.
func chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("proxy server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down proxy server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the assembled handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.collector != nil {
		resp["uptime_seconds"] = int64(s.collector.Uptime().Seconds())
		resp["operations"] = s.collector.Snapshot().Operations
	}
	writeJSON(w, http.StatusOK, resp)
}

type summarizeVoiceNoteRequest struct {
	Transcription string `json:"transcription"`
	ContactName   string `json:"contactName"`
}

func (s *Server) handleSummarizeVoiceNote(w http.ResponseWriter, r *http.Request) {
	var req summarizeVoiceNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Transcription == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "bad_request",
			"message": "transcription is required",
		})
		return
	}

	out, err := s.gateway.Dispatch(r.Context(), models.OpVoiceSummarization, models.OperationPayload{
		Text:        req.Transcription,
		ContactName: req.ContactName,
	})
	if err != nil {
		s.writeAIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Summary)
}

type processScreenshotRequest struct {
	Text     string                    `json:"text"`
	Contacts []models.CandidateContact `json:"contacts"`
}

func (s *Server) handleProcessScreenshot(w http.ResponseWriter, r *http.Request) {
	var req processScreenshotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "bad_request",
			"message": "text is required",
		})
		return
	}

	out, err := s.gateway.Dispatch(r.Context(), models.OpScreenshotImport, models.OperationPayload{
		Text:       req.Text,
		Candidates: req.Contacts,
	})
	if err != nil {
		s.writeAIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Screenshot)
}

type generateGiftIdeasRequest struct {
	ContactName string   `json:"contactName"`
	Interests   []string `json:"interests"`
	Budget      string   `json:"budget"`
}

func (s *Server) handleGenerateGiftIdeas(w http.ResponseWriter, r *http.Request) {
	var req generateGiftIdeasRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := s.gateway.Dispatch(r.Context(), models.OpGiftIdeas, models.OperationPayload{
		ContactName: req.ContactName,
		Interests:   req.Interests,
		Budget:      req.Budget,
	})
	if err != nil {
		s.writeAIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ideas": out.Ideas})
}

// writeAIError maps the failure taxonomy onto HTTP statuses. Upstream
// rate limits surface as 429 so clients treat them as retryable.
// Credential problems on this side are server misconfiguration, not a
// client authentication failure, so they report as 500.
func (s *Server) writeAIError(w http.ResponseWriter, err error) {
	aiErr := ai.AsError(err)

	status := http.StatusBadGateway
	switch aiErr.Code {
	case ai.CodeRateLimited:
		status = http.StatusTooManyRequests
	case ai.CodeAPIKeyMissing, ai.CodeUnauthorized:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, map[string]string{
		"error":   string(aiErr.Code),
		"message": aiErr.Msg,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "bad_request",
			"message": "invalid JSON body",
		})
		return false
	}
	return true
}
