package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Omashka/circles-sub001/internal/config"
	"github.com/Omashka/circles-sub001/internal/models"
)

// Proxy backend route paths, matching the proxy's HTTP contract.
const (
	pathSummarizeVoiceNote = "/api/summarize-voice-note"
	pathProcessScreenshot  = "/api/process-screenshot"
	pathGenerateGiftIdeas  = "/api/generate-gift-ideas"
)

// proxyBackend calls the intermediary service that holds the real AI
// credential.
type proxyBackend struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ backend = (*proxyBackend)(nil)

func newProxyBackend(cfg config.Config) *proxyBackend {
	return &proxyBackend{
		baseURL: strings.TrimSuffix(cfg.ProxyBaseURL, "/"),
		token:   cfg.ProxyToken,
		client:  &http.Client{},
	}
}

func (p *proxyBackend) name() string { return "proxy" }

type summarizeVoiceNoteRequest struct {
	Transcription string `json:"transcription"`
	ContactName   string `json:"contactName,omitempty"`
}

type processScreenshotRequest struct {
	Text     string                    `json:"text"`
	Contacts []models.CandidateContact `json:"contacts,omitempty"`
}

type generateGiftIdeasRequest struct {
	ContactName string   `json:"contactName"`
	Interests   []string `json:"interests,omitempty"`
	Budget      string   `json:"budget,omitempty"`
}

func (p *proxyBackend) summarizeVoiceNote(ctx context.Context, payload models.OperationPayload) (Outcome, error) {
	body, err := p.post(ctx, pathSummarizeVoiceNote, summarizeVoiceNoteRequest{
		Transcription: payload.Text,
		ContactName:   payload.ContactName,
	})
	if err != nil {
		return Outcome{}, err
	}

	result := models.ParseSummary(string(body))
	summary := result.Summary()
	return Outcome{Summary: &summary, Degraded: result.Degraded}, nil
}

func (p *proxyBackend) processScreenshot(ctx context.Context, payload models.OperationPayload) (Outcome, error) {
	body, err := p.post(ctx, pathProcessScreenshot, processScreenshotRequest{
		Text:     payload.Text,
		Contacts: payload.Candidates,
	})
	if err != nil {
		return Outcome{}, err
	}

	shot, degraded := models.ParseScreenshotSummary(string(body))
	return Outcome{Screenshot: &shot, Degraded: degraded}, nil
}

func (p *proxyBackend) generateGiftIdeas(ctx context.Context, payload models.OperationPayload) (Outcome, error) {
	body, err := p.post(ctx, pathGenerateGiftIdeas, generateGiftIdeasRequest{
		ContactName: payload.ContactName,
		Interests:   payload.Interests,
		Budget:      payload.Budget,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Ideas: models.ParseGiftIdeas(string(body))}, nil
}

// post sends an authenticated JSON request and returns the response body.
// Non-2xx statuses are mapped onto the failure taxonomy.
func (p *proxyBackend) post(ctx context.Context, path string, reqBody any) ([]byte, error) {
	if p.token == "" {
		return nil, &Error{Code: CodeAPIKeyMissing, Msg: "proxy token not configured"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Code: CodeServerFailure, Msg: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &Error{Code: CodeServerFailure, Msg: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransport(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: CodeNetworkFailure, Msg: "read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Code: CodeUnauthorized, Status: resp.StatusCode, Msg: "token rejected by proxy"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Code: CodeRateLimited, Status: resp.StatusCode, Msg: "proxy rate limit exceeded"}
	case resp.StatusCode >= 500:
		return nil, &Error{Code: CodeServerFailure, Status: resp.StatusCode,
			Msg: fmt.Sprintf("proxy returned %d: %s", resp.StatusCode, truncateBody(body))}
	case resp.StatusCode != http.StatusOK:
		return nil, &Error{Code: CodeServerFailure, Status: resp.StatusCode,
			Msg: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncateBody(body))}
	}

	return body, nil
}

func truncateBody(b []byte) string {
	const max = 200
	s := string(b)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
