package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Omashka/circles-sub001/internal/config"
	"github.com/Omashka/circles-sub001/internal/metrics"
	"github.com/Omashka/circles-sub001/internal/models"
)

// Outcome is the normalized result of a dispatch. Exactly one of the
// result fields is populated, matching the operation kind. Degraded is
// set when the model output failed structured parsing and was replaced
// by a shape-valid default.
type Outcome struct {
	Summary    *models.AISummary
	Screenshot *models.ScreenshotSummary
	Ideas      []string
	Degraded   bool
}

// Gateway routes AI work to whichever backend is configured.
type Gateway interface {
	Dispatch(ctx context.Context, kind models.OperationKind, payload models.OperationPayload) (Outcome, error)
}

// backend is one concrete route: the proxy client or the direct provider.
type backend interface {
	summarizeVoiceNote(ctx context.Context, payload models.OperationPayload) (Outcome, error)
	processScreenshot(ctx context.Context, payload models.OperationPayload) (Outcome, error)
	generateGiftIdeas(ctx context.Context, payload models.OperationPayload) (Outcome, error)
	name() string
}

type gateway struct {
	backend   backend
	timeout   time.Duration
	logger    *slog.Logger
	collector *metrics.Collector
}

// New selects the route once at startup: the proxy backend when both a
// base URL and a token are configured, the direct provider otherwise.
func New(cfg config.Config, logger *slog.Logger, collector *metrics.Collector) Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	var b backend
	if cfg.UseProxy() {
		b = newProxyBackend(cfg)
	} else {
		b = newDirectBackend(cfg)
	}
	logger.Info("ai gateway configured", "route", b.name())

	return &gateway{
		backend:   b,
		timeout:   cfg.RequestTimeout,
		logger:    logger,
		collector: collector,
	}
}

// NewWithBackend builds a gateway around an explicit backend (tests).
func NewWithBackend(b backend, timeout time.Duration, logger *slog.Logger, collector *metrics.Collector) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	return &gateway{backend: b, timeout: timeout, logger: logger, collector: collector}
}

func (g *gateway) Dispatch(ctx context.Context, kind models.OperationKind, payload models.OperationPayload) (Outcome, error) {
	if !kind.Valid() {
		return Outcome{}, fmt.Errorf("unknown operation kind: %s", kind)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	var out Outcome
	var err error
	switch kind {
	case models.OpVoiceSummarization:
		out, err = g.backend.summarizeVoiceNote(ctx, payload)
	case models.OpScreenshotImport:
		out, err = g.backend.processScreenshot(ctx, payload)
	case models.OpGiftIdeas:
		out, err = g.backend.generateGiftIdeas(ctx, payload)
	}
	duration := time.Since(start)

	if g.collector != nil {
		g.collector.RecordTiming(metrics.OpForKind(kind), duration)
	}

	if err != nil {
		aiErr := AsError(err)
		if g.collector != nil {
			g.collector.RecordFailure(metrics.OpForKind(kind))
		}
		g.logger.Warn("ai dispatch failed",
			"kind", kind,
			"route", g.backend.name(),
			"code", aiErr.Code,
			"retryable", aiErr.Retryable(),
			"duration_ms", duration.Milliseconds())
		return Outcome{}, aiErr
	}

	g.logger.Debug("ai dispatch complete",
		"kind", kind,
		"route", g.backend.name(),
		"degraded", out.Degraded,
		"duration_ms", duration.Milliseconds())
	return out, nil
}
