package llm

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pavelanni/slidequiz/internal/metrics"
)

type loggingProvider struct {
	inner Provider
}

// WithLogging logs every call with slog and records it in the LLM metrics.
func WithLogging(p Provider) Provider {
	return &loggingProvider{inner: p}
}

func (l *loggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	model := l.inner.ModelID()
	metrics.LLMDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	if err != nil {
		metrics.LLMRequests.WithLabelValues(model, "error").Inc()
		slog.Warn("LLM request failed", "model", model, "duration", elapsed, "error", err)
		return nil, err
	}
	metrics.LLMRequests.WithLabelValues(model, "ok").Inc()
	slog.Info("LLM request",
		"model", resp.Model,
		"duration", elapsed,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

func (l *loggingProvider) ModelID() string {
	return l.inner.ModelID()
}

type rateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// WithRateLimit allows at most perMinute calls per minute with the given
// burst. Callers wait for a token until their context ends.
func WithRateLimit(p Provider, perMinute float64, burst int) Provider {
	if perMinute <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedProvider{
		inner:   p,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), burst),
	}
}

func (r *rateLimitedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &ErrRateLimit{Err: err}
	}
	return r.inner.Generate(ctx, req)
}

func (r *rateLimitedProvider) ModelID() string {
	return r.inner.ModelID()
}
