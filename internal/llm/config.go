package llm

import (
	"context"
	"fmt"
	"time"
)

// Config selects and configures a provider.
type Config struct {
	Provider string // openai, anthropic, gemini, mock
	URL      string // OpenAI-compatible base URL
	APIKey   string
	Model    string

	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// RatePerMinute caps outgoing calls; zero disables the limiter.
	RatePerMinute float64
	Burst         int
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		URL:         "http://localhost:11434/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   4096,
		Temperature: 0.4,
		Timeout:     2 * time.Minute,
		Burst:       1,
	}
}

// NewProvider builds the configured provider wrapped as
// caller -> rate limit -> logging -> provider.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	var base Provider
	var err error
	switch cfg.Provider {
	case "", "openai":
		base = NewOpenAI(cfg.URL, cfg.APIKey, cfg.Model)
	case "anthropic":
		base, err = NewAnthropic(cfg.APIKey, cfg.Model)
	case "gemini":
		base, err = NewGemini(ctx, cfg.APIKey, cfg.Model)
	case "mock":
		m := NewMockProvider()
		m.Fallback = DemoQuestions
		base = m
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}
	return WithRateLimit(WithLogging(base), cfg.RatePerMinute, cfg.Burst), nil
}
