package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/slidequiz/internal/intake"
	"github.com/pavelanni/slidequiz/internal/llm/prompts"
	"github.com/pavelanni/slidequiz/internal/metrics"
	"github.com/pavelanni/slidequiz/internal/model"
)

// GenerateInput is one topic to draft questions for.
type GenerateInput struct {
	Topic    string
	Text     string
	Counts   model.TypeCounts
	Language prompts.Language
}

// GenerateOutput holds accepted questions and the items rejected at intake.
type GenerateOutput struct {
	Questions []model.Question
	Rejected  []intake.ItemError
}

// Generator turns slide text into question records.
type Generator struct {
	provider    Provider
	subject     string
	maxTokens   int
	temperature float64
}

// NewGenerator creates a Generator. Prompt templates are loaded from the
// embedded files on first use.
func NewGenerator(p Provider, subject string, maxTokens int, temperature float64) (*Generator, error) {
	if err := prompts.Load(prompts.Files); err != nil {
		return nil, err
	}
	return &Generator{provider: p, subject: subject, maxTokens: maxTokens, temperature: temperature}, nil
}

// ModelID names the underlying model.
func (g *Generator) ModelID() string {
	return g.provider.ModelID()
}

// Generate makes exactly one model call. Failures are returned as errors
// and never retried; the caller reports them as a warning for the topic.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	var out GenerateOutput
	if in.Counts.Total() <= 0 {
		return out, nil
	}

	system, user, err := prompts.Build(in.Language, prompts.Data{
		Subject:    g.subject,
		Topic:      in.Topic,
		Text:       in.Text,
		Direct:     in.Counts.Direct,
		Integrated: in.Counts.Integrated,
		CaseStudy:  in.Counts.CaseStudy,
	})
	if err != nil {
		return out, fmt.Errorf("building prompt: %w", err)
	}

	resp, err := g.provider.Generate(ctx, Request{
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: user}},
		JSON:        true,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return out, fmt.Errorf("generating questions for %q: %w", in.Topic, err)
	}

	res, err := intake.Parse(resp.Content, in.Topic)
	if err != nil {
		return out, &ErrInvalidResponse{Content: resp.Content, Err: err}
	}
	for _, rej := range res.Rejected {
		slog.Warn("rejected generated question", "topic", in.Topic, "index", rej.Index, "error", rej.Err)
	}
	metrics.QuestionsIngested.WithLabelValues("accepted").Add(float64(len(res.Questions)))
	metrics.QuestionsIngested.WithLabelValues("rejected").Add(float64(len(res.Rejected)))

	out.Questions = res.Questions
	out.Rejected = res.Rejected
	return out, nil
}
