package sqlgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jonboulle/clockwork"

	"metricgate/internal/domain"
)

const systemPrompt = `You are a SQL formatter.
You are NOT allowed to change logic.
You MUST follow the given structure exactly and output a single SELECT statement.
Output SQL only: no explanation, no markdown.`

// AnthropicGenerator asks a Claude model to format the request as SQL. The
// model only sees the projected request and the resolved date window.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	clock     clockwork.Clock
	limit     int
	logger    *slog.Logger
}

// NewAnthropicGenerator creates an AnthropicGenerator on an existing client.
func NewAnthropicGenerator(client anthropic.Client, model string, maxTokens int64, clock clockwork.Clock, limit int, logger *slog.Logger) *AnthropicGenerator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &AnthropicGenerator{
		client:    client,
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		clock:     clock,
		limit:     limit,
		logger:    logger.With("component", "sqlgen.anthropic"),
	}
}

// GenerateSQL implements domain.TextGenerator.
func (g *AnthropicGenerator) GenerateSQL(ctx context.Context, req domain.GenerationRequest) (string, error) {
	prompt, err := g.Prompt(req)
	if err != nil {
		return "", err
	}

	start := time.Now()
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	duration := time.Since(start)
	if err != nil {
		g.logger.Error("anthropic call failed", "duration", duration, "error", err)
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	g.logger.Debug("anthropic call completed", "duration", duration, "stop_reason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return StripCodeFence(block.Text), nil
		}
	}
	return "", nil
}

// Prompt renders the formatting instructions for req.
func (g *AnthropicGenerator) Prompt(req domain.GenerationRequest) (string, error) {
	window, err := ResolveWindow(req.TimeRange, g.clock.Now())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Generate a single SELECT query with this structure:\n\n")
	fmt.Fprintf(&b, "SELECT\n  %s(%s) AS value", req.Aggregation, req.MeasureExpression)
	for _, dim := range req.GroupBy {
		fmt.Fprintf(&b, ", %s", dim)
	}
	fmt.Fprintf(&b, "\nFROM %s\n", req.FactTable)
	for _, j := range req.Joins {
		fmt.Fprintf(&b, "%s %s ON %s = %s\n", j.Type.SQL(), j.RightTable(), j.Left, j.Right)
	}
	fmt.Fprintf(&b, "WHERE %s >= '%s' AND %s < '%s'",
		req.TimeColumn, window.StartDate(), req.TimeColumn, window.EndDate())
	for _, f := range req.Filters {
		fmt.Fprintf(&b, "\n  AND %s %s %s", f.Column, f.Operator, f.Value.SQL())
	}
	if len(req.GroupBy) > 0 {
		fmt.Fprintf(&b, "\nGROUP BY %s", strings.Join(req.GroupBy, ", "))
	}
	fmt.Fprintf(&b, "\nLIMIT %d\n", g.limit)
	return b.String(), nil
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the info string, e.g. "sql"
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
