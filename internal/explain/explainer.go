// Package explain generates optional natural-language explanations for
// advisor output through an OpenAI-compatible API. It sits strictly off the
// decision path: explanations decorate responses, and any failure degrades
// to deterministic fallback text instead of an error.
package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/pkg/config"
)

const systemPrompt = "You are an expert PostgreSQL DBA. Explain findings " +
	"precisely and concisely for an engineer operating the database. " +
	"Structure: what it means, why it matters, recommended action, risks."

// Explainer talks to a configurable OpenAI-compatible endpoint. A nil
// client means the explainer is disabled and every method returns its
// fallback immediately.
type Explainer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an explainer from configuration. Without an API key the
// explainer is disabled, which is a supported mode, not an error.
func New(cfg *config.ExplainerConfig, logger *slog.Logger) *Explainer {
	e := &Explainer{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "explainer"),
	}
	if cfg.APIKey == "" {
		e.logger.Info("explainer disabled: no API key configured")
		return e
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	e.client = openai.NewClientWithConfig(clientConfig)
	e.logger.Info("explainer enabled", "model", cfg.Model, "base_url", cfg.BaseURL)
	return e
}

// Enabled reports whether explanations are generated at all.
func (e *Explainer) Enabled() bool {
	return e.client != nil
}

// ExplainSignal explains one detected signal.
func (e *Explainer) ExplainSignal(ctx context.Context, s *models.Signal) string {
	fallback := s.Description
	var b strings.Builder
	fmt.Fprintf(&b, "Explain this PostgreSQL monitoring signal.\n\n")
	fmt.Fprintf(&b, "Type: %s\nSeverity: %s\nTable: %s\nDescription: %s\n",
		s.Type, s.Severity, s.Table, s.Description)
	if len(s.Details) > 0 {
		fmt.Fprintf(&b, "Details: %v\n", s.Details)
	}
	return e.ask(ctx, b.String(), fallback)
}

// ExplainProposal explains one synthesized proposal.
func (e *Explainer) ExplainProposal(ctx context.Context, p *models.Proposal) string {
	fallback := p.Justification
	var b strings.Builder
	fmt.Fprintf(&b, "Explain this PostgreSQL optimization proposal.\n\n")
	fmt.Fprintf(&b, "Type: %s\nTable: %s\nCommand: %s\nJustification: %s\n",
		p.Type, p.Table, p.SQLCommand, p.Justification)
	fmt.Fprintf(&b, "Estimated impact: %s\nConfidence: %.2f\n", p.EstimatedImpact, p.Confidence)
	return e.ask(ctx, b.String(), fallback)
}

// ExplainTask explains one maintenance task.
func (e *Explainer) ExplainTask(ctx context.Context, t models.MaintenanceTask) string {
	fallback := t.Reason
	var b strings.Builder
	fmt.Fprintf(&b, "Explain this PostgreSQL maintenance task.\n\n")
	fmt.Fprintf(&b, "Type: %s\nTable: %s\n", t.Type, t.Table)
	if t.Index != "" {
		fmt.Fprintf(&b, "Index: %s\n", t.Index)
	}
	fmt.Fprintf(&b, "Command: %s\nPriority: %s\nReason: %s\n", t.SQLCommand, t.Priority, t.Reason)
	return e.ask(ctx, b.String(), fallback)
}

// SummaryInput is the material for an executive digest of one database.
type SummaryInput struct {
	DatabaseName string
	Signals      []*models.Signal
	Proposals    []*models.Proposal
	Actions      []*models.Action
}

// Summary produces an executive digest over the database's current state.
func (e *Explainer) Summary(ctx context.Context, in SummaryInput) string {
	fallback := fmt.Sprintf("%s: %d signals, %d proposals, %d recorded actions.",
		in.DatabaseName, len(in.Signals), len(in.Proposals), len(in.Actions))

	var b strings.Builder
	fmt.Fprintf(&b, "Write an executive summary of the state of PostgreSQL database %q.\n\n", in.DatabaseName)
	fmt.Fprintf(&b, "Signals (%d):\n", len(in.Signals))
	for _, s := range topSignals(in.Signals, 5) {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", s.Severity, s.Type, s.Description)
	}
	fmt.Fprintf(&b, "\nProposals (%d):\n", len(in.Proposals))
	for i, p := range in.Proposals {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", p.Status, p.Type, p.SQLCommand)
	}
	fmt.Fprintf(&b, "\nRecent actions (%d):\n", len(in.Actions))
	for i, a := range in.Actions {
		if i == 5 {
			break
		}
		outcome := "ok"
		if !a.Success {
			outcome = "failed"
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", a.Agent, a.ActionType, outcome)
	}
	fmt.Fprintf(&b, "\nSummarize the overall health, the most urgent items, and what to do next.")
	return e.ask(ctx, b.String(), fallback)
}

// ask sends one chat completion and returns fallback on any failure.
func (e *Explainer) ask(ctx context.Context, prompt, fallback string) string {
	if !e.Enabled() {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		e.logger.Warn("explanation request failed", "error", err)
		return fallback
	}
	if len(resp.Choices) == 0 {
		e.logger.Warn("explanation request returned no choices")
		return fallback
	}
	return resp.Choices[0].Message.Content
}

// topSignals returns up to n signals, highest severity first.
func topSignals(signals []*models.Signal, n int) []*models.Signal {
	out := make([]*models.Signal, 0, n)
	for rank := 0; rank <= 2 && len(out) < n; rank++ {
		for _, s := range signals {
			if s.Severity.Rank() == rank {
				out = append(out, s)
				if len(out) == n {
					break
				}
			}
		}
	}
	return out
}
