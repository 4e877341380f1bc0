// Package planner turns a classified user query into an assistant reply by
// composing the right prompt for the model and mapping every provider outcome
// to presentable text.
package planner

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/planfit-ai/planfit/internal/classify"
	"github.com/planfit-ai/planfit/internal/provider"
	"github.com/planfit-ai/planfit/internal/session"
)

const (
	// Planning calls see a bounded slice of history so long sessions never
	// blow the prompt budget.
	planningHistoryWindow = 16
	planningContentLimit  = 1500
)

// Fallback replies for non-text provider outcomes. These are returned to the
// user verbatim; the underlying error is only logged.
const (
	contextEmptyFallback = "I couldn't find the information in our conversation. Could you rephrase?"
	contextErrorFallback = "An error occurred while reviewing our conversation. Please try again."
	planEmptyFallback    = "I couldn't generate a fitness plan for that. Please try rephrasing your request."
	planTimeoutFallback  = "Planning is taking longer than expected. Try a more specific question."
	planErrorFallback    = "An unexpected error occurred. Please try again."
)

// Planner generates replies through an injected provider.
type Planner struct {
	provider provider.Provider
	model    string
	logger   *zap.Logger
}

// New builds a Planner. An empty model falls back to the provider's default.
func New(p provider.Provider, model string, logger *zap.Logger) *Planner {
	if model == "" {
		model = p.DefaultModel()
	}
	return &Planner{provider: p, model: model, logger: logger}
}

// Plan produces the assistant reply for one turn. The returned text is always
// presentable: non-text outcomes map to fixed fallback strings and never leak
// error details. state is mutated only on a successful planning result, when
// the session phase advances to the classified phase.
func (p *Planner) Plan(ctx context.Context, query string, c classify.Classification, history []session.Message, state *session.State) string {
	if c.Category == classify.CategoryContextAnalysis {
		return p.analyzeContext(ctx, query, history)
	}
	return p.planResponse(ctx, query, c, history, state)
}

// analyzeContext answers a question about the conversation itself. The full
// history goes into the prompt and no new planning is requested.
func (p *Planner) analyzeContext(ctx context.Context, query string, history []session.Message) string {
	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: contextPrompt})
	for _, m := range history {
		messages = append(messages, provider.Message{Role: historyRole(m.Role), Content: m.Content})
	}
	messages = append(messages, provider.Message{
		Role:    provider.RoleUser,
		Content: buildContextQuery(classify.StripMentions(query)),
	})

	out := p.provider.Complete(ctx, &provider.ChatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: 0.3,
		TopP:        0.9,
		MaxTokens:   3000,
		PlannerMode: true,
	})
	switch out.Kind {
	case provider.OutcomeText:
		return out.Text
	case provider.OutcomeEmpty:
		return contextEmptyFallback
	default:
		p.logger.Warn("context analysis failed",
			zap.Stringer("outcome", out.Kind),
			zap.Error(out.Err))
		return contextErrorFallback
	}
}

// planResponse runs the planning call for a phase or general query.
func (p *Planner) planResponse(ctx context.Context, query string, c classify.Classification, history []session.Message, state *session.State) string {
	messages := make([]provider.Message, 0, planningHistoryWindow+2)
	messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: systemPrompt})

	recent := history
	if len(recent) > planningHistoryWindow {
		recent = recent[len(recent)-planningHistoryWindow:]
	}
	for _, m := range recent {
		messages = append(messages, provider.Message{
			Role:    historyRole(m.Role),
			Content: truncateUTF8(m.Content, planningContentLimit),
		})
	}

	clean := classify.StripMentions(query)
	var userContent string
	if c.Phase.Valid() {
		userContent = buildPhaseQuery(clean, c.Phase, state)
	} else {
		userContent = buildGeneralQuery(clean, state)
	}
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: userContent})

	out := p.provider.Complete(ctx, &provider.ChatRequest{
		Model:            p.model,
		Messages:         messages,
		Temperature:      0.4,
		TopP:             0.9,
		MaxTokens:        2000,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
		PlannerMode:      true,
		WebSearch:        false,
	})
	switch out.Kind {
	case provider.OutcomeText:
		// Phase advances only once a plan actually came back.
		if c.Phase.Valid() {
			state.CurrentPhase = c.Phase
		}
		return out.Text
	case provider.OutcomeEmpty:
		return planEmptyFallback
	case provider.OutcomeTimeout:
		p.logger.Warn("planning call timed out", zap.Error(out.Err))
		return planTimeoutFallback
	default:
		p.logger.Warn("planning call failed", zap.Error(out.Err))
		return planErrorFallback
	}
}

func historyRole(r session.Role) provider.Role {
	if r == session.RoleAssistant {
		return provider.RoleAssistant
	}
	return provider.RoleUser
}

// truncateUTF8 caps s at n bytes, backing up so a multi-byte rune is never
// split mid-sequence.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
