// Package provider defines the unified interface and shared types for all LLM providers.
// Each provider adapter (openai.go, anthropic.go) implements the Provider interface,
// normalizing vendor-specific responses and failures into a single Outcome type.
package provider

import "context"

// ── Message types ────────────────────────────────────────────────────────────

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single message in a completion request.
type Message struct {
	Role    Role
	Content string
}

// ── Request type ─────────────────────────────────────────────────────────────

// ChatRequest is the unified request format sent to a provider.
// Zero-valued sampling fields mean "use the provider's default".
type ChatRequest struct {
	Model            string
	Messages         []Message
	Temperature      float64
	TopP             float64
	MaxTokens        int
	PresencePenalty  float64
	FrequencyPenalty float64

	// PlannerMode asks the provider to run in its planning/reasoning mode
	// where supported (ASI1 extra-body flag).
	PlannerMode bool

	// WebSearch enables provider-side web search. Always left false by the
	// planner; the flag exists so the adapter can disable it explicitly.
	WebSearch bool
}

// ── Outcome (closed result sum) ──────────────────────────────────────────────

// OutcomeKind classifies the result of a model call. Every call maps to
// exactly one of these; adapters never return raw errors to callers.
type OutcomeKind int

const (
	// OutcomeText: the model returned at least one choice with text.
	OutcomeText OutcomeKind = iota

	// OutcomeEmpty: the call succeeded but carried no usable choice.
	// This is a defined condition, not an error.
	OutcomeEmpty

	// OutcomeTimeout: the call exceeded its deadline.
	OutcomeTimeout

	// OutcomeFailure: any other transport or provider error.
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeText:
		return "text"
	case OutcomeEmpty:
		return "empty"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "failure"
	}
}

// Outcome is the result of one model call.
// Text is set only for OutcomeText; Err only for OutcomeTimeout/OutcomeFailure.
type Outcome struct {
	Kind OutcomeKind
	Text string
	Err  error
}

// ── Provider interface ───────────────────────────────────────────────────────

// Provider is the unified interface for all LLM providers.
// Implementors are responsible for:
// 1. Converting the unified ChatRequest into the provider's API request format
// 2. Mapping the provider's response and error taxonomy into an Outcome
// 3. Honoring the context deadline and reporting it as OutcomeTimeout
type Provider interface {
	// Complete issues a single non-streaming completion call.
	Complete(ctx context.Context, req *ChatRequest) Outcome

	// Name returns the provider identifier, e.g. "asi1", "openai", "anthropic".
	Name() string

	// DefaultModel returns the model used when the request leaves Model empty.
	DefaultModel() string
}
