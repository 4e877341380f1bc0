package provider

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider for all OpenAI-compatible APIs,
// including ASI1, OpenAI, DeepSeek, etc.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	name    string
	baseURL string
}

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	name := "openai"
	if baseURL != "" {
		switch {
		case strings.Contains(baseURL, "asi1"):
			name = "asi1"
		case strings.Contains(baseURL, "deepseek"):
			name = "deepseek"
		case strings.Contains(baseURL, "groq"):
			name = "groq"
		}
	}

	if model == "" {
		model = "asi1" // fallback; normally buildProvider passes the correct default
	}

	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		model:   model,
		name:    name,
		baseURL: baseURL,
	}
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.model }

func (p *OpenAIProvider) Complete(ctx context.Context, req *ChatRequest) Outcome {
	model := req.Model
	if model == "" {
		model = p.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: buildOpenAIMessages(req.Messages),
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP != 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.MaxTokens != 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(req.PresencePenalty)
	}
	if req.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(req.FrequencyPenalty)
	}

	// Provider-specific extra-body flags. web_search is sent explicitly even
	// when false so the provider never falls back to a search-enabled default.
	callOpts := []option.RequestOption{
		option.WithJSONSet("web_search", req.WebSearch),
	}
	if req.PlannerMode {
		callOpts = append(callOpts, option.WithJSONSet("planner_mode", true))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params, callOpts...)
	if err != nil {
		return classifyCallError(err)
	}
	if len(resp.Choices) == 0 {
		return Outcome{Kind: OutcomeEmpty}
	}
	return Outcome{Kind: OutcomeText, Text: resp.Choices[0].Message.Content}
}

// buildOpenAIMessages converts unified Message types to OpenAI API params.
func buildOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}

// classifyCallError maps a provider SDK error to a timeout or generic failure
// outcome. Timeout detection covers context deadlines, net timeouts, and the
// usual gateway timeout phrasings (408/504).
func classifyCallError(err error) Outcome {
	if isTimeoutError(err) {
		return Outcome{Kind: OutcomeTimeout, Err: err}
	}
	return Outcome{Kind: OutcomeFailure, Err: err}
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"timeout", "timed out", "deadline exceeded", "408", "504"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
