package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Provider interface for Claude, backed by
// github.com/anthropics/anthropic-sdk-go rather than a hand-rolled HTTP
// client against the raw Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	models []string
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		models: []string{
			string(anthropic.ModelClaudeSonnet4_5),
			string(anthropic.ModelClaudeOpus4_1),
			string(anthropic.ModelClaude3_5HaikuLatest),
		},
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Models returns available model identifiers.
func (p *AnthropicProvider) Models() []string {
	return p.models
}

// Complete generates a completion.
func (p *AnthropicProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	params := p.toMessageParams(req)

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	return p.fromMessage(msg), nil
}

// Stream generates a streaming completion, accumulating SDK events into a
// full anthropic.Message (the SDK's own Accumulate helper) while also
// forwarding text deltas as they arrive.
func (p *AnthropicProvider) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error) {
	params := p.toMessageParams(req)
	stream := p.client.Messages.NewStreaming(ctx, params)

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)

		var acc anthropic.Message
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				ch <- StreamChunk{Error: err}
				return
			}

			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
					ch <- StreamChunk{Content: text.Text}
				}
			}
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			ch <- StreamChunk{Error: p.wrapError(err)}
			return
		}

		resp := p.fromMessage(&acc)
		for _, tc := range resp.ToolCalls {
			ch <- StreamChunk{ToolCall: &tc}
		}
		ch <- StreamChunk{Done: true, Usage: &resp.Usage}
	}()

	return ch, nil
}

// CountTokens estimates token count. The SDK's Messages.CountTokens call
// requires a full request round-trip; callers on the hot path (context
// budget allocation) use the cheap local estimate instead.
func (p *AnthropicProvider) CountTokens(content string) (int, error) {
	return EstimateTokens(content), nil
}

// toMessageParams converts a CompletionRequest into the SDK's request
// params, mirroring the message/tool/tool-result shapes already built by
// hand in the donor's own Anthropic loop.
func (p *AnthropicProvider) toMessageParams(req *CompletionRequest) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			continue
		case "tool":
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.ToolResult, msg.IsError),
			))
		case "assistant":
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
					input = tc.Arguments
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{ID: tc.ID, Name: tc.Name, Input: input},
				})
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = anthropic.Float(req.TopP)
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}

	if len(req.Tools) > 0 && req.ToolChoice != "none" {
		params.Tools = make([]anthropic.ToolUnionParam, len(req.Tools))
		for i, tool := range req.Tools {
			schema := tool.Parameters
			var required []string
			var properties any = map[string]any{}
			if schema != nil {
				if r, ok := schema["required"].([]string); ok {
					required = r
				}
				if props, ok := schema["properties"]; ok {
					properties = props
				} else {
					properties = schema
				}
			}
			params.Tools[i] = anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: properties, Required: required},
			}}
		}
		switch req.ToolChoice {
		case "", "auto":
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		default:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: req.ToolChoice}}
		}
	}

	return params
}

// fromMessage converts an SDK Message into our provider-agnostic response.
func (p *AnthropicProvider) fromMessage(msg *anthropic.Message) *CompletionResponse {
	result := &CompletionResponse{
		ID:           msg.ID,
		Model:        string(msg.Model),
		FinishReason: p.mapStopReason(string(msg.StopReason)),
		Usage: TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	for i := range msg.Content {
		switch block := msg.Content[i].AsAny().(type) {
		case anthropic.TextBlock:
			result.Content += block.Text
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.JSON.Input.Raw(),
			})
		}
	}

	return result
}

func (p *AnthropicProvider) mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "max_tokens"
	case "tool_use":
		return "tool_use"
	default:
		return reason
	}
}

// wrapError classifies an SDK error into our ProviderError taxonomy so
// IsRateLimitError/IsAuthError/IsContextLengthError keep working unchanged.
func (p *AnthropicProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		code := "http_error"
		switch apiErr.StatusCode {
		case 401:
			code = "authentication_error"
		case 429:
			code = "rate_limit"
		case 413:
			code = "context_length_exceeded"
		}
		return &ProviderError{Provider: "anthropic", Code: code, Message: apiErr.Message, Err: err}
	}
	return &ProviderError{Provider: "anthropic", Code: "unknown", Message: fmt.Sprintf("%v", err), Err: err}
}
