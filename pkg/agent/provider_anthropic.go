package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements LLMProvider for Anthropic Claude.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
	}
}

// Provider returns the provider name.
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Call makes an API call to Anthropic Claude.
func (p *AnthropicProvider) Call(ctx context.Context, params InvokeParams) (*InvokeResult, error) {
	reqParams, err := p.buildRequest(params)
	if err != nil {
		return nil, err
	}

	if params.OnDelta != nil {
		return p.callStreaming(ctx, reqParams, params.OnDelta)
	}

	response, err := p.client.Messages.New(ctx, reqParams)
	if err != nil {
		return nil, err
	}
	return p.parseResponse(response)
}

func (p *AnthropicProvider) callStreaming(ctx context.Context, reqParams anthropic.MessageNewParams, onDelta func(string)) (*InvokeResult, error) {
	stream := p.client.Messages.NewStreaming(ctx, reqParams)

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("failed to accumulate stream event: %w", err)
		}

		switch e := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch d := e.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				onDelta(d.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	return p.parseResponse(&message)
}

func (p *AnthropicProvider) buildRequest(params InvokeParams) (anthropic.MessageNewParams, error) {
	anthropicMessages := []anthropic.MessageParam{}

	for _, msg := range params.Messages {
		switch {
		case msg.Role == "system":
			// System prompt handled separately.
		case msg.Role == "tool":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Parameters, tc.Name))
			}
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case msg.Role == "assistant":
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		case msg.Role == "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model),
		Messages:  anthropicMessages,
		MaxTokens: int64(maxTokens),
	}

	if params.SystemPrompt != "" {
		reqParams.System = []anthropic.TextBlockParam{
			{Text: params.SystemPrompt},
		}
	}

	if params.Temperature > 0 {
		reqParams.Temperature = anthropic.Float(params.Temperature)
	}

	if len(params.Tools) > 0 {
		tools := []anthropic.ToolUnionParam{}
		for _, tool := range params.Tools {
			toolMap, ok := tool.(map[string]interface{})
			if !ok {
				return anthropic.MessageNewParams{}, fmt.Errorf("invalid tool definition type %T", tool)
			}
			name, ok := toolMap["name"].(string)
			if !ok {
				return anthropic.MessageNewParams{}, fmt.Errorf("tool definition missing name")
			}
			description, ok := toolMap["description"].(string)
			if !ok {
				return anthropic.MessageNewParams{}, fmt.Errorf("tool %q missing description", name)
			}
			inputSchema, ok := toolMap["input_schema"].(map[string]interface{})
			if !ok {
				return anthropic.MessageNewParams{}, fmt.Errorf("tool %q missing input schema", name)
			}

			toolParam := anthropic.ToolParam{
				Name:        name,
				Description: anthropic.String(description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: inputSchema["properties"],
				},
			}

			if required, ok := inputSchema["required"]; ok {
				if reqSlice, ok := required.([]interface{}); ok {
					strSlice := make([]string, 0, len(reqSlice))
					for _, v := range reqSlice {
						s, ok := v.(string)
						if !ok {
							return anthropic.MessageNewParams{}, fmt.Errorf("tool %q has non-string required field", name)
						}
						strSlice = append(strSlice, s)
					}
					toolParam.InputSchema.Required = strSlice
				} else if strSlice, ok := required.([]string); ok {
					toolParam.InputSchema.Required = strSlice
				}
			}

			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		reqParams.Tools = tools
	}

	return reqParams, nil
}

func (p *AnthropicProvider) parseResponse(response *anthropic.Message) (*InvokeResult, error) {
	content := ""
	toolCalls := []ToolCall{}

	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += b.Text
		case anthropic.ToolUseBlock:
			var callParams map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &callParams); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:         b.ID,
				Name:       b.Name,
				Parameters: callParams,
			})
		}
	}

	return &InvokeResult{
		Content:   content,
		ToolCalls: toolCalls,
		Provider:  "anthropic",
		Model:     string(response.Model),
		Usage: &TokenUsage{
			InputTokens:  int(response.Usage.InputTokens),
			OutputTokens: int(response.Usage.OutputTokens),
		},
	}, nil
}
