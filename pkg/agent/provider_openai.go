package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements LLMProvider for OpenAI.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
	}
}

// Provider returns the provider name.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Call makes an API call to OpenAI.
func (p *OpenAIProvider) Call(ctx context.Context, params InvokeParams) (*InvokeResult, error) {
	reqParams, err := p.buildRequest(params)
	if err != nil {
		return nil, err
	}

	if params.OnDelta != nil {
		return p.callStreaming(ctx, reqParams, params.OnDelta)
	}

	response, err := p.client.Chat.Completions.New(ctx, reqParams)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}
	return p.parseMessage(response.Choices[0].Message, string(response.Model), &TokenUsage{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
	})
}

func (p *OpenAIProvider) callStreaming(ctx context.Context, reqParams openai.ChatCompletionNewParams, onDelta func(string)) (*InvokeResult, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, reqParams)

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onDelta(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	if len(acc.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	return p.parseMessage(acc.Choices[0].Message, string(acc.Model), &TokenUsage{
		InputTokens:  int(acc.Usage.PromptTokens),
		OutputTokens: int(acc.Usage.CompletionTokens),
	})
}

func (p *OpenAIProvider) buildRequest(params InvokeParams) (openai.ChatCompletionNewParams, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if params.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(params.SystemPrompt))
	}

	for _, msg := range params.Messages {
		switch msg.Role {
		case "system":
			// Already handled above.
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				toolCalls := []openai.ChatCompletionMessageToolCall{}
				for _, tc := range msg.ToolCalls {
					paramsJSON, err := json.Marshal(tc.Parameters)
					if err != nil {
						return openai.ChatCompletionNewParams{}, fmt.Errorf("failed to marshal tool parameters: %w", err)
					}
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      tc.Name,
							Arguments: string(paramsJSON),
						},
					})
				}
				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   msg.Content,
					ToolCalls: toolCalls,
				}
				messages = append(messages, assistantMsg.ToParam())
			} else {
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}
		case "tool":
			messages = append(messages, openai.ToolMessage(msg.ToolCallID, msg.Content))
		}
	}

	reqParams := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(params.Model),
		Messages: messages,
	}

	if params.MaxTokens > 0 {
		reqParams.MaxTokens = openai.Int(int64(params.MaxTokens))
	}
	if params.Temperature > 0 {
		reqParams.Temperature = openai.Float(params.Temperature)
	}

	if len(params.Tools) > 0 {
		tools := []openai.ChatCompletionToolParam{}
		for _, tool := range params.Tools {
			toolMap, ok := tool.(map[string]interface{})
			if !ok {
				return openai.ChatCompletionNewParams{}, fmt.Errorf("invalid tool definition type %T", tool)
			}
			name, ok := toolMap["name"].(string)
			if !ok {
				return openai.ChatCompletionNewParams{}, fmt.Errorf("tool definition missing name")
			}
			description, ok := toolMap["description"].(string)
			if !ok {
				return openai.ChatCompletionNewParams{}, fmt.Errorf("tool %q missing description", name)
			}
			inputSchema, ok := toolMap["input_schema"].(map[string]interface{})
			if !ok {
				return openai.ChatCompletionNewParams{}, fmt.Errorf("tool %q missing input schema", name)
			}
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        name,
					Description: openai.String(description),
					Parameters:  openai.FunctionParameters(inputSchema),
				},
			})
		}
		reqParams.Tools = tools
	}

	return reqParams, nil
}

func (p *OpenAIProvider) parseMessage(msg openai.ChatCompletionMessage, model string, usage *TokenUsage) (*InvokeResult, error) {
	toolCalls := []ToolCall{}
	for _, tc := range msg.ToolCalls {
		var callParams map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &callParams); err != nil {
			return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
		}
		toolCalls = append(toolCalls, ToolCall{
			ID:         tc.ID,
			Name:       tc.Function.Name,
			Parameters: callParams,
		})
	}

	return &InvokeResult{
		Content:   msg.Content,
		ToolCalls: toolCalls,
		Provider:  "openai",
		Model:     model,
		Usage:     usage,
	}, nil
}
