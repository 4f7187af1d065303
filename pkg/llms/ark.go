package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/socraticlabs/coach/pkg/config"
	"github.com/socraticlabs/coach/pkg/httpclient"
	"github.com/socraticlabs/coach/pkg/protocol"
)

// ArkProvider talks to Volcengine Ark (Doubao), which exposes an
// OpenAI-compatible chat-completions API. Tool calls arrive as fragmented
// deltas keyed by index and are reconstructed by the assembler; nothing
// partial ever leaves this adapter.
type ArkProvider struct {
	config     *config.BackendConfig
	httpClient *httpclient.Client
}

type arkRequest struct {
	Model       string       `json:"model"`
	Messages    []arkMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	Stream      bool         `json:"stream"`
	Tools       []arkTool    `json:"tools,omitempty"`
}

type arkMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type arkTool struct {
	Type     string          `json:"type"`
	Function arkToolFunction `json:"function"`
}

type arkToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type arkResponse struct {
	Choices []arkChoice `json:"choices"`
	Error   *arkError   `json:"error,omitempty"`
}

type arkChoice struct {
	Message      arkMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type arkStreamResponse struct {
	Choices []arkStreamChoice `json:"choices"`
	Error   *arkError         `json:"error,omitempty"`
}

type arkStreamChoice struct {
	Delta        arkDelta `json:"delta"`
	FinishReason string   `json:"finish_reason"`
}

type arkDelta struct {
	Content   string             `json:"content,omitempty"`
	ToolCalls []arkToolCallDelta `json:"tool_calls,omitempty"`
}

type arkToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type arkError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewArkProviderFromConfig creates an Ark provider.
func NewArkProviderFromConfig(cfg *config.BackendConfig) (*ArkProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ark API key is required")
	}

	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
	)

	return &ArkProvider{config: cfg, httpClient: httpClient}, nil
}

func (p *ArkProvider) ModelName() string { return p.config.Model }

func (p *ArkProvider) Close() error { return nil }

// GenerateText performs a non-streaming completion.
func (p *ArkProvider) GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error) {
	var messages []arkMessage
	if systemPrompt != "" {
		messages = append(messages, arkMessage{Role: protocol.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, arkMessage{Role: protocol.RoleUser, Content: prompt})

	request := arkRequest{
		Model:       p.config.Model,
		Messages:    messages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.temperature(),
	}

	resp, err := p.doRequest(ctx, request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var parsed arkResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("ark API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamChat streams a chat completion as normalized events.
func (p *ArkProvider) StreamChat(ctx context.Context, messages []protocol.ChatMessage, systemPrompt string, tools []ToolDefinition) (<-chan protocol.Event, error) {
	request := arkRequest{
		Model:       p.config.Model,
		Messages:    p.buildMessages(messages, systemPrompt),
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.temperature(),
		Stream:      true,
	}
	if len(tools) > 0 {
		request.Tools = convertToArkTools(tools)
	}

	events := make(chan protocol.Event, 64)

	go func() {
		defer close(events)
		if err := p.streamRequest(ctx, request, events); err != nil {
			emit(ctx, events, protocol.Event{Kind: protocol.EventError, Err: err})
		}
	}()

	return events, nil
}

func (p *ArkProvider) buildMessages(messages []protocol.ChatMessage, systemPrompt string) []arkMessage {
	out := make([]arkMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, arkMessage{Role: protocol.RoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		role := m.Role
		// Gemini-style histories use "model" for the assistant turn.
		if role == "model" {
			role = protocol.RoleAssistant
		}
		out = append(out, arkMessage{Role: role, Content: m.Content})
	}
	return out
}

func (p *ArkProvider) temperature() float64 {
	if p.config.Temperature == nil {
		return 0.7
	}
	return *p.config.Temperature
}

func convertToArkTools(tools []ToolDefinition) []arkTool {
	result := make([]arkTool, len(tools))
	for i, tool := range tools {
		result[i] = arkTool{
			Type:     "function",
			Function: arkToolFunction(tool),
		}
	}
	return result
}

func (p *ArkProvider) doRequest(ctx context.Context, request arkRequest) (*http.Response, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Host+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ark request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if apiErr := parseArkErrorBody(body); apiErr != nil {
			return nil, fmt.Errorf("ark API error (HTTP %d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("ark API error (HTTP %d): %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

func parseArkErrorBody(body []byte) *arkError {
	if len(body) == 0 {
		return nil
	}
	var wrapped struct {
		Error arkError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		return &wrapped.Error
	}
	return nil
}

func (p *ArkProvider) streamRequest(ctx context.Context, request arkRequest, events chan<- protocol.Event) error {
	resp, err := p.doRequest(ctx, request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	assembler := newToolCallAssembler()

	var fullText bytes.Buffer
	var allCalls []protocol.ToolCall

	flush := func() bool {
		for _, call := range assembler.Flush() {
			allCalls = append(allCalls, call)
			if !emit(ctx, events, protocol.Event{Kind: protocol.EventToolCall, ToolCall: &call}) {
				return false
			}
		}
		return true
	}

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			if ctx.Err() != nil {
				// Consumer went away; nothing more to emit.
				return nil
			}
			return fmt.Errorf("reading stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]
		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var chunk arkStreamResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("ark API error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			fullText.WriteString(choice.Delta.Content)
			if !emit(ctx, events, protocol.Event{Kind: protocol.EventText, Text: choice.Delta.Content}) {
				return nil
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			assembler.Add(tc.Index, tc.Function.Name, tc.Function.Arguments)
		}

		if choice.FinishReason == "tool_calls" || choice.FinishReason == "stop" {
			if !flush() {
				return nil
			}
		}
	}

	// Streams that end without a finish_reason still owe us whatever the
	// assembler is holding.
	if !flush() {
		return nil
	}

	emit(ctx, events, protocol.Event{
		Kind:      protocol.EventDone,
		FullText:  fullText.String(),
		ToolCalls: allCalls,
	})
	return nil
}

// emit sends an event unless the consumer cancelled.
func emit(ctx context.Context, events chan<- protocol.Event, ev protocol.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
