package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/socraticlabs/coach/pkg/config"
	"github.com/socraticlabs/coach/pkg/httpclient"
	"github.com/socraticlabs/coach/pkg/protocol"
)

// GeminiProvider talks to the Google Gemini API. Function calls arrive as
// complete parts, so no assembly is needed; "thought" parts are reasoning
// content and are bracketed by thinking events instead of being surfaced
// as text.
type GeminiProvider struct {
	config     *config.BackendConfig
	httpClient *httpclient.Client
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiToolSet         `json:"tools,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is kept schemaless: a part may hold text, a thought flag, a
// functionCall or a functionResponse depending on the chunk.
type geminiPart map[string]any

type geminiToolSet struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// NewGeminiProviderFromConfig creates a Gemini provider.
func NewGeminiProviderFromConfig(cfg *config.BackendConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
	)

	return &GeminiProvider{config: cfg, httpClient: httpClient}, nil
}

func (p *GeminiProvider) ModelName() string { return p.config.Model }

func (p *GeminiProvider) Close() error { return nil }

// GenerateText performs a non-streaming completion.
func (p *GeminiProvider) GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{"text": prompt}}},
		},
		GenerationConfig: p.generationConfig(),
	}
	if systemPrompt != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{"text": systemPrompt}}}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.config.Host, p.config.Model, p.config.APIKey)

	resp, err := p.doRequest(ctx, url, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gemini API error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	var texts []string
	for _, part := range parsed.Candidates[0].Content.Parts {
		if thought, _ := part["thought"].(bool); thought {
			continue
		}
		if text, ok := part["text"].(string); ok {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, ""), nil
}

// StreamChat streams a chat completion as normalized events.
func (p *GeminiProvider) StreamChat(ctx context.Context, messages []protocol.ChatMessage, systemPrompt string, tools []ToolDefinition) (<-chan protocol.Event, error) {
	req := geminiRequest{
		Contents:         convertToGeminiContents(messages),
		GenerationConfig: p.generationConfig(),
	}
	if systemPrompt != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{"text": systemPrompt}}}
	}
	if len(tools) > 0 {
		req.Tools = []geminiToolSet{{FunctionDeclarations: convertToGeminiTools(tools)}}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?key=%s&alt=sse",
		p.config.Host, p.config.Model, p.config.APIKey)

	events := make(chan protocol.Event, 64)

	go func() {
		defer close(events)
		if err := p.streamRequest(ctx, url, req, events); err != nil {
			emit(ctx, events, protocol.Event{Kind: protocol.EventError, Err: err})
		}
	}()

	return events, nil
}

func (p *GeminiProvider) generationConfig() *geminiGenerationConfig {
	cfg := &geminiGenerationConfig{MaxOutputTokens: p.config.MaxTokens}
	if p.config.Temperature != nil {
		cfg.Temperature = p.config.Temperature
	}
	return cfg
}

func convertToGeminiContents(messages []protocol.ChatMessage) []geminiContent {
	var contents []geminiContent
	for _, m := range messages {
		role := "user"
		if m.Role == protocol.RoleAssistant || m.Role == "model" {
			role = "model"
		}
		if m.Content == "" {
			continue
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{"text": m.Content}},
		})
	}
	return contents
}

func convertToGeminiTools(tools []ToolDefinition) []geminiFunctionDeclaration {
	decls := make([]geminiFunctionDeclaration, len(tools))
	for i, tool := range tools {
		decls[i] = geminiFunctionDeclaration(tool)
	}
	return decls
}

func (p *GeminiProvider) doRequest(ctx context.Context, url string, request geminiRequest) (*http.Response, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("gemini API error (HTTP %d): %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

func (p *GeminiProvider) streamRequest(ctx context.Context, url string, request geminiRequest, events chan<- protocol.Event) error {
	resp, err := p.doRequest(ctx, url, request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var fullText strings.Builder
	var allCalls []protocol.ToolCall
	inThinking := false

	endThinking := func() bool {
		if !inThinking {
			return true
		}
		inThinking = false
		return emit(ctx, events, protocol.Event{Kind: protocol.EventThinkingEnd})
	}

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("gemini API error: %s", chunk.Error.Message)
		}
		if len(chunk.Candidates) == 0 {
			continue
		}

		for _, part := range chunk.Candidates[0].Content.Parts {
			if thought, _ := part["thought"].(bool); thought {
				// Reasoning content: bracket it, never surface it.
				if !inThinking {
					inThinking = true
					if !emit(ctx, events, protocol.Event{Kind: protocol.EventThinkingStart}) {
						return nil
					}
				}
				continue
			}

			if text, ok := part["text"].(string); ok && text != "" {
				if !endThinking() {
					return nil
				}
				fullText.WriteString(text)
				if !emit(ctx, events, protocol.Event{Kind: protocol.EventText, Text: text}) {
					return nil
				}
			}

			if fc, ok := part["functionCall"].(map[string]any); ok {
				if !endThinking() {
					return nil
				}
				name, _ := fc["name"].(string)
				args, _ := fc["args"].(map[string]any)
				if args == nil {
					args = map[string]any{}
				}
				call := protocol.ToolCall{Name: name, Arguments: args}
				allCalls = append(allCalls, call)
				if !emit(ctx, events, protocol.Event{Kind: protocol.EventToolCall, ToolCall: &call}) {
					return nil
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("reading stream: %w", err)
	}

	if !endThinking() {
		return nil
	}

	emit(ctx, events, protocol.Event{
		Kind:      protocol.EventDone,
		FullText:  fullText.String(),
		ToolCalls: allCalls,
	})
	return nil
}
