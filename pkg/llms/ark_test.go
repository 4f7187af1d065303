package llms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socraticlabs/coach/pkg/config"
	"github.com/socraticlabs/coach/pkg/protocol"
)

func newArkTestProvider(t *testing.T, handler http.HandlerFunc) *ArkProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewArkProviderFromConfig(&config.BackendConfig{
		Type:    config.ProviderTypeArk,
		Model:   "doubao-test",
		APIKey:  "test-key",
		Host:    server.URL,
		Timeout: 5,
	})
	require.NoError(t, err)
	return provider
}

func sseBody(chunks ...string) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString("data: " + c + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func collectEvents(t *testing.T, events <-chan protocol.Event) []protocol.Event {
	t.Helper()
	var out []protocol.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestArkProviderRequiresAPIKey(t *testing.T) {
	_, err := NewArkProviderFromConfig(&config.BackendConfig{Type: config.ProviderTypeArk})
	assert.Error(t, err)
}

func TestArkStreamTextRoundTrip(t *testing.T) {
	provider := newArkTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo "}}]}`,
			`{"choices":[{"delta":{"content":"there"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		))
	})

	events, err := provider.StreamChat(context.Background(),
		[]protocol.ChatMessage{{Role: protocol.RoleUser, Content: "hi"}}, "", nil)
	require.NoError(t, err)

	all := collectEvents(t, events)
	require.NotEmpty(t, all)

	var concat strings.Builder
	var done *protocol.Event
	for i, ev := range all {
		switch ev.Kind {
		case protocol.EventText:
			concat.WriteString(ev.Text)
		case protocol.EventDone:
			done = &all[i]
		}
	}
	require.NotNil(t, done, "stream must terminate with done")
	assert.Equal(t, protocol.EventDone, all[len(all)-1].Kind)
	assert.Equal(t, "Hello there", done.FullText)
	assert.Equal(t, concat.String(), done.FullText, "text fragments must concatenate to the full text")
	assert.Empty(t, done.ToolCalls)
}

func TestArkStreamFragmentedToolCall(t *testing.T) {
	provider := newArkTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"publish_voice_task"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"instruction\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"speak up\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		))
	})

	events, err := provider.StreamChat(context.Background(), nil, "", nil)
	require.NoError(t, err)

	all := collectEvents(t, events)
	var toolCalls []protocol.ToolCall
	var done *protocol.Event
	for i, ev := range all {
		switch ev.Kind {
		case protocol.EventToolCall:
			toolCalls = append(toolCalls, *ev.ToolCall)
		case protocol.EventDone:
			done = &all[i]
		}
	}

	require.Len(t, toolCalls, 1)
	assert.Equal(t, "publish_voice_task", toolCalls[0].Name)
	assert.Equal(t, map[string]any{"instruction": "speak up"}, toolCalls[0].Arguments)

	require.NotNil(t, done)
	assert.Equal(t, toolCalls, done.ToolCalls)
}

func TestArkStreamFinalizeOnEOS(t *testing.T) {
	// No finish_reason at all; the call must still be flushed at stream end.
	provider := newArkTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"show_gps_card","arguments":"{}"}}]}}]}`,
		))
	})

	events, err := provider.StreamChat(context.Background(), nil, "", nil)
	require.NoError(t, err)

	all := collectEvents(t, events)
	require.NotEmpty(t, all)
	require.Equal(t, protocol.EventDone, all[len(all)-1].Kind)
	require.Len(t, all[len(all)-1].ToolCalls, 1)
	assert.Equal(t, "show_gps_card", all[len(all)-1].ToolCalls[0].Name)
}

func TestArkStreamErrorStatus(t *testing.T) {
	provider := newArkTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	})

	events, err := provider.StreamChat(context.Background(), nil, "", nil)
	require.NoError(t, err)

	all := collectEvents(t, events)
	require.Len(t, all, 1)
	assert.Equal(t, protocol.EventError, all[0].Kind)
	assert.Contains(t, all[0].Err.Error(), "bad key")
}

func TestArkStreamCancelStopsWithoutDone(t *testing.T) {
	// The upstream keeps the stream open; the consumer hangs up after the
	// first fragment. The channel must close with no terminal envelope.
	provider := newArkTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := provider.StreamChat(ctx, nil, "", nil)
	require.NoError(t, err)

	first, ok := <-events
	require.True(t, ok)
	assert.Equal(t, protocol.EventText, first.Kind)

	cancel()

	for ev := range events {
		assert.NotEqual(t, protocol.EventDone, ev.Kind, "cancelled stream must not report done")
		assert.NotEqual(t, protocol.EventError, ev.Kind, "cancellation is not an upstream error")
	}
}

func TestArkGenerateText(t *testing.T) {
	provider := newArkTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"generated"}}]}`)
	})

	text, err := provider.GenerateText(context.Background(), "prompt", "system")
	require.NoError(t, err)
	assert.Equal(t, "generated", text)
}
