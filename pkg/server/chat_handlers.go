package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/socraticlabs/coach/pkg/agent"
	"github.com/socraticlabs/coach/pkg/content"
	"github.com/socraticlabs/coach/pkg/protocol"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	SessionID string         `json:"session_id"`
	Messages  []chatMessage  `json:"messages"`
	Context   map[string]any `json:"context"`
}

// suggestedTask tells the client which task the first tool call implies.
type suggestedTask struct {
	Type        string `json:"type"`
	Instruction string `json:"instruction"`
	Target      any    `json:"target,omitempty"`
}

var taskTypeByTool = map[string]string{
	"publish_voice_task":     string(agent.TaskVoice),
	"publish_highlight_task": string(agent.TaskHighlight),
	"publish_select_task":    string(agent.TaskSelect),
}

// handleChatStream runs one streaming chat turn. Envelopes are re-framed and
// flushed in arrival order; history is appended exactly once, on done.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Unknown session ids create a session rather than failing.
	sess := s.chats.GetOrCreate(req.SessionID, s.enrichContext(r.Context(), req.Context))
	for _, msg := range req.Messages {
		if msg.Role == protocol.RoleUser {
			s.chats.AppendUser(sess.ID, msg.Content)
		}
	}
	// Re-snapshot so the history sent upstream includes this turn's messages.
	if snap, ok := s.chats.Get(sess.ID); ok {
		sess = snap
	}

	history := make([]protocol.ChatMessage, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		history = append(history, protocol.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	systemPrompt := s.template.Render(sess.Context)

	events, err := s.provider.StreamChat(r.Context(), history, systemPrompt, agent.CoachingTools)
	if err != nil {
		sse.Send(map[string]any{"type": "error", "content": err.Error()})
		return
	}

	for ev := range events {
		var frame map[string]any
		switch ev.Kind {
		case protocol.EventText:
			frame = map[string]any{"type": "text", "content": ev.Text}
		case protocol.EventToolCall:
			frame = map[string]any{"type": "tool_call", "content": ev.ToolCall}
		case protocol.EventThinkingStart:
			frame = map[string]any{"type": "thinking_start"}
		case protocol.EventThinkingEnd:
			frame = map[string]any{"type": "thinking_end"}
		case protocol.EventDone:
			if ev.FullText != "" {
				s.chats.AppendAssistant(sess.ID, ev.FullText)
			}
			frame = map[string]any{
				"type":       "done",
				"content":    ev.FullText,
				"tool_calls": toolCallList(ev.ToolCalls),
			}
		case protocol.EventError:
			slog.Warn("chat stream failed", "session_id", sess.ID, "error", ev.Err)
			frame = map[string]any{"type": "error", "content": ev.Err.Error()}
		default:
			continue
		}
		if err := sse.Send(frame); err != nil {
			// Client went away; nothing is committed past the last done.
			return
		}
	}
}

// handleChatInitStream starts a session and streams the opening greeting.
// The first frame always carries the session id.
func (s *Server) handleChatInitStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess := s.chats.Create(req.SessionID, s.enrichContext(r.Context(), req.Context))
	if err := sse.Send(map[string]any{"type": "session", "session_id": sess.ID}); err != nil {
		return
	}

	// Nothing to coach when every answer was already right.
	if allCorrect, _ := sess.Context["all_correct"].(bool); allCorrect {
		greeting := "Amazing, you got everything right! 🎉 Straight on to the next stage."
		s.chats.AppendAssistant(sess.ID, greeting)
		if err := sse.Send(map[string]any{"type": "text", "content": greeting}); err != nil {
			return
		}
		sse.Send(map[string]any{"type": "done", "greeting": greeting, "suggested_task": nil, "tool_calls": []any{}})
		return
	}

	systemPrompt := s.template.Render(sess.Context)
	initMessage := []protocol.ChatMessage{
		{Role: protocol.RoleUser, Content: "Begin the lesson. Run the step 1 diagnosis."},
	}

	var fullGreeting strings.Builder
	var toolCalls []protocol.ToolCall

	events, streamErr := s.provider.StreamChat(r.Context(), initMessage, systemPrompt, agent.CoachingTools)
	if streamErr == nil {
		for ev := range events {
			switch ev.Kind {
			case protocol.EventText:
				fullGreeting.WriteString(ev.Text)
				if err := sse.Send(map[string]any{"type": "text", "content": ev.Text}); err != nil {
					return
				}
			case protocol.EventToolCall:
				toolCalls = append(toolCalls, *ev.ToolCall)
				if err := sse.Send(map[string]any{"type": "tool_call", "content": ev.ToolCall}); err != nil {
					return
				}
			case protocol.EventError:
				streamErr = ev.Err
			}
		}
	}

	greeting := fullGreeting.String()
	if streamErr != nil {
		slog.Warn("greeting generation failed, using fallback", "session_id", sess.ID, "error", streamErr)
		name := contextString(sess.Context, "student_name", "there")
		index := sess.Context["question_index"]
		if index == nil {
			index = 1
		}
		greeting = fmt.Sprintf("Oops %s, question %v tripped you up 🙈", name, index)
		toolCalls = []protocol.ToolCall{{
			Name:      "publish_voice_task",
			Arguments: map[string]any{"instruction": "Tell me what you were thinking, out loud"},
		}}
		if err := sse.Send(map[string]any{"type": "text", "content": greeting}); err != nil {
			return
		}
	}

	// A tool-call-only reply still needs a visible greeting: borrow the
	// first call's instruction.
	if strings.TrimSpace(greeting) == "" && len(toolCalls) > 0 {
		if instruction, _ := toolCalls[0].Arguments["instruction"].(string); instruction != "" {
			greeting = instruction
			if err := sse.Send(map[string]any{"type": "text", "content": greeting}); err != nil {
				return
			}
		}
	}

	s.chats.AppendAssistant(sess.ID, greeting)

	var task *suggestedTask
	if len(toolCalls) > 0 {
		tc := toolCalls[0]
		taskType, ok := taskTypeByTool[tc.Name]
		if !ok {
			taskType = string(agent.TaskVoice)
		}
		instruction, _ := tc.Arguments["instruction"].(string)
		if instruction == "" {
			instruction = "Please complete the task"
		}
		task = &suggestedTask{
			Type:        taskType,
			Instruction: instruction,
			Target:      tc.Arguments["target"],
		}
	}

	sse.Send(map[string]any{
		"type":           "done",
		"greeting":       greeting,
		"suggested_task": task,
		"tool_calls":     toolCallList(toolCalls),
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.chats.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"messages":   sess.Messages,
		"context":    sess.Context,
	})
}

func (s *Server) handleChatDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.chats.Delete(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// enrichContext resolves question_id and article_id references through the
// content store so callers can pass ids instead of full payloads.
func (s *Server) enrichContext(ctx context.Context, reqContext map[string]any) map[string]any {
	if reqContext == nil {
		reqContext = map[string]any{}
	}
	if s.content == nil {
		return reqContext
	}

	if questionID, ok := reqContext["question_id"].(string); ok && questionID != "" {
		q, err := s.content.Question(ctx, questionID)
		if err != nil {
			if !errors.Is(err, content.ErrNotFound) {
				slog.Warn("question lookup failed", "question_id", questionID, "error", err)
			}
			return reqContext
		}
		var a *content.Article
		if q.ArticleID != "" {
			a, err = s.content.Article(ctx, q.ArticleID)
			if err != nil {
				a = nil
			}
		}
		for k, v := range content.PromptContext(q, a) {
			if _, exists := reqContext[k]; !exists {
				reqContext[k] = v
			}
		}
	}
	return reqContext
}

func toolCallList(calls []protocol.ToolCall) []map[string]any {
	out := make([]map[string]any, 0, len(calls))
	for _, tc := range calls {
		out = append(out, map[string]any{"name": tc.Name, "arguments": tc.Arguments})
	}
	return out
}

func contextString(ctx map[string]any, key, fallback string) string {
	if v, ok := ctx[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
