package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/socraticlabs/coach/pkg/llms"
)

// decision is the structured object the backend is asked to return for
// non-grading inputs. Untrusted output: always parsed through the tolerant
// repair pipeline and validated before use.
type decision struct {
	Analysis      string `json:"analysis"`
	Action        string `json:"action"`
	Script        string `json:"script"`
	RequireTask   bool   `json:"require_task"`
	TaskType      string `json:"task_type"`
	ShouldAdvance bool   `json:"should_advance"`
}

// decide asks the backend what to do with a non-grading input. Any failure
// along the way falls through to the deterministic advance, so the procedure
// always makes forward progress.
func (a *CoachingAgent) decide(ctx context.Context, inputType string, inputData map[string]any) Action {
	if a.generator == nil {
		return a.fallbackAdvance()
	}

	raw, err := a.generator.GenerateText(ctx, a.decisionPrompt(inputType, inputData), "")
	if err != nil {
		slog.Warn("decision generation failed, falling back", "error", err)
		return a.fallbackAdvance()
	}

	d, err := parseDecision(raw)
	if err != nil {
		slog.Warn("decision output unparseable, falling back", "error", err)
		return a.fallbackAdvance()
	}

	script := strings.TrimSpace(d.Script)
	if script == "" {
		script = "Let's keep going..."
	}
	if !ValidTaskType(d.TaskType) {
		d.TaskType = string(TaskVoice)
	}

	a.state.AddMessage(RoleAgent, script, nil)

	if d.ShouldAdvance && a.state.CurrentPhase < ReviewPhase {
		a.state.CurrentPhase++
		a.state.Touch()
		phase := a.state.CurrentPhase
		cfg := PhaseTable(phase)
		return Action{
			Type: ActionAdvancePhase,
			Payload: map[string]any{
				"text":         script,
				"require_task": true,
				"task_type":    string(cfg.TaskType),
				"phase":        phase,
				"phase_name":   cfg.Name,
			},
		}
	}

	payload := map[string]any{
		"text":         script,
		"require_task": d.RequireTask,
		"phase":        a.state.CurrentPhase,
		"phase_name":   PhaseTable(a.state.CurrentPhase).Name,
	}
	if d.RequireTask {
		payload["task_type"] = d.TaskType
	}
	return Action{Type: ActionSendMessage, Payload: payload}
}

// parseDecision runs the backend's reply through fence stripping, a straight
// parse, then one repair attempt.
func parseDecision(raw string) (*decision, error) {
	cleaned := llms.StripFences(raw)

	var d decision
	if err := json.Unmarshal([]byte(cleaned), &d); err == nil {
		return &d, nil
	}
	if err := json.Unmarshal([]byte(llms.RepairJSON(cleaned)), &d); err != nil {
		return nil, fmt.Errorf("decision JSON unparseable: %w", err)
	}
	return &d, nil
}

func (a *CoachingAgent) decisionPrompt(inputType string, inputData map[string]any) string {
	phase := a.state.CurrentPhase
	cfg := PhaseTable(phase)
	return fmt.Sprintf(`You are a tutoring assistant running step %d ("%s") of a Socratic coaching session.

## Current state
- Question: %s
- Correct answer: %s
- Student's pick: %s
- Student name: %s
- Wrong attempts: %d/%d
- Current step: %d/%d (%s)

## Student input
- Type: %s
- Content: %v

## Recent conversation (last 3)
%s

## Your task
Analyze the student's response and decide the next move. Return JSON:

`+"```json"+`
{
    "analysis": "brief quality assessment of the response",
    "action": "SEND_MESSAGE or ADVANCE_PHASE or PUBLISH_TASK",
    "script": "what to say (2-4 sentences, playful, with emoji)",
    "require_task": true/false,
    "task_type": "voice/highlight/select" (when require_task is true),
    "should_advance": true/false (move to the next step)
}
`+"```"+`

## Rules
1. Never reveal the answer
2. Guide with Socratic questions
3. Set should_advance true only when the student answered well or clearly gets it
4. Keep the script short and punchy`,
		phase, cfg.Name,
		a.state.ContextString("question_stem", "unknown"),
		a.state.ContextString("correct_answer", "unknown"),
		a.state.ContextString("student_answer", "unknown"),
		a.state.ContextString("student_name", "there"),
		a.state.WrongCount, MaxWrongAttempts,
		phase, ReviewPhase, cfg.Name,
		inputType, inputData,
		a.formatRecentHistory(3))
}

func (a *CoachingAgent) formatRecentHistory(n int) string {
	history := a.state.History
	if len(history) == 0 {
		return "(no conversation yet)"
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var b strings.Builder
	for _, msg := range history {
		label := "Student"
		if msg.Role == RoleAgent {
			label = "Tutor"
		}
		content := msg.Content
		// Truncate on rune boundaries; scripts carry emoji.
		if runes := []rune(content); len(runes) > 100 {
			content = string(runes[:100]) + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", label, content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// fallbackAdvance is the deterministic recovery path: advance one phase with
// a canned script. It never fails.
func (a *CoachingAgent) fallbackAdvance() Action {
	if a.state.CurrentPhase < ReviewPhase {
		a.state.CurrentPhase++
		a.state.Touch()
	}
	phase := a.state.CurrentPhase
	cfg := PhaseTable(phase)

	script := fmt.Sprintf("Alright, on to the next step: %s 🚀", cfg.Name)
	a.state.AddMessage(RoleAgent, script, nil)

	return Action{
		Type: ActionAdvancePhase,
		Payload: map[string]any{
			"text":         script,
			"require_task": true,
			"task_type":    string(cfg.TaskType),
			"phase":        phase,
			"phase_name":   cfg.Name,
		},
	}
}
