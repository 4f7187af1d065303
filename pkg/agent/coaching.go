package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ModuleCoaching is the six-phase Socratic error-correction module.
const ModuleCoaching = "coaching"

// MaxWrongAttempts is the number of graded selections a student gets before
// the session is forced into review.
const MaxWrongAttempts = 2

// ReviewPhase is the terminal phase of the coaching procedure.
const ReviewPhase = 6

// Phase describes one step of the coaching procedure.
type Phase struct {
	Name        string
	TaskType    TaskType
	Description string
}

// coachingPhases is the fixed six-step procedure. Never give the answer away;
// each phase nudges the student one step closer to finding it themselves.
var coachingPhases = map[int]Phase{
	1: {Name: "Diagnosis", TaskType: TaskVoice, Description: "ask why the student picked their answer"},
	2: {Name: "Recall", TaskType: TaskGPS, Description: "show the GPS solving card"},
	3: {Name: "Guide", TaskType: TaskHighlight, Description: "find the key words in the question stem"},
	4: {Name: "Locate", TaskType: TaskHighlight, Description: "locate the source sentence in the article"},
	5: {Name: "Match", TaskType: TaskSelect, Description: "let the student choose again"},
	6: {Name: "Review", TaskType: TaskReview, Description: "summarize the solving method"},
}

// PhaseTable returns the coaching phase for n, defaulting to phase 1.
func PhaseTable(n int) Phase {
	if p, ok := coachingPhases[n]; ok {
		return p
	}
	return coachingPhases[1]
}

// TextGenerator is the slice of a generation backend the agent needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// CoachingAgent walks a student through the six-phase remediation procedure.
// Not safe for concurrent use.
type CoachingAgent struct {
	state     *State
	generator TextGenerator
}

// NewCoachingAgent creates a coaching agent for one session. generator may be
// nil, in which case every script comes from the deterministic fallbacks.
func NewCoachingAgent(sessionID string, context map[string]any, generator TextGenerator) *CoachingAgent {
	return &CoachingAgent{
		state:     NewState(sessionID, ModuleCoaching, context),
		generator: generator,
	}
}

func (a *CoachingAgent) ModuleType() string { return ModuleCoaching }

func (a *CoachingAgent) State() *State { return a.state }

// Reset returns the session to phase 1 with an empty history. Idempotent.
func (a *CoachingAgent) Reset() {
	a.state.CurrentPhase = 1
	a.state.WrongCount = 0
	a.state.History = nil
	a.state.Touch()
}

// Initialize produces the phase 1 opening action.
func (a *CoachingAgent) Initialize(ctx context.Context) (Action, error) {
	script := a.generateScript(ctx, 1, nil, true)
	a.state.AddMessage(RoleAgent, script, nil)

	return Action{
		Type: ActionSendMessage,
		Payload: map[string]any{
			"text":         script,
			"require_task": true,
			"task_type":    string(TaskVoice),
			"phase":        1,
			"phase_name":   coachingPhases[1].Name,
		},
	}, nil
}

// ProcessInput records the student's input and decides the next action.
// Graded selections are handled locally; everything else goes through the
// decision engine.
func (a *CoachingAgent) ProcessInput(ctx context.Context, inputType string, inputData map[string]any) (Action, error) {
	a.state.AddMessage(RoleStudent, fmt.Sprintf("%v", inputData), map[string]any{"input_type": inputType})

	if inputType == InputSelectOption {
		return a.handleSelectOption(ctx, inputData), nil
	}
	return a.decide(ctx, inputType, inputData), nil
}

func (a *CoachingAgent) handleSelectOption(ctx context.Context, inputData map[string]any) Action {
	selected, _ := inputData["option_id"].(string)
	correct := a.state.ContextString("correct_answer", "")

	if strings.EqualFold(selected, correct) {
		// Correct answer jumps straight to review from any phase.
		a.state.CurrentPhase = ReviewPhase
		script := a.generateScript(ctx, ReviewPhase,
			map[string]any{"selected": selected, "is_correct": true}, false)
		a.state.AddMessage(RoleAgent, script, nil)

		return Action{
			Type: ActionStartReview,
			Payload: map[string]any{
				"text":       script,
				"is_correct": true,
				"phase":      ReviewPhase,
				"phase_name": coachingPhases[ReviewPhase].Name,
			},
		}
	}

	a.state.WrongCount++
	a.state.Touch()

	if a.state.WrongCount >= MaxWrongAttempts {
		a.state.CurrentPhase = ReviewPhase
		script := a.generateScript(ctx, ReviewPhase,
			map[string]any{"selected": selected, "is_correct": false, "forced": true}, false)
		a.state.AddMessage(RoleAgent, script, nil)

		return Action{
			Type: ActionStartReview,
			Payload: map[string]any{
				"text":          script,
				"is_correct":    false,
				"forced_review": true,
				"phase":         ReviewPhase,
				"phase_name":    coachingPhases[ReviewPhase].Name,
			},
		}
	}

	script := a.generateScript(ctx, a.state.CurrentPhase,
		map[string]any{"selected": selected, "is_correct": false}, false)
	a.state.AddMessage(RoleAgent, script, nil)

	return Action{
		Type: ActionSendMessage,
		Payload: map[string]any{
			"text":               script,
			"require_task":       true,
			"task_type":          string(PhaseTable(a.state.CurrentPhase).TaskType),
			"wrong_count":        a.state.WrongCount,
			"remaining_attempts": MaxWrongAttempts - a.state.WrongCount,
		},
	}
}

// generateScript asks the backend for phase dialogue, falling back to the
// canned script for the phase when generation fails.
func (a *CoachingAgent) generateScript(ctx context.Context, phase int, userInput map[string]any, opening bool) string {
	if a.generator == nil {
		return a.fallbackScript(phase)
	}

	phaseCfg := PhaseTable(phase)
	var prompt string
	if opening {
		prompt = fmt.Sprintf(`Write the opening line for step %d ("%s") of a Socratic tutoring session.

Student name: %s
The student picked the wrong answer: %s
Question number: %v

Requirements:
1. Light and playful, with an emoji or two
2. Show you understand the student is stuck
3. Never reveal the answer
4. Two to four sentences

Output the line directly, no other formatting.`,
			phase, phaseCfg.Name,
			a.state.ContextString("student_name", "there"),
			a.state.ContextString("student_answer", "?"),
			a.state.Context["question_index"])
	} else {
		prompt = fmt.Sprintf(`Continue step %d ("%s") of a Socratic tutoring session.

The student just responded: %v

Requirements:
1. React to what the student said
2. Light and playful, with an emoji or two
3. Nudge them toward the next step
4. Two to four sentences

Output the line directly, no other formatting.`,
			phase, phaseCfg.Name, userInput)
	}

	script, err := a.generator.GenerateText(ctx, prompt, "")
	if err != nil {
		slog.Warn("script generation failed, using fallback", "phase", phase, "error", err)
		return a.fallbackScript(phase)
	}
	script = strings.Trim(strings.TrimSpace(script), `"`)
	if script == "" {
		return a.fallbackScript(phase)
	}
	return script
}

// fallbackScript returns the canned, backend-independent line for a phase.
func (a *CoachingAgent) fallbackScript(phase int) string {
	name := a.state.ContextString("student_name", "there")
	answer := a.state.ContextString("student_answer", "that one")
	index := a.state.Context["question_index"]
	if index == nil {
		index = 1
	}

	switch phase {
	case 1:
		return fmt.Sprintf("Oops %s, question %v tripped you up 🙈\n\nCan you tell me why you picked %s?", name, index, answer)
	case 2:
		return "Time to pull out our GPS card! 🧭 What was step one again?"
	case 3:
		return "Good! Now find the key words in the question stem 🔍"
	case 4:
		return "Take those key words into the article and find the source sentence 👀"
	case 5:
		return "One more chance now. What will you pick? 💪"
	case 6:
		return "Let's review how this question is solved 📝"
	default:
		return "Let's keep going..."
	}
}
