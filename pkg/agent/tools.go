package agent

import "github.com/socraticlabs/coach/pkg/llms"

// CoachingTools are the client-side interactions the backend may trigger
// during a coaching session.
var CoachingTools = []llms.ToolDefinition{
	{
		Name:        "publish_voice_task",
		Description: "Publish a voice task asking the student to answer out loud. Use when the student should explain their thinking or answer an open question.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"instruction": map[string]any{
					"type":        "string",
					"description": "Task instruction for the student, e.g. 'Tell me why you chose this answer'",
				},
			},
			"required": []string{"instruction"},
		},
	},
	{
		Name:        "publish_highlight_task",
		Description: "Publish a highlight task asking the student to mark key words or sentences. Use when the student should locate key information.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"instruction": map[string]any{
					"type":        "string",
					"description": "Task instruction for the student, e.g. 'Find and highlight the sentence that contains the answer'",
				},
				"target": map[string]any{
					"type":        "string",
					"description": "Where to highlight: article or question",
				},
			},
			"required": []string{"instruction", "target"},
		},
	},
	{
		Name:        "publish_select_task",
		Description: "Publish a select task asking the student to choose an answer again. Use once the student understands the right approach.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"instruction": map[string]any{
					"type":        "string",
					"description": "Task instruction for the student, e.g. 'Which answer do you think is correct now?'",
				},
			},
			"required": []string{"instruction"},
		},
	},
	{
		Name:        "show_gps_card",
		Description: "Show the GPS solving card to help the student recall the solving steps. Use during the recall phase.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	},
	{
		Name:        "start_review",
		Description: "Start the review summary and end the session. Use once the student understands the answer and the method.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": "Review summary covering the solving steps and key points",
				},
			},
			"required": []string{"summary"},
		},
	},
	{
		Name:        "reveal_answer",
		Description: "Reveal the correct answer. Use only after the student has used both selection attempts without success.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"explanation": map[string]any{
					"type":        "string",
					"description": "Why the correct answer is correct",
				},
			},
			"required": []string{"explanation"},
		},
	},
}
