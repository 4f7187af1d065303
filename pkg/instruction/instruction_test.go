package instruction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplateHasPlaceholders(t *testing.T) {
	text := Default().text
	for _, placeholder := range []string{
		"{{article_content}}", "{{question_stem}}", "{{options}}",
		"{{correct_answer}}", "{{question_type}}", "{{solving_skills}}",
	} {
		assert.Contains(t, text, placeholder)
	}
}

func TestRenderSubstitutesContext(t *testing.T) {
	rendered := Default().Render(map[string]any{
		"article_content": "A fox ran by.",
		"question_stem":   "What ran by?",
		"options":         []map[string]string{{"id": "A", "text": "a fox"}},
		"correct_answer":  "A",
		"question_type":   "detail",
	})

	assert.Contains(t, rendered, "A fox ran by.")
	assert.Contains(t, rendered, "What ran by?")
	assert.Contains(t, rendered, `"a fox"`)
	assert.NotContains(t, rendered, "{{article_content}}")
	assert.NotContains(t, rendered, "{{solving_skills}}")
}

func TestRenderEmptyContextLeavesTemplate(t *testing.T) {
	rendered := Default().Render(nil)
	assert.Contains(t, rendered, "{{question_stem}}")
}

func TestSolvingSkillsPerQuestionType(t *testing.T) {
	inference := SolvingSkills("inference")
	assert.Contains(t, inference, "implication")

	// Unknown types get the detail method.
	assert.Equal(t, SolvingSkills("detail"), SolvingSkills("riddle"))
}

func TestRenderUsesQuestionTypeSkills(t *testing.T) {
	rendered := Default().Render(map[string]any{"question_type": "main_idea"})
	assert.Contains(t, rendered, "topic sentences")
}

func TestRenderExplicitSkillsWin(t *testing.T) {
	rendered := Default().Render(map[string]any{
		"question_type":  "main_idea",
		"solving_skills": "custom method",
	})
	assert.Contains(t, rendered, "custom method")
	assert.False(t, strings.Contains(rendered, "topic sentences"))
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/does/not/exist.md")
	require.Error(t, err)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	tpl, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().text, tpl.text)
}
