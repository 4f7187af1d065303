// Package instruction renders the tutor's system instruction from a template
// with named placeholders filled from the question context.
package instruction

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed coaching_tutor.md
var defaultTemplate string

// solvingSkills maps a question type to its step-by-step solving method.
// Unknown types fall back to the detail-comprehension method.
var solvingSkills = map[string]string{
	"detail": `Step 1. Locate key words in the stem: time, place, person or event
Step 2. Translate the stem: note the question word to understand what is asked (reason, thing, time, person, place, manner)
Step 3. Locate the information: use the key words to find the answering paragraph and sentence quickly
Step 4. Read the answering sentence carefully, compare it against the options, pick the best match`,

	"main_idea": `Step 1. Skim the whole article for the overall concept and topic
Step 2. Find topic sentences: the first or last sentence of each paragraph usually carries the paragraph's point
Step 3. Summarize: combine the paragraph points into the article's main idea
Step 4. Verify: compare each option against the summarized main idea, pick the closest`,

	"inference": `Step 1. Return to the article: pin down what the stem asks and find the supporting paragraph or sentence
Step 2. Understand the surface meaning: translate the relevant text, mind the surrounding context
Step 3. Analyze the implication: reason from what the text implies together with its context
Step 4. Verify: compare each option against the inference, pick the one that matches`,

	"word_guess": `Step 1. Translate the context: read the sentences before and after the target word carefully
Step 2. Note the logical relation between the context and the target word to judge its leaning
Step 3. Guess the meaning from the relation and the translated context
Step 4. Verify: substitute each option at the target word, pick the one that fits the guess`,

	"reference": `Step 1. Locate the pronoun: identify the pronoun in the stem and its position in the text
Step 2. Understand the context: read and translate the sentences around the pronoun
Step 3. Analyze the relation: decide what part of the sentence the pronoun points to
Step 4. Verify: substitute each option for the pronoun, check meaning and logic`,
}

const defaultQuestionType = "detail"

// SolvingSkills returns the solving method for a question type.
func SolvingSkills(questionType string) string {
	if s, ok := solvingSkills[questionType]; ok {
		return s
	}
	return solvingSkills[defaultQuestionType]
}

// Template is a system instruction template with {{placeholder}} slots.
type Template struct {
	text string
}

// Default returns the embedded coaching tutor template.
func Default() *Template {
	return &Template{text: defaultTemplate}
}

// Load reads a template from disk, falling back to the embedded default when
// path is empty.
func Load(path string) (*Template, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt template: %w", err)
	}
	return &Template{text: string(data)}, nil
}

// Render substitutes the question context into the template. Missing keys
// render as empty strings; an unrecognized question type uses the default
// solving method.
func (t *Template) Render(context map[string]any) string {
	if len(context) == 0 {
		return t.text
	}

	questionType := stringValue(context["question_type"])
	if questionType == "" {
		questionType = defaultQuestionType
	}
	skills := stringValue(context["solving_skills"])
	if skills == "" {
		skills = SolvingSkills(questionType)
	}

	options := ""
	if v, ok := context["options"]; ok {
		if encoded, err := json.MarshalIndent(v, "", "  "); err == nil {
			options = string(encoded)
		}
	}

	replacer := strings.NewReplacer(
		"{{article_content}}", stringValue(context["article_content"]),
		"{{question_stem}}", stringValue(context["question_stem"]),
		"{{options}}", options,
		"{{correct_answer}}", stringValue(context["correct_answer"]),
		"{{question_type}}", questionType,
		"{{solving_skills}}", skills,
	)
	return replacer.Replace(t.text)
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
