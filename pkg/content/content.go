// Package content supplies question and article context for prompts.
package content

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a question or article id is unknown.
var ErrNotFound = errors.New("content not found")

// Option is one answer choice of a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a reading comprehension question.
type Question struct {
	ID            string   `json:"id"`
	ArticleID     string   `json:"article_id"`
	Stem          string   `json:"stem"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	QuestionType  string   `json:"question_type"`
}

// Article is the passage a question set refers to.
type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Store looks up questions and articles by id.
type Store interface {
	Question(ctx context.Context, id string) (*Question, error)
	Article(ctx context.Context, id string) (*Article, error)
	Close() error
}

// PromptContext flattens a question and its article into the key/value
// payload the instruction template consumes.
func PromptContext(q *Question, a *Article) map[string]any {
	ctx := map[string]any{
		"question_stem":  q.Stem,
		"options":        q.Options,
		"correct_answer": q.CorrectAnswer,
		"question_type":  q.QuestionType,
	}
	if a != nil {
		ctx["article_content"] = a.Content
	}
	return ctx
}
