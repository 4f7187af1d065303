package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	article_id TEXT NOT NULL DEFAULT '',
	stem TEXT NOT NULL,
	options TEXT NOT NULL DEFAULT '[]',
	correct_answer TEXT NOT NULL,
	question_type TEXT NOT NULL DEFAULT 'detail'
);
CREATE INDEX IF NOT EXISTS idx_questions_article ON questions(article_id);
`

// SQLStore is a sqlite-backed content store.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL opens (and initializes) a sqlite content database.
func OpenSQL(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening content database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing content schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// Question looks up a question by id. Options are stored as a JSON column.
func (s *SQLStore) Question(ctx context.Context, id string) (*Question, error) {
	var q Question
	var optionsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, article_id, stem, options, correct_answer, question_type
		 FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.ArticleID, &q.Stem, &optionsJSON, &q.CorrectAnswer, &q.QuestionType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying question %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
		return nil, fmt.Errorf("decoding options for question %q: %w", id, err)
	}
	return &q, nil
}

// Article looks up an article by id.
func (s *SQLStore) Article(ctx context.Context, id string) (*Article, error) {
	var a Article
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content FROM articles WHERE id = ?`, id,
	).Scan(&a.ID, &a.Title, &a.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying article %q: %w", id, err)
	}
	return &a, nil
}

// SaveQuestion inserts or replaces a question.
func (s *SQLStore) SaveQuestion(ctx context.Context, q *Question) error {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO questions
		 (id, article_id, stem, options, correct_answer, question_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.ArticleID, q.Stem, string(optionsJSON), q.CorrectAnswer, q.QuestionType)
	if err != nil {
		return fmt.Errorf("saving question %q: %w", q.ID, err)
	}
	return nil
}

// SaveArticle inserts or replaces an article.
func (s *SQLStore) SaveArticle(ctx context.Context, a *Article) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO articles (id, title, content) VALUES (?, ?, ?)`,
		a.ID, a.Title, a.Content)
	if err != nil {
		return fmt.Errorf("saving article %q: %w", a.ID, err)
	}
	return nil
}
