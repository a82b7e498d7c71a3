package question

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidTestID    = errors.New("invalid test id")
	ErrInvalidInput     = errors.New("invalid input")
	ErrQuestionNotFound = errors.New("question not found in this test")
)

type Service struct {
	db      *sql.DB
	catalog *Catalog
}

// Question is the learner-facing view; the stored answer is never included.
type Question struct {
	ID       int64    `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type QuestionInput struct {
	ID       int64
	Question string
	OptionA  string
	OptionB  string
	OptionC  string
	OptionD  string
	Answer   string
}

func NewService(db *sql.DB, catalog *Catalog) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Service{db: db, catalog: catalog}
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

func (s *Service) ListTests(ctx context.Context) []Test {
	_ = ctx
	return s.catalog.Tests()
}

func (s *Service) ListQuestions(ctx context.Context, testID string) ([]Question, error) {
	if !s.catalog.Has(testID) {
		return nil, ErrInvalidTestID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, option_a, option_b, option_c, option_d
		FROM questions
		WHERE test_id = $1
		ORDER BY id ASC
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	out := make([]Question, 0)
	for rows.Next() {
		var (
			q          Question
			a, b, c, d string
		)
		if err := rows.Scan(&q.ID, &q.Question, &a, &b, &c, &d); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Options = []string{a, b, c, d}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

// AnswerKey returns the stored correct answer for every requested id that
// exists in the test, keyed by the id string exactly as the caller gave it.
// Only the canonical decimal form of a stored id matches, so "01", " 1" or
// "+1" never alias question 1. Ids that are not canonical integers, are
// missing, or have no stored answer are absent from the result.
func (s *Service) AnswerKey(ctx context.Context, testID string, questionIDs []string) (map[string]string, error) {
	if !s.catalog.Has(testID) {
		return nil, ErrInvalidTestID
	}

	requested := make(map[int64]struct{}, len(questionIDs))
	args := make([]interface{}, 0, len(questionIDs)+1)
	args = append(args, testID)
	placeholders := make([]string, 0, len(questionIDs))
	for _, raw := range questionIDs {
		id, ok := canonicalID(raw)
		if !ok {
			continue
		}
		if _, seen := requested[id]; seen {
			continue
		}
		requested[id] = struct{}{}
		args = append(args, id)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}

	out := make(map[string]string, len(questionIDs))
	if len(placeholders) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, answer
		FROM questions
		WHERE test_id = $1 AND id IN (`+strings.Join(placeholders, ", ")+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query answer key: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     int64
			answer sql.NullString
		)
		if err := rows.Scan(&id, &answer); err != nil {
			return nil, fmt.Errorf("scan answer key: %w", err)
		}
		if !answer.Valid || strings.TrimSpace(answer.String) == "" {
			continue
		}
		out[strconv.FormatInt(id, 10)] = answer.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer key: %w", err)
	}
	return out, nil
}

// UpdateAnswer corrects the stored answer of one question. It is an
// administrative path and never touches recorded attempts.
func (s *Service) UpdateAnswer(ctx context.Context, testID string, questionID int64, newAnswer string) error {
	if !s.catalog.Has(testID) {
		return ErrInvalidTestID
	}
	newAnswer = strings.TrimSpace(newAnswer)
	if questionID <= 0 || newAnswer == "" {
		return ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET answer = $3
		WHERE test_id = $1 AND id = $2
	`, testID, questionID, newAnswer)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update answer rows affected: %w", err)
	}
	if affected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// UpsertQuestions writes all questions in one transaction.
func (s *Service) UpsertQuestions(ctx context.Context, testID string, in []QuestionInput) (int, error) {
	if !s.catalog.Has(testID) {
		return 0, ErrInvalidTestID
	}
	if len(in) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert questions tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (test_id, id, question, option_a, option_b, option_c, option_d, answer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (test_id, id) DO UPDATE SET
			question = EXCLUDED.question,
			option_a = EXCLUDED.option_a,
			option_b = EXCLUDED.option_b,
			option_c = EXCLUDED.option_c,
			option_d = EXCLUDED.option_d,
			answer = EXCLUDED.answer
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert question: %w", err)
	}
	defer stmt.Close()

	for _, q := range in {
		if _, err := stmt.ExecContext(ctx, testID, q.ID, q.Question, q.OptionA, q.OptionB, q.OptionC, q.OptionD, nullableString(q.Answer)); err != nil {
			return 0, fmt.Errorf("upsert question %d: %w", q.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert questions: %w", err)
	}
	return len(in), nil
}

// canonicalID accepts only the form strconv.FormatInt produces.
func canonicalID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || strconv.FormatInt(id, 10) != raw {
		return 0, false
	}
	return id, true
}

func nullableString(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
