package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrPersistence  = errors.New("attempt persistence failed")
	ErrInvalidScore = errors.New("score out of range")
)

type RecordInput struct {
	UserID   int64
	TestID   string
	Score    int
	Total    int
	Verdicts []Verdict
}

// Recorder writes an attempt and its verdicts as one transaction. Either
// both the attempt row and all answer rows are committed or none are.
type Recorder struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// WithClock replaces the attempt_time source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *Recorder) Record(ctx context.Context, in RecordInput) (int64, error) {
	if in.Score < 0 || in.Score > in.Total || in.Total != len(in.Verdicts) {
		return 0, fmt.Errorf("%w: score=%d total=%d verdicts=%d", ErrInvalidScore, in.Score, in.Total, len(in.Verdicts))
	}
	if strings.TrimSpace(in.TestID) == "" {
		return 0, fmt.Errorf("%w: empty test id", ErrInvalidScore)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx: %w", ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	var attemptID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO exam_attempts (user_id, test_id, score, total_questions, attempt_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, in.UserID, in.TestID, in.Score, in.Total, r.now().UTC()).Scan(&attemptID)
	if err != nil {
		return 0, fmt.Errorf("%w: insert attempt: %w", ErrPersistence, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO exam_attempt_answers (attempt_id, question_id, user_answer, correct_answer, is_correct)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare answer insert: %w", ErrPersistence, err)
	}
	defer stmt.Close()

	for _, v := range in.Verdicts {
		if _, err := stmt.ExecContext(ctx, attemptID, v.QuestionID, v.UserAnswer, v.CorrectAnswer, v.Correct); err != nil {
			return 0, fmt.Errorf("%w: insert answer %q: %w", ErrPersistence, v.QuestionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", ErrPersistence, err)
	}
	return attemptID, nil
}
