package report

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

var ErrAttemptNotFound = errors.New("attempt not found")

type Service struct {
	db *sql.DB
}

type Attempt struct {
	ID             int64     `json:"id"`
	TestID         string    `json:"test_id"`
	AttemptTime    time.Time `json:"attempt_time"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
}

// Summary fields are null for a user without attempts.
type Summary struct {
	Attempts     int      `json:"attempts"`
	Best         *int     `json:"best"`
	AverageScore *float64 `json:"average_score"`
}

type ChartPoint struct {
	AttemptTime time.Time `json:"attempt_time"`
	Score       int       `json:"score"`
}

type AnswerDetail struct {
	QuestionID    string `json:"question_id"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

type AttemptInfo struct {
	TestID string `json:"test_id"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) ListAttempts(ctx context.Context, userID int64) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, test_id, attempt_time, score, total_questions
		FROM exam_attempts
		WHERE user_id = $1
		ORDER BY attempt_time DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	out := make([]Attempt, 0)
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.TestID, &a.AttemptTime, &a.Score, &a.TotalQuestions); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.AttemptTime = a.AttemptTime.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func (s *Service) Summary(ctx context.Context, userID int64) (*Summary, error) {
	var (
		out  Summary
		best sql.NullInt64
		avg  sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(score), CAST(AVG(score) AS DOUBLE PRECISION)
		FROM exam_attempts
		WHERE user_id = $1
	`, userID).Scan(&out.Attempts, &best, &avg)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	if best.Valid {
		b := int(best.Int64)
		out.Best = &b
	}
	if avg.Valid {
		a := avg.Float64
		out.AverageScore = &a
	}
	return &out, nil
}

func (s *Service) Chart(ctx context.Context, userID int64) ([]ChartPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt_time, score
		FROM exam_attempts
		WHERE user_id = $1
		ORDER BY attempt_time ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chart: %w", err)
	}
	defer rows.Close()

	out := make([]ChartPoint, 0)
	for rows.Next() {
		var p ChartPoint
		if err := rows.Scan(&p.AttemptTime, &p.Score); err != nil {
			return nil, fmt.Errorf("scan chart point: %w", err)
		}
		p.AttemptTime = p.AttemptTime.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chart: %w", err)
	}
	return out, nil
}

// AttemptOwner returns the user an attempt belongs to.
func (s *Service) AttemptOwner(ctx context.Context, attemptID int64) (int64, error) {
	var owner int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM exam_attempts WHERE id = $1`, attemptID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAttemptNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query attempt owner: %w", err)
	}
	return owner, nil
}

func (s *Service) AttemptDetails(ctx context.Context, attemptID int64) ([]AnswerDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, user_answer, correct_answer, is_correct
		FROM exam_attempt_answers
		WHERE attempt_id = $1
		ORDER BY id ASC
	`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query attempt details: %w", err)
	}
	defer rows.Close()

	out := make([]AnswerDetail, 0)
	for rows.Next() {
		var d AnswerDetail
		if err := rows.Scan(&d.QuestionID, &d.UserAnswer, &d.CorrectAnswer, &d.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan attempt detail: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt details: %w", err)
	}
	return out, nil
}

func (s *Service) AttemptInfo(ctx context.Context, attemptID int64) (*AttemptInfo, error) {
	var info AttemptInfo
	err := s.db.QueryRowContext(ctx, `SELECT test_id FROM exam_attempts WHERE id = $1`, attemptID).Scan(&info.TestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query attempt info: %w", err)
	}
	return &info, nil
}

// ExportAttemptsExcel renders the attempt history of one user, newest first.
func (s *Service) ExportAttemptsExcel(ctx context.Context, userID int64) ([]byte, error) {
	items, err := s.ListAttempts(ctx, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	headers := []string{"attempt_id", "test_id", "attempt_time", "score", "total_questions", "percent"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, it := range items {
		percent := 0.0
		if it.TotalQuestions > 0 {
			percent = float64(it.Score) * 100 / float64(it.TotalQuestions)
		}
		values := []interface{}{
			it.ID,
			it.TestID,
			it.AttemptTime.Format("2006-01-02 15:04:05"),
			it.Score,
			it.TotalQuestions,
			percent,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "F", 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
