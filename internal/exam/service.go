package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"naccexam/internal/question"
)

var (
	ErrNoAnswers     = errors.New("no answers submitted")
	ErrInvalidTestID = question.ErrInvalidTestID
)

// NoAnswersMessage is returned instead of a score breakdown when the answers
// object is present but empty. No attempt is recorded in that case.
const NoAnswersMessage = "No questions answered."

// EventAttemptRecorded is the routing key of the post-commit event.
const EventAttemptRecorded = "exam.attempt.recorded"

type answerKeyResolver interface {
	AnswerKey(ctx context.Context, testID string, questionIDs []string) (map[string]string, error)
}

type attemptRecorder interface {
	Record(ctx context.Context, in RecordInput) (int64, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

type attemptMetrics interface {
	AttemptRecorded(testID string, score, total int)
}

type Service struct {
	catalog   *question.Catalog
	resolver  answerKeyResolver
	recorder  attemptRecorder
	publisher eventPublisher
	metrics   attemptMetrics
}

type SubmitInput struct {
	TestID  string
	UserID  int64
	Answers Answers
}

type SubmitResult struct {
	AttemptID      int64   `json:"attempt_id,omitempty"`
	Score          int     `json:"score"`
	TotalQuestions int     `json:"total_questions,omitempty"`
	Results        Results `json:"results,omitempty"`
	Message        string  `json:"message,omitempty"`
}

// AttemptRecordedEvent is published once the attempt transaction has
// committed.
type AttemptRecordedEvent struct {
	AttemptID      int64     `json:"attempt_id"`
	UserID         int64     `json:"user_id"`
	TestID         string    `json:"test_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	RecordedAt     time.Time `json:"recorded_at"`
}

type Option func(*Service)

func WithPublisher(p eventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m attemptMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(catalog *question.Catalog, resolver answerKeyResolver, recorder attemptRecorder, opts ...Option) *Service {
	if catalog == nil {
		catalog = question.DefaultCatalog()
	}
	s := &Service{catalog: catalog, resolver: resolver, recorder: recorder}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasTest reports whether testID is in the catalog.
func (s *Service) HasTest(testID string) bool {
	return s.catalog.Has(testID)
}

// Submit validates, resolves, scores and records one submission. A non-nil
// result with an AttemptID means the attempt is durably stored.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if !s.catalog.Has(in.TestID) {
		return nil, ErrInvalidTestID
	}
	if in.Answers == nil {
		return nil, ErrNoAnswers
	}
	if len(in.Answers) == 0 {
		return &SubmitResult{Score: 0, Message: NoAnswersMessage}, nil
	}

	ids := make([]string, 0, len(in.Answers))
	for _, a := range in.Answers {
		ids = append(ids, a.QuestionID)
	}
	key, err := s.resolver.AnswerKey(ctx, in.TestID, ids)
	if err != nil {
		if errors.Is(err, ErrInvalidTestID) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: resolve answer key: %w", ErrPersistence, err)
	}

	score, verdicts := Score(in.Answers, key)
	total := len(verdicts)

	attemptID, err := s.recorder.Record(ctx, RecordInput{
		UserID:   in.UserID,
		TestID:   in.TestID,
		Score:    score,
		Total:    total,
		Verdicts: verdicts,
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, AttemptRecordedEvent{
		AttemptID:      attemptID,
		UserID:         in.UserID,
		TestID:         in.TestID,
		Score:          score,
		TotalQuestions: total,
		RecordedAt:     time.Now().UTC(),
	})

	return &SubmitResult{
		AttemptID:      attemptID,
		Score:          score,
		TotalQuestions: total,
		Results:        verdicts,
	}, nil
}

func (s *Service) afterCommit(ctx context.Context, ev AttemptRecordedEvent) {
	if s.metrics != nil {
		s.metrics.AttemptRecorded(ev.TestID, ev.Score, ev.TotalQuestions)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, EventAttemptRecorded, ev); err != nil {
		log.Printf("publish %s attempt_id=%d: %v", EventAttemptRecorded, ev.AttemptID, err)
	}
}
