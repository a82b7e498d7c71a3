package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"naccexam/internal/db/dbtest"
	"naccexam/internal/question"
)

type recordingPublisher struct {
	keys   []string
	events []AttemptRecordedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	p.keys = append(p.keys, routingKey)
	if ev, ok := payload.(AttemptRecordedEvent); ok {
		p.events = append(p.events, ev)
	}
	return p.err
}

type countingMetrics struct {
	calls int
}

func (m *countingMetrics) AttemptRecorded(testID string, score, total int) {
	m.calls++
}

type failingResolver struct{}

func (failingResolver) AnswerKey(ctx context.Context, testID string, questionIDs []string) (map[string]string, error) {
	return nil, errors.New("connection reset")
}

func newSQLiteService(t *testing.T, opts ...Option) (*Service, *sql.DB) {
	t.Helper()
	conn := dbtest.OpenSQLite(t)
	catalog := question.DefaultCatalog()
	return NewService(catalog, question.NewService(conn, catalog), NewRecorder(conn), opts...), conn
}

func TestSubmitEndToEnd(t *testing.T) {
	pub := &recordingPublisher{}
	metrics := &countingMetrics{}
	svc, conn := newSQLiteService(t, WithPublisher(pub), WithMetrics(metrics))
	dbtest.SeedQuestion(t, conn, "test1", 1, "A")
	dbtest.SeedQuestion(t, conn, "test1", 2, "B")

	res, err := svc.Submit(context.Background(), SubmitInput{
		TestID:  "test1",
		UserID:  11,
		Answers: Answers{{"1", "a"}, {"2", "C"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 1 || res.TotalQuestions != 2 || res.AttemptID <= 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.Results[0].Correct || res.Results[1].Correct || res.Results[1].CorrectAnswer != "B" {
		t.Fatalf("unexpected verdicts: %+v", res.Results)
	}

	var score, total int
	err = conn.QueryRow(`SELECT score, total_questions FROM exam_attempts WHERE id = $1`, res.AttemptID).Scan(&score, &total)
	if err != nil {
		t.Fatalf("read attempt: %v", err)
	}
	if score != 1 || total != 2 {
		t.Fatalf("unexpected stored attempt %d/%d", score, total)
	}
	if n := dbtest.CountRows(t, conn, "exam_attempts"); n != 1 {
		t.Fatalf("expected 1 attempt row, got %d", n)
	}
	var answers int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM exam_attempt_answers WHERE attempt_id = $1`, res.AttemptID).Scan(&answers); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if answers != 2 {
		t.Fatalf("expected 2 answer rows, got %d", answers)
	}

	if len(pub.keys) != 1 || pub.keys[0] != EventAttemptRecorded || pub.events[0].AttemptID != res.AttemptID {
		t.Fatalf("unexpected published events: %v %+v", pub.keys, pub.events)
	}
	if metrics.calls != 1 {
		t.Fatalf("expected one metrics call, got %d", metrics.calls)
	}

	body, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Score          int                        `json:"score"`
		TotalQuestions int                        `json:"total_questions"`
		Results        map[string]json.RawMessage `json:"results"`
		Message        *string                    `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if decoded.Score != 1 || decoded.TotalQuestions != 2 || len(decoded.Results) != 2 || decoded.Message != nil {
		t.Fatalf("unexpected response body: %s", body)
	}
}

func TestSubmitUnknownQuestionsAreScoredNotRejected(t *testing.T) {
	svc, conn := newSQLiteService(t)
	dbtest.SeedQuestion(t, conn, "test2", 1, "D")

	res, err := svc.Submit(context.Background(), SubmitInput{
		TestID:  "test2",
		UserID:  3,
		Answers: Answers{{"1", "d"}, {"500", "A"}, {"abc", "B"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 1 || res.TotalQuestions != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, v := range res.Results[1:] {
		if v.Correct || v.CorrectAnswer != NotFoundAnswer {
			t.Fatalf("expected not-found verdict, got %+v", v)
		}
	}
}

func TestSubmitScoresEachQuestionOnce(t *testing.T) {
	tests := []struct {
		name    string
		answers Answers
	}{
		{name: "leading zeros", answers: Answers{{"1", "A"}, {"01", "A"}, {"001", "A"}}},
		{name: "surrounding spaces", answers: Answers{{"1", "A"}, {" 1", "A"}, {"1 ", "A"}}},
		{name: "signs", answers: Answers{{"1", "A"}, {"+1", "A"}, {"-1", "A"}}},
		{name: "mixed", answers: Answers{{"1", "A"}, {"01", "A"}, {" 1", "A"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, conn := newSQLiteService(t)
			dbtest.SeedQuestion(t, conn, "test1", 1, "A")

			res, err := svc.Submit(context.Background(), SubmitInput{TestID: "test1", UserID: 5, Answers: tt.answers})
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if res.Score != 1 || res.TotalQuestions != 3 {
				t.Fatalf("expected 1/3, got %d/%d", res.Score, res.TotalQuestions)
			}
			if !res.Results[0].Correct {
				t.Fatalf("canonical id should be correct: %+v", res.Results[0])
			}
			for _, v := range res.Results[1:] {
				if v.Correct || v.CorrectAnswer != NotFoundAnswer {
					t.Fatalf("expected not-found verdict for %q, got %+v", v.QuestionID, v)
				}
			}

			var stored int
			if err := conn.QueryRow(`SELECT score FROM exam_attempts WHERE id = $1`, res.AttemptID).Scan(&stored); err != nil {
				t.Fatalf("read attempt: %v", err)
			}
			if stored != 1 {
				t.Fatalf("expected stored score 1, got %d", stored)
			}
		})
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, conn := newSQLiteService(t)
	dbtest.SeedQuestion(t, conn, "test1", 1, "A")
	ctx := context.Background()

	if _, err := svc.Submit(ctx, SubmitInput{TestID: "test99", UserID: 1, Answers: Answers{{"1", "A"}}}); !errors.Is(err, ErrInvalidTestID) {
		t.Fatalf("expected ErrInvalidTestID, got %v", err)
	}
	if _, err := svc.Submit(ctx, SubmitInput{TestID: "test1", UserID: 1, Answers: nil}); !errors.Is(err, ErrNoAnswers) {
		t.Fatalf("expected ErrNoAnswers, got %v", err)
	}

	res, err := svc.Submit(ctx, SubmitInput{TestID: "test1", UserID: 1, Answers: Answers{}})
	if err != nil {
		t.Fatalf("empty submit: %v", err)
	}
	if res.Score != 0 || res.Message != NoAnswersMessage || res.AttemptID != 0 {
		t.Fatalf("unexpected empty result: %+v", res)
	}

	if n := dbtest.CountRows(t, conn, "exam_attempts"); n != 0 {
		t.Fatalf("expected no attempt rows, got %d", n)
	}
}

func TestSubmitEmptyAnswersSkipsStorage(t *testing.T) {
	svc := NewService(question.DefaultCatalog(), failingResolver{}, NewRecorder(nil))
	res, err := svc.Submit(context.Background(), SubmitInput{TestID: "test3", UserID: 1, Answers: Answers{}})
	if err != nil {
		t.Fatalf("expected degenerate success, got %v", err)
	}
	b, _ := json.Marshal(res)
	if string(b) != `{"score":0,"message":"No questions answered."}` {
		t.Fatalf("unexpected body %s", b)
	}
}

func TestSubmitResolverFailureIsPersistenceError(t *testing.T) {
	svc := NewService(question.DefaultCatalog(), failingResolver{}, NewRecorder(nil))
	_, err := svc.Submit(context.Background(), SubmitInput{TestID: "test1", UserID: 1, Answers: Answers{{"1", "A"}}})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestSubmitRecorderFailureLeavesNoAttempt(t *testing.T) {
	pub := &recordingPublisher{}
	svc, conn := newSQLiteService(t, WithPublisher(pub))
	installAnswerFailureTrigger(t, conn)
	dbtest.SeedQuestion(t, conn, "test1", 1, "A")

	_, err := svc.Submit(context.Background(), SubmitInput{
		TestID:  "test1",
		UserID:  1,
		Answers: Answers{{"1", "A"}, {"boom", "B"}},
	})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if n := dbtest.CountRows(t, conn, "exam_attempts"); n != 0 {
		t.Fatalf("expected no attempt rows, got %d", n)
	}
	if len(pub.keys) != 0 {
		t.Fatalf("nothing should be published for a failed submission, got %v", pub.keys)
	}
}

func TestSubmitPublishFailureDoesNotFailSubmission(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, conn := newSQLiteService(t, WithPublisher(pub))
	dbtest.SeedQuestion(t, conn, "test1", 1, "A")

	res, err := svc.Submit(context.Background(), SubmitInput{TestID: "test1", UserID: 1, Answers: Answers{{"1", "A"}}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 1 || res.AttemptID <= 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestResubmissionCreatesIndependentAttempts(t *testing.T) {
	svc, conn := newSQLiteService(t)
	dbtest.SeedQuestion(t, conn, "test4", 1, "C")
	in := SubmitInput{TestID: "test4", UserID: 8, Answers: Answers{{"1", "C"}}}

	first, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first.AttemptID == second.AttemptID {
		t.Fatalf("expected distinct attempts, got %d twice", first.AttemptID)
	}
	if first.Score != second.Score {
		t.Fatalf("grading is not repeatable: %d vs %d", first.Score, second.Score)
	}
	if n := dbtest.CountRows(t, conn, "exam_attempts"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}
