package exam

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// NotFoundAnswer is stored as the correct answer of a verdict whose question
// id has no entry in the answer key.
const NotFoundAnswer = "Question ID not found"

type SubmittedAnswer struct {
	QuestionID string
	Value      string
}

// Answers is an ordered question id → answer mapping. Decoding a JSON object
// keeps the order keys first appear in; a repeated key overwrites the value
// but keeps its first position.
type Answers []SubmittedAnswer

func (a *Answers) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("answers must be an object")
	}

	out := make(Answers, 0)
	pos := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		val, err := answerValue(raw)
		if err != nil {
			return fmt.Errorf("answer for %q: %w", key, err)
		}

		if i, seen := pos[key]; seen {
			out[i].Value = val
			continue
		}
		pos[key] = len(out)
		out = append(out, SubmittedAnswer{QuestionID: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

// answerValue renders scalars the way a client would have typed them and
// rejects nested values.
func answerValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", errors.New("answer must be a scalar")
	default:
		return string(raw), nil
	}
}

// Verdict is the outcome for one submitted question id.
type Verdict struct {
	QuestionID    string `json:"-"`
	UserAnswer    string `json:"user_answer"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
}

// Results encodes verdicts as a JSON object keyed by question id, in
// submission order.
type Results []Verdict

func (r Results) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v.QuestionID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Score grades every submitted answer against the key. It never fails: ids
// missing from the key are incorrect and carry NotFoundAnswer.
func Score(submitted []SubmittedAnswer, key map[string]string) (int, []Verdict) {
	score := 0
	verdicts := make([]Verdict, 0, len(submitted))
	for _, s := range submitted {
		v := Verdict{QuestionID: s.QuestionID, UserAnswer: s.Value}
		if correct, ok := key[s.QuestionID]; ok {
			v.CorrectAnswer = correct
			v.Correct = answersMatch(s.Value, correct)
		} else {
			v.CorrectAnswer = NotFoundAnswer
		}
		if v.Correct {
			score++
		}
		verdicts = append(verdicts, v)
	}
	return score, verdicts
}

func answersMatch(given, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(correct))
}
