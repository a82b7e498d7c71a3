package question

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportReport struct {
	TestID      string           `json:"test_id"`
	TotalRows   int              `json:"total_rows"`
	SuccessRows int              `json:"success_rows"`
	FailedRows  int              `json:"failed_rows"`
	Errors      []ImportRowError `json:"errors"`
}

// ImportExcel loads questions for one test from the first sheet of an xlsx
// workbook. The header row must name the id, question and answer columns;
// option columns are optional. Invalid rows are reported and skipped, valid
// rows are upserted together.
func (s *Service) ImportExcel(ctx context.Context, testID string, r io.Reader) (*ImportReport, error) {
	if !s.catalog.Has(testID) {
		return nil, ErrInvalidTestID
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open excel: %v", ErrInvalidInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: excel sheet is empty", ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: no data rows found", ErrInvalidInput)
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[normalizeHeader(h)] = i
	}
	for _, col := range []string{"id", "question", "answer"} {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("%w: missing required column: %s", ErrInvalidInput, col)
		}
	}

	report := &ImportReport{TestID: testID, Errors: make([]ImportRowError, 0)}
	seen := map[int64]int{}
	valid := make([]QuestionInput, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		rowNo := i + 1
		row := rows[i]
		get := func(key string) string {
			idx, ok := header[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if isBlankRow(row) {
			continue
		}
		report.TotalRows++

		q, err := parseImportRow(get)
		if err == nil {
			if prev, dup := seen[q.ID]; dup {
				err = fmt.Errorf("duplicate id %d (first seen on row %d)", q.ID, prev)
			}
		}
		if err != nil {
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: err.Error()})
			continue
		}
		seen[q.ID] = rowNo
		valid = append(valid, q)
	}

	n, err := s.UpsertQuestions(ctx, testID, valid)
	if err != nil {
		return nil, err
	}
	report.SuccessRows = n
	return report, nil
}

func parseImportRow(get func(string) string) (QuestionInput, error) {
	id, err := strconv.ParseInt(get("id"), 10, 64)
	if err != nil || id <= 0 {
		return QuestionInput{}, errors.New("id must be a positive integer")
	}
	q := QuestionInput{
		ID:       id,
		Question: get("question"),
		OptionA:  get("option_a"),
		OptionB:  get("option_b"),
		OptionC:  get("option_c"),
		OptionD:  get("option_d"),
		Answer:   get("answer"),
	}
	if q.Question == "" {
		return QuestionInput{}, errors.New("question is required")
	}
	if q.Answer == "" {
		return QuestionInput{}, errors.New("answer is required")
	}
	return q, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return h
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
