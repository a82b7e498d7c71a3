package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

const minImportPasswordLen = 8

type UserImportRowError struct {
	Row      int    `json:"row"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error"`
}

type UserImportReport struct {
	TotalRows   int                  `json:"total_rows"`
	CreatedRows int                  `json:"created_rows"`
	UpdatedRows int                  `json:"updated_rows"`
	FailedRows  int                  `json:"failed_rows"`
	Errors      []UserImportRowError `json:"errors"`
}

// ImportUsersExcel provisions learner and admin accounts from the first sheet
// of an xlsx workbook with username, password and role columns. New users need
// a password; existing users get their role updated and, when a password is
// given, their password reset.
func (s *Service) ImportUsersExcel(ctx context.Context, r io.Reader) (*UserImportReport, error) {
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
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := header["username"]; !ok {
		return nil, fmt.Errorf("%w: missing required column: username", ErrInvalidInput)
	}

	report := &UserImportReport{Errors: make([]UserImportRowError, 0)}
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

		username := get("username")
		password := get("password")
		if username == "" && password == "" && get("role") == "" {
			continue
		}
		report.TotalRows++

		fail := func(msg string) {
			report.FailedRows++
			report.Errors = append(report.Errors, UserImportRowError{Row: rowNo, Username: username, Error: msg})
		}

		role := normalizeRole(get("role"))
		if username == "" {
			fail("username is required")
			continue
		}
		if role == "" {
			fail("role must be admin or learner")
			continue
		}
		if password != "" && len(password) < minImportPasswordLen {
			fail(fmt.Sprintf("password must be at least %d characters", minImportPasswordLen))
			continue
		}

		var userID int64
		err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&userID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if password == "" {
				fail("password is required for new users")
				continue
			}
			if _, err := s.CreateUser(ctx, CreateUserInput{Username: username, Password: password, Role: role}); err != nil {
				fail("cannot create user")
				continue
			}
			report.CreatedRows++
		case err != nil:
			fail("cannot check existing user")
		default:
			if err := s.updateImportedUser(ctx, userID, password, role); err != nil {
				fail("cannot update user")
				continue
			}
			report.UpdatedRows++
		}
	}
	return report, nil
}

func (s *Service) updateImportedUser(ctx context.Context, userID int64, password, role string) error {
	if password == "" {
		_, err := s.db.ExecContext(ctx, `UPDATE users SET role = $2 WHERE id = $1`, userID, role)
		if err != nil {
			return fmt.Errorf("update user role: %w", err)
		}
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET role = $2, password_hash = $3 WHERE id = $1`, userID, role, string(hash))
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
