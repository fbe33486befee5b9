package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/otp"
	"github.com/mbolis/quick-survey/survey"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("stale version")
	ErrUsernameTaken = errors.New("username already taken")
)

// Store is the persistence layer of the service. Every survey operation on
// the admin side takes the owning company id explicitly.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// ---- companies and owner accounts

func (s *Store) CreateCompany(ctx context.Context, c model.Company, username string, passwordHash []byte) (model.Company, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()

	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO company (id, name, domain, logo_url, primary_color, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Domain, c.LogoURL, c.PrimaryColor, c.CreatedAt,
	)
	if err != nil {
		return c, fmt.Errorf("insert company: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user (username, password_hash, company_id) VALUES (?, ?, ?)`,
		username, passwordHash, c.ID,
	)
	if isUniqueViolation(err) {
		return c, ErrUsernameTaken
	}
	if err != nil {
		return c, fmt.Errorf("insert user: %w", err)
	}

	return c, tx.Commit()
}

func (s *Store) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	c := model.Company{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, domain, logo_url, primary_color, created_at
		FROM company WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &c.Domain, &c.LogoURL, &c.PrimaryColor, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) AccountCredentials(ctx context.Context, username string) (hash []byte, companyID string, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT password_hash, company_id FROM user WHERE username = ?",
		username,
	).Scan(&hash, &companyID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

func (s *Store) StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)",
		username, tokenID, refreshTokenID, expiration.UTC(),
	)
	return err
}

// ConsumeToken deletes a refresh token record and reports whether it
// existed and was still valid at now.
func (s *Store) ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string, now time.Time) (bool, error) {
	var expiration time.Time
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?
		RETURNING expiration`,
		username, tokenID, refreshTokenID,
	).Scan(&expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expiration.After(now), nil
}

// ---- surveys

func (s *Store) CreateSurvey(ctx context.Context, companyID string, sv model.Survey) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var surveyID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO survey (company_id, title, description, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		companyID, sv.Title, sv.Description, sv.Published, now, now,
	).Scan(&surveyID)
	if err != nil {
		return 0, fmt.Errorf("insert survey: %w", err)
	}

	if err := insertQuestions(ctx, tx, surveyID, sv.Questions, nil); err != nil {
		return 0, err
	}
	return surveyID, tx.Commit()
}

func (s *Store) ListSurveys(ctx context.Context, companyID string) ([]model.Survey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, version, title, description, published, created_at, updated_at
		FROM survey
		WHERE company_id = ?
		ORDER BY id`,
		companyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	surveys := []model.Survey{}
	for rows.Next() {
		sv := model.Survey{}
		err = rows.Scan(&sv.ID, &sv.CompanyID, &sv.Version, &sv.Title, &sv.Description, &sv.Published, &sv.CreatedAt, &sv.UpdatedAt)
		if err != nil {
			return nil, err
		}
		surveys = append(surveys, sv)
	}
	return surveys, rows.Err()
}

// GetSurvey loads a survey and its questions ordered by position, whoever
// owns it.
func (s *Store) GetSurvey(ctx context.Context, id int) (*model.Survey, error) {
	sv := model.Survey{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, version, title, description, published, created_at, updated_at
		FROM survey WHERE id = ?`,
		id,
	).Scan(&sv.ID, &sv.CompanyID, &sv.Version, &sv.Title, &sv.Description, &sv.Published, &sv.CreatedAt, &sv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sv.Questions, err = s.questions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &sv, nil
}

// GetCompanySurvey is GetSurvey restricted to the surveys of companyID.
func (s *Store) GetCompanySurvey(ctx context.Context, companyID string, id int) (*model.Survey, error) {
	sv, err := s.GetSurvey(ctx, id)
	if err != nil {
		return nil, err
	}
	if sv.CompanyID != companyID {
		return nil, ErrNotFound
	}
	return sv, nil
}

func (s *Store) questions(ctx context.Context, surveyID int) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, survey_id, text, type, options, required, position
		FROM question
		WHERE survey_id = ?
		ORDER BY position`,
		surveyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		q := model.Question{}
		var opts string
		err = rows.Scan(&q.ID, &q.SurveyID, &q.Text, &q.Type, &opts, &q.Required, &q.Position)
		if err != nil {
			return nil, err
		}
		if opts != "" {
			if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
				return nil, fmt.Errorf("question %d options: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// UpdateSurvey saves title and description under the optimistic lock on
// sv.Version, then replaces the whole question batch. Questions that keep
// the id of one of the deleted rows are reinserted under that id.
func (s *Store) UpdateSurvey(ctx context.Context, companyID string, sv model.Survey) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE survey
		SET
			title = ?,
			description = ?,
			version = version+1,
			updated_at = ?
		WHERE id = ?
			AND company_id = ?
			AND version = ?`,
		sv.Title, sv.Description, time.Now().UTC(),
		sv.ID, companyID, sv.Version,
	)
	if err != nil {
		return fmt.Errorf("update survey: %w", err)
	}
	// optimistic lock
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n < 1 {
		var owner string
		err = tx.QueryRowContext(ctx, "SELECT company_id FROM survey WHERE id = ?", sv.ID).Scan(&owner)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if owner != companyID {
			return ErrNotFound
		}
		return ErrConflict
	}

	existing := map[int]bool{}
	rows, err := tx.QueryContext(ctx, "SELECT id FROM question WHERE survey_id = ?", sv.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		existing[id] = true
	}
	rows.Close()

	_, err = tx.ExecContext(ctx, "DELETE FROM question WHERE survey_id = ?", sv.ID)
	if err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	if err := insertQuestions(ctx, tx, sv.ID, sv.Questions, existing); err != nil {
		return err
	}
	return tx.Commit()
}

func insertQuestions(ctx context.Context, tx *sql.Tx, surveyID int, questions []model.Question, reusable map[int]bool) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO question (id, survey_id, text, type, options, required, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	defer stmt.Close()

	for _, q := range questions {
		var id any
		if reusable[q.ID] {
			id = q.ID
			delete(reusable, q.ID)
		}

		var optionsJson []byte
		if len(q.Options) > 0 {
			optionsJson, err = json.Marshal(q.Options)
			if err != nil {
				return err
			}
		}
		_, err = stmt.ExecContext(ctx, id, surveyID, q.Text, q.Type, string(optionsJson), q.Required, q.Position)
		if err != nil {
			return fmt.Errorf("insert question %q: %w", q.Text, err)
		}
	}
	return nil
}

func (s *Store) SetPublished(ctx context.Context, companyID string, id int, published bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE survey SET published = ?, updated_at = ?
		WHERE id = ? AND company_id = ?`,
		published, time.Now().UTC(), id, companyID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n < 1 {
		return ErrNotFound
	}
	return nil
}

// DeleteSurvey removes a survey; questions, submissions and answers go
// with it.
func (s *Store) DeleteSurvey(ctx context.Context, companyID string, id int) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM survey WHERE id = ? AND company_id = ?",
		id, companyID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n < 1 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IsPublished(ctx context.Context, id int) (bool, error) {
	var published bool
	err := s.db.QueryRowContext(ctx, "SELECT published FROM survey WHERE id = ?", id).Scan(&published)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	return published, err
}

// ---- submissions

func (s *Store) HasSubmitted(ctx context.Context, surveyID int, email string) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM submission
		WHERE survey_id = ?
			AND email = ?`,
		surveyID, email,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

// InsertSubmission records one respondent's answer set atomically. A second
// set for the same survey and email fails with survey.ErrAlreadySubmitted,
// even when both inserts race past the pre-check.
func (s *Store) InsertSubmission(ctx context.Context, surveyID int, email string, at time.Time, answers map[int]model.AnswerInput) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	at = at.UTC()
	var submissionID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO submission (survey_id, email, submitted_at) VALUES (?, ?, ?)
		RETURNING id`,
		surveyID, email, at,
	).Scan(&submissionID)
	if isUniqueViolation(err) {
		return 0, survey.ErrAlreadySubmitted
	}
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO answer (submission_id, survey_id, question_id, email, answer_text, answer_value, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for questionID, a := range answers {
		_, err = stmt.ExecContext(ctx, submissionID, surveyID, questionID, email, a.Text, string(a.Value), at)
		if err != nil {
			return 0, fmt.Errorf("insert answer to question %d: %w", questionID, err)
		}
	}

	return submissionID, tx.Commit()
}

func (s *Store) ListAnswers(ctx context.Context, surveyID int) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, survey_id, question_id, email, answer_text, answer_value, submitted_at
		FROM answer
		WHERE survey_id = ?
		ORDER BY submitted_at, id`,
		surveyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		a := model.Answer{}
		var value string
		err = rows.Scan(&a.ID, &a.SurveyID, &a.QuestionID, &a.Email, &a.Text, &value, &a.SubmittedAt)
		if err != nil {
			return nil, err
		}
		if value != "" {
			a.Value = json.RawMessage(value)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ---- one-time codes

var _ otp.Store = (*Store)(nil)

func (s *Store) InsertCode(ctx context.Context, c otp.Code, notSince time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO email_code (id, email, code_hash, created_at, expires_at)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM email_code
			WHERE email = ?
				AND created_at > ?
		)`,
		c.ID, c.Email, c.Hash, c.CreatedAt.UTC(), c.ExpiresAt.UTC(),
		c.Email, notSince.UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n < 1 {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) LatestCode(ctx context.Context, email string) (*otp.Code, error) {
	c := otp.Code{}
	var consumed sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, code_hash, created_at, expires_at, attempts, consumed_at
		FROM email_code
		WHERE email = ?
		ORDER BY created_at DESC
		LIMIT 1`,
		email,
	).Scan(&c.ID, &c.Email, &c.Hash, &c.CreatedAt, &c.ExpiresAt, &c.Attempts, &consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if consumed.Valid {
		c.ConsumedAt = &consumed.Time
	}
	return &c, nil
}

func (s *Store) ReserveAttempt(ctx context.Context, id string, max int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_code SET attempts = attempts+1
		WHERE id = ?
			AND attempts < ?
			AND consumed_at IS NULL`,
		id, max,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) ConsumeCode(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE email_code SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL",
		at.UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n < 1 {
		return otp.ErrCodeExpired
	}
	return nil
}

func (s *Store) DeleteCode(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM email_code WHERE id = ?", id)
	return err
}

func (s *Store) DeleteExpiredCodes(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM email_code WHERE expires_at < ?", before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
