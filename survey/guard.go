package survey

import (
	"context"
	"errors"
	"fmt"
)

var ErrAlreadySubmitted = errors.New("answers already submitted with this email")

type SubmissionChecker interface {
	HasSubmitted(ctx context.Context, surveyID int, email string) (bool, error)
}

// CheckNotSubmitted fails with ErrAlreadySubmitted when the respondent has
// answered the survey before. It is a pre-check only: the store's
// uniqueness constraint is what actually rejects a racing insert.
func CheckNotSubmitted(ctx context.Context, checker SubmissionChecker, surveyID int, email string) error {
	found, err := checker.HasSubmitted(ctx, surveyID, NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if found {
		return ErrAlreadySubmitted
	}
	return nil
}
