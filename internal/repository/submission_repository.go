package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/lewisgerrard/divafitness-backend/internal/errors"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
)

// SubmissionRepositoryInterface is the read-only view of contact-form submissions.
type SubmissionRepositoryInterface interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]model.Submission, error)
	GetContactSubmission(ctx context.Context, id int64) (*model.Submission, error)
}

// SubmissionRepository reads contact_submissions. Rows without a service are
// newsletter sign-ups and are never returned.
type SubmissionRepository struct {
	DB *sqlx.DB
}

const submissionColumns = `id, name, email, phone, message, service, created_at`

func (r *SubmissionRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]model.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM contact_submissions
		WHERE created_at >= $1 AND service IS NOT NULL AND service <> ''
		ORDER BY created_at DESC
		LIMIT $2
	`
	subs := []model.Submission{}
	if err := r.DB.SelectContext(ctx, &subs, query, since, limit); err != nil {
		return nil, appErrors.NewExternalFailure("fetch submissions", err)
	}
	return subs, nil
}

func (r *SubmissionRepository) GetContactSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM contact_submissions
		WHERE id = $1 AND service IS NOT NULL AND service <> ''
	`
	var s model.Submission
	err := r.DB.GetContext(ctx, &s, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewSubmissionNotFound(id)
		}
		return nil, appErrors.NewExternalFailure("fetch submission", err)
	}
	return &s, nil
}
