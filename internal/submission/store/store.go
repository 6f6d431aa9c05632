package store

import (
	"context"

	"canvass/internal/submission/models"
)

// SubmissionStore persists voter submissions.
type SubmissionStore interface {
	// Create inserts a submission.
	Create(ctx context.Context, submission models.Submission) error

	// AnonymousSummary aggregates submissions without a voter id by
	// (name, email), most recent first.
	AnonymousSummary(ctx context.Context) ([]models.SummaryRow, error)
}
