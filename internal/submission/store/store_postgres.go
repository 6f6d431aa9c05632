package store

import (
	"context"
	"database/sql"
	"fmt"

	"canvass/internal/submission/models"
	"canvass/pkg/platform/tx"
)

// PostgresStore persists submissions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, submission models.Submission) error {
	var voterID any
	if submission.VoterID != nil && *submission.VoterID != "" {
		voterID = *submission.VoterID
	}
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `
		INSERT INTO submissions (id, name, voter_id, email, comment, generated_response, candidate_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		submission.ID.String(), submission.Name, voterID, submission.Email,
		submission.Comment, submission.GeneratedResponse, submission.CandidateKey,
		submission.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) AnonymousSummary(ctx context.Context) ([]models.SummaryRow, error) {
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, `
		SELECT name, COALESCE(email, ''), COUNT(*), MAX(created_at)
		FROM submissions
		WHERE voter_id IS NULL
		GROUP BY name, email
		ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("anonymous summary: %w", err)
	}
	defer rows.Close()

	var summary []models.SummaryRow
	for rows.Next() {
		var row models.SummaryRow
		if err := rows.Scan(&row.Name, &row.Email, &row.Count, &row.LastSubmittedAt); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		summary = append(summary, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("anonymous summary: %w", err)
	}
	return summary, nil
}
