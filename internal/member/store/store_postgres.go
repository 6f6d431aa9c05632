package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"canvass/internal/member/models"
	id "canvass/pkg/domain"
	"canvass/pkg/platform/sentinel"
	"canvass/pkg/platform/tx"
)

// PostgresStore persists members in PostgreSQL. Unique indexes on
// external_id and invite_code enforce the identity invariants.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const memberColumns = `id, external_id, email, display_name, invite_code, invited_by, is_admin, created_at`

func (s *PostgresStore) Create(ctx context.Context, member models.Member) error {
	var invitedBy any
	if member.InvitedBy != nil {
		invitedBy = member.InvitedBy.String()
	}
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `
		INSERT INTO members (id, external_id, email, display_name, invite_code, invited_by, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		member.ID.String(), member.ExternalID, member.Email, member.DisplayName,
		member.InviteCode, invitedBy, member.IsAdmin, member.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, memberID id.MemberID, email, displayName string) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `
		UPDATE members SET email = $2, display_name = $3 WHERE id = $1`,
		memberID.String(), email, displayName,
	)
	if err != nil {
		return fmt.Errorf("update member profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (models.Member, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE external_id = $1`, externalID)
	return scanMember(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, memberID id.MemberID) (models.Member, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, memberID.String())
	return scanMember(row)
}

func (s *PostgresStore) FindByInviteCode(ctx context.Context, code string) (models.Member, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE invite_code = $1`, code)
	return scanMember(row)
}

func (s *PostgresStore) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM members WHERE invite_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("invite code exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CountRecruits(ctx context.Context, memberID id.MemberID) (int, error) {
	var count int
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE invited_by = $1`, memberID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recruits: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]models.Member, error) {
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (models.Member, error) {
	var (
		member     models.Member
		rawID      string
		invitedBy  sql.NullString
		externalID string
	)
	err := row.Scan(&rawID, &externalID, &member.Email, &member.DisplayName,
		&member.InviteCode, &invitedBy, &member.IsAdmin, &member.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Member{}, sentinel.ErrNotFound
		}
		return models.Member{}, fmt.Errorf("scan member: %w", err)
	}

	memberID, err := uuid.Parse(rawID)
	if err != nil {
		return models.Member{}, fmt.Errorf("scan member id: %w", err)
	}
	member.ID = id.MemberID(memberID)
	member.ExternalID = externalID

	if invitedBy.Valid {
		parentID, err := uuid.Parse(invitedBy.String)
		if err != nil {
			return models.Member{}, fmt.Errorf("scan member invited_by: %w", err)
		}
		parent := id.MemberID(parentID)
		member.InvitedBy = &parent
	}
	return member, nil
}

// isUniqueViolation detects PostgreSQL error 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
