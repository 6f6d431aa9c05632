package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"canvass/internal/group/models"
	id "canvass/pkg/domain"
	"canvass/pkg/platform/sentinel"
	"canvass/pkg/platform/tx"
)

// PostgresStore persists groups in PostgreSQL. The composite primary key on
// (group_id, member_id) enforces membership uniqueness.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateWithFounder(ctx context.Context, group models.Group, founder models.Membership) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.Resolve(ctx, s.db)
		_, err := q.ExecContext(ctx, `
			INSERT INTO groups (id, name, description, founder_id, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			group.ID.String(), group.Name, group.Description,
			group.FounderID.String(), group.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert group: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO group_memberships (group_id, member_id, role, joined_at)
			VALUES ($1, $2, $3, $4)`,
			founder.GroupID.String(), founder.MemberID.String(),
			string(founder.Role), founder.JoinedAt,
		)
		if err != nil {
			return fmt.Errorf("insert founder membership: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, groupID id.GroupID) (models.Group, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, name, description, founder_id, created_at
		FROM groups WHERE id = $1`, groupID.String())

	var (
		group    models.Group
		rawID    string
		rawFound string
	)
	err := row.Scan(&rawID, &group.Name, &group.Description, &rawFound, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Group{}, sentinel.ErrNotFound
		}
		return models.Group{}, fmt.Errorf("scan group: %w", err)
	}
	gid, err := uuid.Parse(rawID)
	if err != nil {
		return models.Group{}, fmt.Errorf("scan group id: %w", err)
	}
	fid, err := uuid.Parse(rawFound)
	if err != nil {
		return models.Group{}, fmt.Errorf("scan group founder id: %w", err)
	}
	group.ID = id.GroupID(gid)
	group.FounderID = id.MemberID(fid)
	return group, nil
}

func (s *PostgresStore) AddMember(ctx context.Context, membership models.Membership) error {
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `
		INSERT INTO group_memberships (group_id, member_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`,
		membership.GroupID.String(), membership.MemberID.String(),
		string(membership.Role), membership.JoinedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindMembership(ctx context.Context, groupID id.GroupID, memberID id.MemberID) (models.Membership, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT group_id, member_id, role, joined_at
		FROM group_memberships WHERE group_id = $1 AND member_id = $2`,
		groupID.String(), memberID.String())
	membership, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Membership{}, sentinel.ErrNotFound
		}
		return models.Membership{}, err
	}
	return membership, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, groupID id.GroupID) ([]models.Membership, error) {
	return s.listMemberships(ctx, `
		SELECT group_id, member_id, role, joined_at
		FROM group_memberships WHERE group_id = $1
		ORDER BY joined_at ASC`, groupID.String())
}

func (s *PostgresStore) ListByMember(ctx context.Context, memberID id.MemberID) ([]models.Membership, error) {
	return s.listMemberships(ctx, `
		SELECT group_id, member_id, role, joined_at
		FROM group_memberships WHERE member_id = $1
		ORDER BY joined_at ASC`, memberID.String())
}

func (s *PostgresStore) CountMembers(ctx context.Context, groupID id.GroupID) (int, error) {
	var count int
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_memberships WHERE group_id = $1`,
		groupID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count group members: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) listMemberships(ctx context.Context, query string, arg any) ([]models.Membership, error) {
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return memberships, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMembership(row rowScanner) (models.Membership, error) {
	var (
		membership models.Membership
		rawGroup   string
		rawMember  string
		rawRole    string
	)
	if err := row.Scan(&rawGroup, &rawMember, &rawRole, &membership.JoinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Membership{}, err
		}
		return models.Membership{}, fmt.Errorf("scan membership: %w", err)
	}
	gid, err := uuid.Parse(rawGroup)
	if err != nil {
		return models.Membership{}, fmt.Errorf("scan membership group id: %w", err)
	}
	mid, err := uuid.Parse(rawMember)
	if err != nil {
		return models.Membership{}, fmt.Errorf("scan membership member id: %w", err)
	}
	membership.GroupID = id.GroupID(gid)
	membership.MemberID = id.MemberID(mid)
	membership.Role = models.Role(rawRole)
	return membership, nil
}

// isUniqueViolation detects PostgreSQL error 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
