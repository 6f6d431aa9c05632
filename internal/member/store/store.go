package store

import (
	"context"

	"canvass/internal/member/models"
	id "canvass/pkg/domain"
)

// MemberStore persists members. Implementations must enforce uniqueness of
// external id and invite code; the application-level checks in the service
// are a fast path, the store is the final arbiter.
type MemberStore interface {
	// Create inserts a new member atomically.
	// Returns sentinel.ErrConflict when external id or invite code collide.
	Create(ctx context.Context, member models.Member) error

	// UpdateProfile refreshes the mutable fields (email, display name).
	UpdateProfile(ctx context.Context, memberID id.MemberID, email, displayName string) error

	// FindByExternalID returns sentinel.ErrNotFound when absent.
	FindByExternalID(ctx context.Context, externalID string) (models.Member, error)

	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, memberID id.MemberID) (models.Member, error)

	// FindByInviteCode returns sentinel.ErrNotFound when absent.
	FindByInviteCode(ctx context.Context, code string) (models.Member, error)

	// InviteCodeExists reports whether any member holds the code.
	InviteCodeExists(ctx context.Context, code string) (bool, error)

	// CountRecruits counts direct children of the member.
	CountRecruits(ctx context.Context, memberID id.MemberID) (int, error)

	// ListAll returns every member; the network report indexes the full
	// table in memory, so no ordering is required here.
	ListAll(ctx context.Context) ([]models.Member, error)
}
