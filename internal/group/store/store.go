package store

import (
	"context"

	"canvass/internal/group/models"
	id "canvass/pkg/domain"
)

// GroupStore persists groups and memberships. The (group, member) pair is
// unique at the storage layer; AddMember's conflict signal is what makes the
// already-member path a benign no-op in the service.
type GroupStore interface {
	// CreateWithFounder inserts the group and its founder membership row in
	// one transaction. A group must never exist without its founder row.
	CreateWithFounder(ctx context.Context, group models.Group, founder models.Membership) error

	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, groupID id.GroupID) (models.Group, error)

	// AddMember inserts a membership row.
	// Returns sentinel.ErrConflict when the member is already in the group.
	AddMember(ctx context.Context, membership models.Membership) error

	// FindMembership returns sentinel.ErrNotFound when the member does not
	// belong to the group.
	FindMembership(ctx context.Context, groupID id.GroupID, memberID id.MemberID) (models.Membership, error)

	// ListMembers returns every membership row of the group, joined-at
	// ascending.
	ListMembers(ctx context.Context, groupID id.GroupID) ([]models.Membership, error)

	// ListByMember returns every membership row of the member, joined-at
	// ascending.
	ListByMember(ctx context.Context, memberID id.MemberID) ([]models.Membership, error)

	// CountMembers counts the group's membership rows.
	CountMembers(ctx context.Context, groupID id.GroupID) (int, error)
}
