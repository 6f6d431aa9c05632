// Package domain holds typed identifiers and small domain values shared
// across services. Typed IDs prevent cross-entity assignment at compile time;
// parse helpers enforce validity at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "canvass/pkg/domain-errors"
)

type (
	// MemberID identifies an authenticated platform member.
	MemberID uuid.UUID

	// GroupID identifies a civic group.
	GroupID uuid.UUID

	// SubmissionID identifies a recorded voter submission.
	SubmissionID uuid.UUID
)

// NewMemberID mints a fresh member id.
func NewMemberID() MemberID { return MemberID(uuid.New()) }

// NewGroupID mints a fresh group id.
func NewGroupID() GroupID { return GroupID(uuid.New()) }

// NewSubmissionID mints a fresh submission id.
func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }

func (id MemberID) String() string     { return uuid.UUID(id).String() }
func (id GroupID) String() string      { return uuid.UUID(id).String() }
func (id SubmissionID) String() string { return uuid.UUID(id).String() }

func (id MemberID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// ParseMemberID constructs a MemberID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseMemberID(s string) (MemberID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return MemberID{}, err
	}
	return MemberID(u), nil
}

// ParseGroupID constructs a GroupID from external input.
func ParseGroupID(s string) (GroupID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return GroupID{}, err
	}
	return GroupID(u), nil
}

// ParseSubmissionID constructs a SubmissionID from external input.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SubmissionID{}, err
	}
	return SubmissionID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
