package models

import (
	"time"

	id "canvass/pkg/domain"
)

// Member is an authenticated platform user with a recruiting identity.
// ExternalID and InviteCode are immutable once assigned; Email and
// DisplayName refresh on later logins.
type Member struct {
	ID          id.MemberID
	ExternalID  string
	Email       string
	DisplayName string
	InviteCode  string
	// InvitedBy points at the recruiter, nil for root members. The
	// recruitment graph is a forest: a member is never its own ancestor.
	InvitedBy *id.MemberID
	IsAdmin   bool
	CreatedAt time.Time
}

// IsRoot reports whether the member joined without a referral.
func (m Member) IsRoot() bool {
	return m.InvitedBy == nil
}

// NetworkNode is one row of the flattened recruiting forest. Level is depth
// from the node's root (roots are level 0); rendering the report is a plain
// loop over nodes with Level-based indentation.
type NetworkNode struct {
	MemberID     id.MemberID `json:"memberID"`
	DisplayName  string      `json:"displayName"`
	RecruitCount int         `json:"recruitCount"`
	Level        int         `json:"level"`
}
