// Package models defines the group domain entities.
package models

import (
	"time"

	id "canvass/pkg/domain"
)

// Role is a member's standing within a group.
type Role string

const (
	RoleFounder Role = "founder"
	RoleMember  Role = "member"
)

// Group is an organizing unit created by a member who has recruited at
// least one other member.
type Group struct {
	ID          id.GroupID
	Name        string
	Description string
	FounderID   id.MemberID
	CreatedAt   time.Time
}

// Membership ties a member to a group. The founder's membership row is
// created in the same transaction as the group itself.
type Membership struct {
	GroupID  id.GroupID
	MemberID id.MemberID
	Role     Role
	JoinedAt time.Time
}

// MembershipView is the read-model row ListMembership returns.
type MembershipView struct {
	GroupID     id.GroupID `json:"groupId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Role        Role       `json:"role"`
	MemberCount int        `json:"memberCount"`
	FounderName string     `json:"founderName"`
	JoinedAt    time.Time  `json:"joinedAt"`
}
