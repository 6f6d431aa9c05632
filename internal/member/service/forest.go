package service

import (
	"context"
	"sort"

	"canvass/internal/member/models"
	id "canvass/pkg/domain"
	dErrors "canvass/pkg/domain-errors"
)

// BuildForest flattens the full recruiting network into a pre-order list.
//
// Roots are members with no referrer, ordered by creation time. Each root's
// subtree follows it immediately, depth first, siblings ordered by creation
// time. Level is depth from the root (root = 0) and RecruitCount is the
// number of direct recruits. An empty platform yields an empty list.
func (s *Service) BuildForest(ctx context.Context) ([]models.NetworkNode, error) {
	members, err := s.members.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load members")
	}
	if len(members) == 0 {
		return []models.NetworkNode{}, nil
	}

	byParent := make(map[id.MemberID][]models.Member)
	var roots []models.Member
	for _, m := range members {
		if m.InvitedBy == nil {
			roots = append(roots, m)
			continue
		}
		byParent[*m.InvitedBy] = append(byParent[*m.InvitedBy], m)
	}
	byCreation := func(list []models.Member) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].ID.String() < list[j].ID.String()
			}
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		})
	}
	byCreation(roots)
	for _, children := range byParent {
		byCreation(children)
	}

	type frame struct {
		member models.Member
		level  int
	}
	nodes := make([]models.NetworkNode, 0, len(members))
	var stack []frame
	// Roots are pushed in reverse so the stack pops them in creation order.
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{member: roots[i], level: 0})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := byParent[top.member.ID]
		nodes = append(nodes, models.NetworkNode{
			MemberID:     top.member.ID,
			DisplayName:  top.member.DisplayName,
			RecruitCount: len(children),
			Level:        top.level,
		})
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{member: children[i], level: top.level + 1})
		}
	}

	// A row count mismatch means a referral cycle kept some members off the
	// forest; surface it rather than return a partial report.
	if len(nodes) != len(members) {
		return nil, dErrors.New(dErrors.CodeInternal, "network contains unreachable members")
	}
	return nodes, nil
}
