package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"canvass/internal/audit"
	"canvass/internal/group/models"
	"canvass/internal/group/store"
	membermodels "canvass/internal/member/models"
	"canvass/internal/platform/metrics"
	id "canvass/pkg/domain"
	dErrors "canvass/pkg/domain-errors"
	"canvass/pkg/platform/sentinel"
	"canvass/pkg/requestcontext"
)

// maxGroupNameLength bounds group names.
const maxGroupNameLength = 100

// MemberReader is the slice of the member domain the group service needs:
// recruit counts gate group creation and parent pointers gate AddMember.
type MemberReader interface {
	FindByID(ctx context.Context, memberID id.MemberID) (membermodels.Member, error)
	CountRecruits(ctx context.Context, memberID id.MemberID) (int, error)
}

// Service enforces the group rules: founders must have recruited, groups
// never exist without their founder, and only your own recruits may be added.
type Service struct {
	groups  store.GroupStore
	members MemberReader

	logger  *slog.Logger
	auditor audit.Publisher
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(groups store.GroupStore, members MemberReader, opts ...Option) *Service {
	s := &Service{groups: groups, members: members}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGroup creates a group and its founder membership atomically. Only
// members who have recruited at least one other member may found a group.
func (s *Service) CreateGroup(ctx context.Context, founderID id.MemberID, name, description string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, dErrors.New(dErrors.CodeValidation, "group name is required")
	}
	if len(name) > maxGroupNameLength {
		return models.Group{}, dErrors.Newf(dErrors.CodeValidation, "group name exceeds %d characters", maxGroupNameLength)
	}

	recruits, err := s.members.CountRecruits(ctx, founderID)
	if err != nil {
		return models.Group{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check recruit count")
	}
	if recruits < 1 {
		return models.Group{}, dErrors.New(dErrors.CodeForbidden, "recruit at least one member before founding a group")
	}

	now := requestcontext.Now(ctx)
	group := models.Group{
		ID:          id.NewGroupID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		FounderID:   founderID,
		CreatedAt:   now,
	}
	founder := models.Membership{
		GroupID:  group.ID,
		MemberID: founderID,
		Role:     models.RoleFounder,
		JoinedAt: now,
	}
	if err := s.groups.CreateWithFounder(ctx, group, founder); err != nil {
		return models.Group{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create group")
	}

	s.logAudit(ctx, audit.EventGroupCreated, founderID, group.ID.String())
	if s.metrics != nil {
		s.metrics.GroupsCreated.Inc()
	}
	return group, nil
}

// AddMember adds one of the acting member's own recruits to a group the
// acting member belongs to. Adding someone who is already a member is a
// benign no-op.
func (s *Service) AddMember(ctx context.Context, groupID id.GroupID, actingMemberID, recruitID id.MemberID) error {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "group not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
	}

	if _, err := s.groups.FindMembership(ctx, groupID, actingMemberID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "you are not a member of this group")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}

	recruit, err := s.members.FindByID(ctx, recruitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "recruit not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recruit")
	}
	if recruit.InvitedBy == nil || *recruit.InvitedBy != actingMemberID {
		return dErrors.New(dErrors.CodeForbidden, "only your own recruits may be added")
	}

	err = s.groups.AddMember(ctx, models.Membership{
		GroupID:  groupID,
		MemberID: recruitID,
		Role:     models.RoleMember,
		JoinedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Already a member; the desired state holds.
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add group member")
	}

	s.logAudit(ctx, audit.EventGroupMemberAdded, recruitID, groupID.String())
	if s.metrics != nil {
		s.metrics.GroupMembersAdded.Inc()
	}
	return nil
}

// ListMembership returns every group the member belongs to, with role,
// member count, founder name, and joined date.
func (s *Service) ListMembership(ctx context.Context, memberID id.MemberID) ([]models.MembershipView, error) {
	memberships, err := s.groups.ListByMember(ctx, memberID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memberships")
	}

	views := make([]models.MembershipView, 0, len(memberships))
	for _, membership := range memberships {
		group, err := s.groups.FindByID(ctx, membership.GroupID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
		}
		count, err := s.groups.CountMembers(ctx, membership.GroupID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count group members")
		}
		founderName := ""
		if founder, err := s.members.FindByID(ctx, group.FounderID); err == nil {
			founderName = founder.DisplayName
		}
		views = append(views, models.MembershipView{
			GroupID:     group.ID,
			Name:        group.Name,
			Description: group.Description,
			Role:        membership.Role,
			MemberCount: count,
			FounderName: founderName,
			JoinedAt:    membership.JoinedAt,
		})
	}
	return views, nil
}

func (s *Service) logAudit(ctx context.Context, action string, memberID id.MemberID, subject string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"member_id", memberID.String(),
			"subject", subject,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			MemberID: memberID.String(),
			Action:   action,
			Subject:  subject,
		})
	}
}
