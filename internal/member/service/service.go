package service

import (
	"context"
	"errors"
	"log/slog"

	"canvass/internal/audit"
	"canvass/internal/member/invite"
	"canvass/internal/member/models"
	"canvass/internal/member/store"
	"canvass/internal/platform/metrics"
	id "canvass/pkg/domain"
	dErrors "canvass/pkg/domain-errors"
	pkgemail "canvass/pkg/email"
	"canvass/pkg/platform/sentinel"
	"canvass/pkg/requestcontext"
)

// Staging is the referral staging dependency: stage happens in the HTTP
// layer, consume happens here, inside member creation.
type Staging interface {
	Consume(ctx context.Context, sessionID string) (string, error)
}

// CodeGenerator mints unique invite codes.
type CodeGenerator interface {
	Generate(ctx context.Context) (code string, attempts int, err error)
}

// Identity is one external authentication result.
type Identity struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// Service resolves external identities into durable member records and
// builds the recruiting-network report.
type Service struct {
	members store.MemberStore
	codes   CodeGenerator
	staging Staging

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

// New constructs a Service.
func New(members store.MemberStore, codes CodeGenerator, staging Staging, opts ...Option) *Service {
	s := &Service{members: members, codes: codes, staging: staging}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveOrCreate turns an authentication result into a member record.
//
// Re-login path: the member exists; mutable profile fields refresh when the
// provider reports new values, and the same member is returned every time.
//
// First-login path: a fresh invite code is minted, the staged referral code
// (if any) is consumed and resolved to a referrer, and the member row is
// inserted with all fields set. A staged code that resolves to no member is
// dropped silently; the new member joins as an unattributed root.
func (s *Service) ResolveOrCreate(ctx context.Context, identity Identity) (models.Member, error) {
	if identity.ExternalID == "" {
		return models.Member{}, dErrors.New(dErrors.CodeInvalidInput, "external id is required")
	}
	if identity.DisplayName == "" {
		identity.DisplayName = pkgemail.DeriveDisplayName(identity.Email)
	}

	existing, err := s.members.FindByExternalID(ctx, identity.ExternalID)
	switch {
	case err == nil:
		return s.refreshProfile(ctx, existing, identity)
	case errors.Is(err, sentinel.ErrNotFound):
		return s.create(ctx, identity)
	default:
		return models.Member{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve member")
	}
}

func (s *Service) refreshProfile(ctx context.Context, member models.Member, identity Identity) (models.Member, error) {
	if member.Email == identity.Email && member.DisplayName == identity.DisplayName {
		return member, nil
	}
	if err := s.members.UpdateProfile(ctx, member.ID, identity.Email, identity.DisplayName); err != nil {
		return models.Member{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to refresh member profile")
	}
	member.Email = identity.Email
	member.DisplayName = identity.DisplayName
	return member, nil
}

func (s *Service) create(ctx context.Context, identity Identity) (models.Member, error) {
	code, attempts, err := s.codes.Generate(ctx)
	if err != nil {
		if errors.Is(err, invite.ErrCodeExhausted) {
			return models.Member{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not mint an invite code")
		}
		return models.Member{}, dErrors.Wrap(err, dErrors.CodeInternal, "invite code generation failed")
	}
	if s.metrics != nil {
		s.metrics.InviteCodeAttempts.Observe(float64(attempts))
	}

	referrer := s.resolveReferrer(ctx)

	member := models.Member{
		ID:          id.NewMemberID(),
		ExternalID:  identity.ExternalID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		InviteCode:  code,
		InvitedBy:   referrer,
		CreatedAt:   requestcontext.Now(ctx),
	}

	if err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Two callbacks raced for the same external id; the winner's
			// row is the member.
			if winner, findErr := s.members.FindByExternalID(ctx, identity.ExternalID); findErr == nil {
				return winner, nil
			}
			return models.Member{}, dErrors.New(dErrors.CodeConflict, "member already exists")
		}
		return models.Member{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create member")
	}

	s.logAudit(ctx, audit.EventMemberCreated, member.ID)
	if referrer != nil {
		s.logAudit(ctx, audit.EventReferralAttributed, member.ID)
		if s.metrics != nil {
			s.metrics.ReferralsAttributed.Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.MembersCreated.Inc()
	}
	return member, nil
}

// resolveReferrer consumes the staged referral code for the current browser
// session and maps it to a member. Every failure mode degrades to "no
// referrer": a missing session, an unconsumed stage, an unknown code, or a
// staging-store outage must not fail the signup.
func (s *Service) resolveReferrer(ctx context.Context) *id.MemberID {
	sessionID := requestcontext.SessionID(ctx)
	if sessionID == "" || s.staging == nil {
		return nil
	}
	code, err := s.staging.Consume(ctx, sessionID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "referral staging consume failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil
	}
	if code == "" {
		return nil
	}
	referrer, err := s.members.FindByInviteCode(ctx, code)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.WarnContext(ctx, "referrer lookup failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil
	}
	return &referrer.ID
}

// Get returns a member by id.
func (s *Service) Get(ctx context.Context, memberID id.MemberID) (models.Member, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Member{}, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return models.Member{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	return member, nil
}

func (s *Service) logAudit(ctx context.Context, action string, memberID id.MemberID) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"member_id", memberID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			MemberID: memberID.String(),
			Action:   action,
		})
	}
}
