// Package broadcast fans a founder's message out to a group.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"canvass/internal/audit"
	groupmodels "canvass/internal/group/models"
	"canvass/internal/mail"
	membermodels "canvass/internal/member/models"
	"canvass/internal/platform/metrics"
	id "canvass/pkg/domain"
	dErrors "canvass/pkg/domain-errors"
	"canvass/pkg/platform/sentinel"
	pkgstrings "canvass/pkg/platform/strings"
	"canvass/pkg/requestcontext"
)

const (
	maxSubjectLength = 200
	maxBodyLength    = 5000

	defaultConcurrency = 8
	defaultSendTimeout = 10 * time.Second
)

// ErrNoRecipients means the group holds nobody but the sender. Callers treat
// it as a benign outcome, not a failure.
var ErrNoRecipients = errors.New("group has no recipients")

// Result carries the aggregate delivery counts of one broadcast.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// GroupReader is the slice of the group domain the dispatcher reads.
type GroupReader interface {
	FindByID(ctx context.Context, groupID id.GroupID) (groupmodels.Group, error)
	ListMembers(ctx context.Context, groupID id.GroupID) ([]groupmodels.Membership, error)
}

// MemberReader resolves member records to email addresses.
type MemberReader interface {
	FindByID(ctx context.Context, memberID id.MemberID) (membermodels.Member, error)
}

// Service dispatches group broadcasts with bounded concurrency. Per-recipient
// transport failures become counters; they never abort the rest of the group.
type Service struct {
	groups  GroupReader
	members MemberReader
	sender  mail.Sender

	concurrency int
	sendTimeout time.Duration

	tracer  trace.Tracer
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

// WithConcurrency caps the number of in-flight sends.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithSendTimeout bounds each individual transport call.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

func New(groups GroupReader, members MemberReader, sender mail.Sender, opts ...Option) *Service {
	s := &Service{
		groups:      groups,
		members:     members,
		sender:      sender,
		concurrency: defaultConcurrency,
		sendTimeout: defaultSendTimeout,
		tracer:      otel.Tracer("canvass/broadcast"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broadcast sends subject/body to every member of the group except the
// sender. Only the group's founder may broadcast. The recipient set is a
// snapshot taken before the first send; members added mid-flight are not
// included. The call returns only after every dispatched send has finished.
func (s *Service) Broadcast(ctx context.Context, groupID id.GroupID, senderID id.MemberID, subject, body string) (Result, error) {
	if err := validateMessage(subject, body); err != nil {
		return Result{}, err
	}

	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Result{}, dErrors.New(dErrors.CodeNotFound, "group not found")
		}
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
	}
	if group.FounderID != senderID {
		return Result{}, dErrors.New(dErrors.CodeForbidden, "only the group founder may broadcast")
	}

	founder, err := s.members.FindByID(ctx, senderID)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sender")
	}

	recipients, err := s.snapshotRecipients(ctx, groupID, senderID)
	if err != nil {
		return Result{}, err
	}
	if len(recipients) == 0 {
		return Result{}, ErrNoRecipients
	}

	ctx, span := s.tracer.Start(ctx, "broadcast.dispatch", trace.WithAttributes(
		attribute.String("group.id", groupID.String()),
		attribute.Int("recipients", len(recipients)),
	))
	defer span.End()

	start := time.Now()
	var sent, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, recipient := range recipients {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
			defer cancel()

			_, err := s.sender.Send(sendCtx, mail.Message{
				To:      []string{recipient},
				CC:      []string{founder.Email},
				Subject: subject,
				Body:    body,
				ReplyTo: founder.Email,
			})
			if err != nil {
				failed.Add(1)
				if s.logger != nil {
					s.logger.WarnContext(ctx, "broadcast send failed",
						"group_id", groupID.String(),
						"recipient", recipient,
						"error", err,
					)
				}
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	// Join before returning; counts must cover every dispatched send.
	_ = g.Wait()

	result := Result{Sent: int(sent.Load()), Failed: int(failed.Load())}
	span.SetAttributes(
		attribute.Int("sent", result.Sent),
		attribute.Int("failed", result.Failed),
	)

	if s.metrics != nil {
		s.metrics.BroadcastsSent.Inc()
		s.metrics.BroadcastRecipients.WithLabelValues("sent").Add(float64(result.Sent))
		s.metrics.BroadcastRecipients.WithLabelValues("failed").Add(float64(result.Failed))
		s.metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, audit.EventBroadcastCompleted,
			"group_id", groupID.String(),
			"member_id", senderID.String(),
			"sent", result.Sent,
			"failed", result.Failed,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			MemberID: senderID.String(),
			Action:   audit.EventBroadcastCompleted,
			Subject:  groupID.String(),
		})
	}
	return result, nil
}

// snapshotRecipients fixes the recipient set: group members excluding the
// sender, resolved to deduplicated email addresses.
func (s *Service) snapshotRecipients(ctx context.Context, groupID id.GroupID, senderID id.MemberID) ([]string, error) {
	memberships, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list group members")
	}

	var emails []string
	for _, membership := range memberships {
		if membership.MemberID == senderID {
			continue
		}
		member, err := s.members.FindByID(ctx, membership.MemberID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve recipient")
		}
		if member.Email != "" {
			emails = append(emails, member.Email)
		}
	}
	return pkgstrings.DedupeAndTrimLower(emails), nil
}

func validateMessage(subject, body string) error {
	if strings.TrimSpace(subject) == "" {
		return dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if len(subject) > maxSubjectLength {
		return dErrors.Newf(dErrors.CodeValidation, "subject exceeds %d characters", maxSubjectLength)
	}
	if strings.TrimSpace(body) == "" {
		return dErrors.New(dErrors.CodeValidation, "body is required")
	}
	if len(body) > maxBodyLength {
		return dErrors.Newf(dErrors.CodeValidation, "body exceeds %d characters", maxBodyLength)
	}
	return nil
}
