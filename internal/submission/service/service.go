package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"canvass/internal/audit"
	"canvass/internal/mail"
	"canvass/internal/personality"
	"canvass/internal/platform/metrics"
	"canvass/internal/responder"
	"canvass/internal/submission/models"
	"canvass/internal/submission/store"
	id "canvass/pkg/domain"
	dErrors "canvass/pkg/domain-errors"
	pkgstrings "canvass/pkg/platform/strings"
	"canvass/pkg/requestcontext"
)

// Service records voter submissions and orchestrates the respond flow:
// resolve the candidate persona, generate a response, deliver it, record it.
type Service struct {
	submissions store.SubmissionStore
	personas    *personality.Registry
	generator   responder.Generator
	sender      mail.Sender

	defaultRecipients []string

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

// WithDefaultRecipients sets where responses go when the voter left no email.
func WithDefaultRecipients(recipients []string) Option {
	return func(s *Service) { s.defaultRecipients = recipients }
}

func New(submissions store.SubmissionStore, personas *personality.Registry, generator responder.Generator, sender mail.Sender, opts ...Option) *Service {
	s := &Service{
		submissions: submissions,
		personas:    personas,
		generator:   generator,
		sender:      sender,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordInput carries one submission to persist.
type RecordInput struct {
	Name              string
	VoterID           string
	Email             string
	Comment           string
	GeneratedResponse string
	CandidateKey      string
}

// Record persists a submission. Name and comment are the only required
// fields; a missing voter id marks the submission anonymous.
func (s *Service) Record(ctx context.Context, input RecordInput) (models.Submission, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Comment = strings.TrimSpace(input.Comment)
	if input.Name == "" {
		return models.Submission{}, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if input.Comment == "" {
		return models.Submission{}, dErrors.New(dErrors.CodeValidation, "comment is required")
	}

	submission := models.Submission{
		ID:                id.NewSubmissionID(),
		Name:              input.Name,
		Email:             strings.TrimSpace(input.Email),
		Comment:           input.Comment,
		GeneratedResponse: input.GeneratedResponse,
		CandidateKey:      personality.Get(input.CandidateKey).Key,
		CreatedAt:         requestcontext.Now(ctx),
	}
	if voterID := strings.TrimSpace(input.VoterID); voterID != "" {
		submission.VoterID = &voterID
	}

	if err := s.submissions.Create(ctx, submission); err != nil {
		return models.Submission{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record submission")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, audit.EventSubmissionRecorded,
			"submission_id", submission.ID.String(),
			"anonymous", submission.IsAnonymous(),
			"candidate", submission.CandidateKey,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:  audit.EventSubmissionRecorded,
			Subject: submission.ID.String(),
		})
	}
	if s.metrics != nil {
		s.metrics.SubmissionsRecorded.Inc()
	}
	return submission, nil
}

// AnonymousSummary aggregates anonymous submissions for volume monitoring.
func (s *Service) AnonymousSummary(ctx context.Context) ([]models.SummaryRow, error) {
	rows, err := s.submissions.AnonymousSummary(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize submissions")
	}
	if rows == nil {
		rows = []models.SummaryRow{}
	}
	return rows, nil
}

// RespondInput is one voter submission to answer.
type RespondInput struct {
	Name         string
	VoterID      string
	Email        string
	Comment      string
	CandidateKey string
	Mode         string
}

// EmailResult is the per-address outcome of response delivery.
type EmailResult struct {
	To        string `json:"to"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RespondResult is the full outcome of the respond flow.
type RespondResult struct {
	Submission   models.Submission
	Response     string
	Candidate    personality.Candidate
	Mode         string
	EmailResults []EmailResult
}

// Respond generates and delivers a response to a voter submission, then
// records it. Delivery failures do not fail the flow; they are reported per
// address. Responses go to the voter's email when given, otherwise to the
// configured default recipients.
func (s *Service) Respond(ctx context.Context, input RespondInput) (RespondResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.VoterID = strings.TrimSpace(input.VoterID)
	input.Email = strings.TrimSpace(input.Email)
	input.Comment = strings.TrimSpace(input.Comment)
	if input.Name == "" || input.Comment == "" {
		return RespondResult{}, dErrors.New(dErrors.CodeValidation, "please provide name and comment")
	}

	candidate := personality.Get(input.CandidateKey)
	prompt := buildPrompt(s.personas.LoadContext(candidate), input.Name, input.VoterID, input.Comment)

	response, err := s.generator.GenerateResponse(ctx, prompt)
	if err != nil {
		return RespondResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "response generation failed")
	}

	recipients := []string{input.Email}
	if input.Email == "" {
		recipients = s.defaultRecipients
	}
	recipients = pkgstrings.DedupeAndTrimLower(recipients)

	results := make([]EmailResult, 0, len(recipients))
	for _, to := range recipients {
		messageID, err := s.sender.Send(ctx, mail.Message{
			To:      []string{to},
			Subject: "Response from " + candidate.DisplayName,
			Body:    buildEmailBody(input.Name, input.VoterID, input.Comment, response),
		})
		result := EmailResult{To: to, MessageID: messageID}
		if err != nil {
			result.MessageID = ""
			result.Error = err.Error()
			if s.logger != nil {
				s.logger.WarnContext(ctx, "response delivery failed",
					"recipient", to,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
		}
		results = append(results, result)
	}

	submission, err := s.Record(ctx, RecordInput{
		Name:              input.Name,
		VoterID:           input.VoterID,
		Email:             input.Email,
		Comment:           input.Comment,
		GeneratedResponse: response,
		CandidateKey:      candidate.Key,
	})
	if err != nil {
		return RespondResult{}, err
	}

	return RespondResult{
		Submission:   submission,
		Response:     response,
		Candidate:    candidate,
		Mode:         personality.Mode(input.Mode),
		EmailResults: results,
	}, nil
}

const sectionRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func buildPrompt(candidateContext, name, voterID, comment string) string {
	return fmt.Sprintf(`You are responding to a voter engagement comment. Please provide a thoughtful, respectful response.

%s

Voter Name: %s
Voter ID: %s
Comment: %s

Provide a helpful and engaging response that:
1. Acknowledges their comment
2. Addresses any questions or concerns raised
3. Encourages continued civic participation
4. Is respectful and non-partisan
`, candidateContext, name, voterID, comment)
}

func buildEmailBody(name, voterID, comment, response string) string {
	return fmt.Sprintf(`Hi %s,

Thank you for your comment. Here's a summary of your inquiry and our response:

%s
YOUR INFORMATION
%s

Name: %s
Voter ID: %s

Your Comment:
%s

%s
RESPONSE
%s

%s

%s

This is an automated response from the Voter Engagement platform.
`, name, sectionRule, sectionRule, name, voterID, comment,
		sectionRule, sectionRule, response, sectionRule)
}
