package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvass/internal/mail"
	"canvass/internal/personality"
	"canvass/internal/responder"
	"canvass/internal/submission/store"
	dErrors "canvass/pkg/domain-errors"
	"canvass/pkg/requestcontext"
)

type recordingSender struct {
	sent    []mail.Message
	failFor map[string]bool
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) (string, error) {
	if len(msg.To) == 1 && s.failFor[msg.To[0]] {
		return "", errors.New("mailbox unavailable")
	}
	s.sent = append(s.sent, msg)
	return "msg-id", nil
}

func echoGenerator() responder.Generator {
	return responder.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		return "Thank you for raising this.", nil
	})
}

func newTestService(t *testing.T, opts ...Option) (*Service, *store.InMemoryStore, *recordingSender) {
	t.Helper()
	submissions := store.NewInMemory()
	sender := &recordingSender{failFor: map[string]bool{}}
	svc := New(submissions, personality.NewRegistry(t.TempDir()), echoGenerator(), sender, opts...)
	return svc, submissions, sender
}

func TestRecord(t *testing.T) {
	svc, _, _ := newTestService(t)

	submission, err := svc.Record(context.Background(), RecordInput{
		Name:    "Alice",
		VoterID: "WA-12345",
		Comment: "Fix the potholes on 5th.",
	})
	require.NoError(t, err)
	assert.False(t, submission.ID.IsZero())
	require.NotNil(t, submission.VoterID)
	assert.Equal(t, "WA-12345", *submission.VoterID)
	assert.False(t, submission.IsAnonymous())
	assert.Equal(t, "saw", submission.CandidateKey)
}

func TestRecord_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Record(context.Background(), RecordInput{Comment: "no name"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Record(context.Background(), RecordInput{Name: "Alice", Comment: "   "})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRecord_AnonymousWhenVoterIDAbsent(t *testing.T) {
	svc, _, _ := newTestService(t)

	submission, err := svc.Record(context.Background(), RecordInput{
		Name:    "Alice",
		Comment: "A comment.",
	})
	require.NoError(t, err)
	assert.Nil(t, submission.VoterID)
	assert.True(t, submission.IsAnonymous())
}

func TestAnonymousSummary(t *testing.T) {
	svc, _, _ := newTestService(t)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	record := func(offset time.Duration, name, email, voterID string) {
		ctx := requestcontext.WithTime(context.Background(), base.Add(offset))
		_, err := svc.Record(ctx, RecordInput{
			Name: name, Email: email, VoterID: voterID, Comment: "c",
		})
		require.NoError(t, err)
	}

	record(0, "Alice", "alice@example.com", "")
	record(time.Hour, "Alice", "alice@example.com", "")
	record(2*time.Hour, "Bob", "", "")
	record(3*time.Hour, "Carol", "carol@example.com", "WA-1")

	rows, err := svc.AnonymousSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2, "attributed submissions stay out of the summary")

	assert.Equal(t, "Bob", rows[0].Name)
	assert.Equal(t, 1, rows[0].Count)

	assert.Equal(t, "Alice", rows[1].Name)
	assert.Equal(t, 2, rows[1].Count)
	assert.Equal(t, base.Add(time.Hour), rows[1].LastSubmittedAt)
}

func TestRespond_DeliversToVoterEmail(t *testing.T) {
	svc, submissions, sender := newTestService(t)

	result, err := svc.Respond(context.Background(), RespondInput{
		Name:         "Alice",
		VoterID:      "WA-12345",
		Email:        "alice@example.com",
		Comment:      "What about transit?",
		CandidateKey: "tur",
	})
	require.NoError(t, err)

	assert.Equal(t, "Thank you for raising this.", result.Response)
	assert.Equal(t, "Jack Turner (Fictional)", result.Candidate.DisplayName)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"alice@example.com"}, msg.To)
	assert.Equal(t, "Response from Jack Turner (Fictional)", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Alice,")
	assert.Contains(t, msg.Body, "Voter ID: WA-12345")
	assert.Contains(t, msg.Body, "What about transit?")
	assert.Contains(t, msg.Body, "Thank you for raising this.")
	assert.Contains(t, msg.Body, "automated response")

	require.Len(t, result.EmailResults, 1)
	assert.Equal(t, "msg-id", result.EmailResults[0].MessageID)
	assert.Empty(t, result.EmailResults[0].Error)

	// The submission is recorded with the generated response.
	rows, err := submissions.AnonymousSummary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows, "voter id was provided, nothing anonymous")
}

func TestRespond_NoEmailFallsBackToDefaults(t *testing.T) {
	svc, _, sender := newTestService(t, WithDefaultRecipients([]string{
		"inbox-one@example.com", "inbox-two@example.com",
	}))

	result, err := svc.Respond(context.Background(), RespondInput{
		Name:    "Alice",
		Comment: "A comment.",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, []string{"inbox-one@example.com"}, sender.sent[0].To)
	assert.Equal(t, []string{"inbox-two@example.com"}, sender.sent[1].To)
	require.Len(t, result.EmailResults, 2)
}

func TestRespond_DeliveryFailureDoesNotFailFlow(t *testing.T) {
	svc, _, sender := newTestService(t, WithDefaultRecipients([]string{
		"good@example.com", "bad@example.com",
	}))
	sender.failFor["bad@example.com"] = true

	result, err := svc.Respond(context.Background(), RespondInput{
		Name:    "Alice",
		Comment: "A comment.",
	})
	require.NoError(t, err)

	require.Len(t, result.EmailResults, 2)
	assert.Empty(t, result.EmailResults[0].Error)
	assert.NotEmpty(t, result.EmailResults[1].Error)
	assert.Empty(t, result.EmailResults[1].MessageID)
}

func TestRespond_GeneratorFailurePropagates(t *testing.T) {
	submissions := store.NewInMemory()
	failing := responder.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("model overloaded")
	})
	sender := &recordingSender{failFor: map[string]bool{}}
	svc := New(submissions, personality.NewRegistry(t.TempDir()), failing, sender)

	_, err := svc.Respond(context.Background(), RespondInput{Name: "Alice", Comment: "c"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Empty(t, sender.sent)
}

func TestRespond_Validation(t *testing.T) {
	svc, _, sender := newTestService(t)

	_, err := svc.Respond(context.Background(), RespondInput{Name: "", Comment: "c"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Empty(t, sender.sent)
}

func TestRespond_PromptCarriesContextAndVoter(t *testing.T) {
	var gotPrompt string
	submissions := store.NewInMemory()
	capture := responder.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "ok", nil
	})
	svc := New(submissions, personality.NewRegistry(t.TempDir()), capture, &recordingSender{},
		WithDefaultRecipients([]string{"inbox@example.com"}))

	_, err := svc.Respond(context.Background(), RespondInput{
		Name: "Alice", VoterID: "WA-1", Comment: "transit", CandidateKey: "cha",
	})
	require.NoError(t, err)

	assert.Contains(t, gotPrompt, "Chaudhry")
	assert.Contains(t, gotPrompt, "Voter Name: Alice")
	assert.Contains(t, gotPrompt, "Voter ID: WA-1")
	assert.Contains(t, gotPrompt, "Comment: transit")
	assert.Contains(t, gotPrompt, "non-partisan")
}
