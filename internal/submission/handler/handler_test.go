package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvass/internal/mail"
	"canvass/internal/personality"
	"canvass/internal/platform/middleware"
	"canvass/internal/responder"
	"canvass/internal/submission/service"
	"canvass/internal/submission/store"
	"canvass/pkg/platform/secrets"
)

const reportingKey = "test-reporting-key"

type fixture struct {
	router chi.Router
	sent   *[]mail.Message
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	submissions := store.NewInMemory()
	var sent []mail.Message
	sender := mail.SenderFunc(func(_ context.Context, msg mail.Message) (string, error) {
		sent = append(sent, msg)
		return "msg-id", nil
	})
	generator := responder.GeneratorFunc(func(context.Context, string) (string, error) {
		return "Thank you for your comment.", nil
	})
	svc := service.New(submissions, personality.NewRegistry(t.TempDir()), generator, sender,
		service.WithDefaultRecipients([]string{"inbox@example.com"}))

	keyHash, err := secrets.Hash(reportingKey)
	require.NoError(t, err)

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireReportingKey(keyHash, logger))
		h.RegisterReports(r)
	})
	return &fixture{router: r, sent: &sent}
}

func (f *fixture) respond(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRespondEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.respond(t, "/respond?ca=tur&mode=DEV", url.Values{
		"name":     {"Alice"},
		"voter_id": {"WA-12345"},
		"email":    {"alice@example.com"},
		"comment":  {"What about transit?"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success  bool   `json:"success"`
		Response string `json:"response"`
		Input    struct {
			Name    string  `json:"name"`
			VoterID *string `json:"voter_id"`
			Email   *string `json:"email"`
		} `json:"input"`
		EmailResults []struct {
			To        string `json:"to"`
			MessageID string `json:"messageId"`
		} `json:"email_results"`
		Meta struct {
			CandidateKey  string `json:"candidate_key"`
			CandidateName string `json:"candidate_name"`
			Mode          string `json:"mode"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "Thank you for your comment.", resp.Response)
	assert.Equal(t, "Alice", resp.Input.Name)
	require.NotNil(t, resp.Input.VoterID)
	assert.Equal(t, "WA-12345", *resp.Input.VoterID)
	require.Len(t, resp.EmailResults, 1)
	assert.Equal(t, "alice@example.com", resp.EmailResults[0].To)
	assert.Equal(t, "tur", resp.Meta.CandidateKey)
	assert.Equal(t, "Jack Turner (Fictional)", resp.Meta.CandidateName)
	assert.Equal(t, "dev", resp.Meta.Mode)
}

func TestRespondEndpoint_MissingFields(t *testing.T) {
	f := newFixture(t)

	rec := f.respond(t, "/respond", url.Values{"name": {"Alice"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, *f.sent)
}

func TestRespondEndpoint_UnknownCandidateFallsBack(t *testing.T) {
	f := newFixture(t)

	rec := f.respond(t, "/respond?ca=unknown", url.Values{
		"name":    {"Alice"},
		"comment": {"A comment."},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Meta struct {
			CandidateKey string `json:"candidate_key"`
			Mode         string `json:"mode"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "saw", resp.Meta.CandidateKey)
	assert.Equal(t, "", resp.Meta.Mode)
}

func TestAnonymousSummaryEndpoint(t *testing.T) {
	f := newFixture(t)

	// Two anonymous submissions from the same person, one attributed.
	for _, form := range []url.Values{
		{"name": {"Alice"}, "email": {"alice@example.com"}, "comment": {"one"}},
		{"name": {"Alice"}, "email": {"alice@example.com"}, "comment": {"two"}},
		{"name": {"Bob"}, "voter_id": {"WA-9"}, "comment": {"three"}},
	} {
		rec := f.respond(t, "/respond", form)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/reports/anonymous-submissions", nil)
	req.Header.Set("X-Reporting-Key", reportingKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Submissions []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"submissions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Submissions, 1)
	assert.Equal(t, "Alice", resp.Submissions[0].Name)
	assert.Equal(t, 2, resp.Submissions[0].Count)
}

func TestAnonymousSummaryEndpoint_RequiresKey(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/reports/anonymous-submissions", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
