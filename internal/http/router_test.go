package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvass/internal/broadcast"
	broadcasthandler "canvass/internal/broadcast/handler"
	grouphandler "canvass/internal/group/handler"
	groupservice "canvass/internal/group/service"
	groupstore "canvass/internal/group/store"
	"canvass/internal/identity"
	"canvass/internal/mail"
	memberhandler "canvass/internal/member/handler"
	"canvass/internal/member/invite"
	memberservice "canvass/internal/member/service"
	memberstore "canvass/internal/member/store"
	"canvass/internal/personality"
	"canvass/internal/referral"
	"canvass/internal/responder"
	"canvass/internal/session"
	submissionhandler "canvass/internal/submission/handler"
	submissionservice "canvass/internal/submission/service"
	submissionstore "canvass/internal/submission/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	members := memberstore.NewInMemory()
	groups := groupstore.NewInMemory()
	submissions := submissionstore.NewInMemory()
	staging := referral.NewInMemoryStaging()
	tokens := session.NewTokenService("test-signing-key", time.Hour)

	sender := mail.SenderFunc(func(context.Context, mail.Message) (string, error) {
		return "msg-1", nil
	})
	generator := responder.GeneratorFunc(func(context.Context, string) (string, error) {
		return "Thank you for your comment.", nil
	})

	memberSvc := memberservice.New(members, invite.NewGenerator(members), staging,
		memberservice.WithLogger(logger))
	groupSvc := groupservice.New(groups, members, groupservice.WithLogger(logger))
	broadcastSvc := broadcast.New(groups, members, sender, broadcast.WithLogger(logger))
	submissionSvc := submissionservice.New(submissions,
		personality.NewRegistry(t.TempDir()), generator, sender,
		submissionservice.WithLogger(logger))

	return NewRouter(Deps{
		Members:        memberhandler.New(memberSvc, staging, identity.NewDevProvider(), tokens, time.Hour, logger),
		Groups:         grouphandler.New(groupSvc, logger),
		Broadcasts:     broadcasthandler.New(broadcastSvc, logger),
		Submissions:    submissionhandler.New(submissionSvc, logger),
		TokenValidator: tokens,
		Logger:         logger,
	})
}

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_AuthenticatedRoutesRejectAnonymous(t *testing.T) {
	router := newTestRouter(t)

	for _, target := range []string{"/members/me", "/groups"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestRouter_ReportingClosedWithoutKeyHash(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/network", nil)
	req.Header.Set("X-Reporting-Key", "any")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_RejectsNonJSONWrites(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/groups", nil)
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
