package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvass/internal/identity"
	"canvass/internal/member/invite"
	"canvass/internal/member/service"
	"canvass/internal/member/store"
	"canvass/internal/platform/middleware"
	"canvass/internal/referral"
	"canvass/internal/session"
	"canvass/pkg/platform/secrets"
)

const reportingKey = "test-reporting-key"

type fixture struct {
	router  chi.Router
	staging *referral.InMemoryStaging
	svc     *service.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	members := store.NewInMemory()
	staging := referral.NewInMemoryStaging()
	svc := service.New(members, invite.NewGenerator(members), staging, service.WithLogger(logger))
	tokens := session.NewTokenService("test-signing-key", time.Hour)

	h := New(svc, staging, identity.NewDevProvider(), tokens, time.Hour, logger,
		WithPublicBaseURL("https://canvass.example.org"))

	keyHash, err := secrets.Hash(reportingKey)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.BrowserSession)
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, logger))
		h.RegisterProtected(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireReportingKey(keyHash, logger))
		h.RegisterReports(r)
	})
	return &fixture{router: r, staging: staging, svc: svc}
}

// do executes a request, carrying cookies between calls like a browser would.
func (f *fixture) do(t *testing.T, method, target string, cookies []*http.Cookie) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec, mergeCookies(cookies, rec.Result().Cookies())
}

// report executes a reporting request with the shared key header.
func (f *fixture) report(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("X-Reporting-Key", reportingKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func mergeCookies(existing, fresh []*http.Cookie) []*http.Cookie {
	byName := map[string]*http.Cookie{}
	for _, c := range existing {
		byName[c.Name] = c
	}
	for _, c := range fresh {
		byName[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	return out
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/auth/login", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/auth/callback")
}

func TestLogin_StagesInviteCode(t *testing.T) {
	f := newFixture(t)

	rec, cookies := f.do(t, http.MethodGet, "/auth/login?invite=ABCD1234", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	var sid string
	for _, c := range cookies {
		if c.Name == middleware.BrowserSessionCookie {
			sid = c.Value
		}
	}
	require.NotEmpty(t, sid)

	code, err := f.staging.Consume(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", code)
}

func TestCallback_CreatesMemberAndSession(t *testing.T) {
	f := newFixture(t)

	rec, cookies := f.do(t, http.MethodGet, "/auth/callback?external_id=auth0%7Calice&email=alice%40example.com&name=Alice", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	rec, _ = f.do(t, http.MethodGet, "/members/me", cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var me MemberResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, "Alice", me.DisplayName)
	assert.Len(t, me.InviteCode, invite.CodeLength)
	assert.Equal(t, "https://canvass.example.org/auth/login?invite="+me.InviteCode, me.InviteURL)
	assert.True(t, me.IsRoot)
}

func TestCallback_MissingSubjectIsUnauthorized(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/auth/callback?email=alice%40example.com", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallback_UnsafeReturnToFallsBackToRoot(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/auth/callback?external_id=auth0%7Calice&return_to=https%3A%2F%2Fevil.example", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestReferralFlow_AcrossLoginRedirect(t *testing.T) {
	f := newFixture(t)

	// Alice signs up with no referral.
	_, aliceCookies := f.do(t, http.MethodGet, "/auth/callback?external_id=auth0%7Calice&email=alice%40example.com&name=Alice", nil)
	rec, _ := f.do(t, http.MethodGet, "/members/me", aliceCookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var alice MemberResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&alice))

	// Bob follows Alice's invite link, then completes login on the same
	// browser session.
	rec, bobCookies := f.do(t, http.MethodGet, "/auth/login?invite="+alice.InviteCode, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	_, _ = f.do(t, http.MethodGet, "/auth/callback?external_id=auth0%7Cbob&email=bob%40example.com&name=Bob", bobCookies)

	rec = f.report(t, "/network")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Network []struct {
			DisplayName  string `json:"displayName"`
			RecruitCount int    `json:"recruitCount"`
			Level        int    `json:"level"`
		} `json:"network"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Network, 2)
	assert.Equal(t, "Alice", body.Network[0].DisplayName)
	assert.Equal(t, 1, body.Network[0].RecruitCount)
	assert.Equal(t, 0, body.Network[0].Level)
	assert.Equal(t, "Bob", body.Network[1].DisplayName)
	assert.Equal(t, 1, body.Network[1].Level)
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/members/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNetworkRequiresReportingKey(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/network", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/network", nil)
	req.Header.Set("X-Reporting-Key", "wrong-key")
	wrong := httptest.NewRecorder()
	f.router.ServeHTTP(wrong, req)
	assert.Equal(t, http.StatusForbidden, wrong.Code)
}
