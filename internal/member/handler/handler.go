package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"canvass/internal/identity"
	"canvass/internal/member/models"
	"canvass/internal/member/service"
	"canvass/internal/platform/middleware"
	"canvass/internal/referral"
	id "canvass/pkg/domain"
	dErrors "canvass/pkg/domain-errors"
	"canvass/pkg/platform/httputil"
	"canvass/pkg/requestcontext"
)

// Service defines the member operations the handler needs.
type Service interface {
	ResolveOrCreate(ctx context.Context, ident service.Identity) (models.Member, error)
	Get(ctx context.Context, memberID id.MemberID) (models.Member, error)
	BuildForest(ctx context.Context) ([]models.NetworkNode, error)
}

// TokenIssuer mints session tokens after a successful login.
type TokenIssuer interface {
	Issue(memberID id.MemberID) (string, error)
}

// Handler wires the auth and member endpoints.
type Handler struct {
	service  Service
	staging  referral.Staging
	provider identity.Provider
	tokens   TokenIssuer
	logger   *slog.Logger

	sessionTTL    time.Duration
	secureCookies bool
	publicBaseURL string
}

// Option configures a Handler.
type Option func(*Handler)

// WithSecureCookies marks session cookies Secure; on in production, off for
// plain-HTTP development.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) { h.secureCookies = secure }
}

// WithPublicBaseURL enables absolute invite links in member responses.
func WithPublicBaseURL(baseURL string) Option {
	return func(h *Handler) { h.publicBaseURL = strings.TrimRight(baseURL, "/") }
}

func New(service Service, staging referral.Staging, provider identity.Provider, tokens TokenIssuer, sessionTTL time.Duration, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:    service,
		staging:    staging,
		provider:   provider,
		tokens:     tokens,
		logger:     logger,
		sessionTTL: sessionTTL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public auth endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auth/login", h.HandleLogin)
	r.Get("/auth/callback", h.HandleCallback)
}

// RegisterProtected mounts the endpoints that require an authenticated
// member.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/members/me", h.HandleMe)
}

// RegisterReports mounts the reporting endpoints; the router guards these
// with the reporting key, not member auth.
func (h *Handler) RegisterReports(r chi.Router) {
	r.Get("/network", h.HandleNetwork)
}

// HandleLogin handles GET /auth/login?invite=CODE.
//
// The invite code, when present, is staged against the browser session so it
// survives the provider redirect. Staging failures are logged and swallowed:
// a broken staging store must not block login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if code := r.URL.Query().Get("invite"); code != "" {
		sessionID := requestcontext.SessionID(ctx)
		if err := h.staging.Stage(ctx, sessionID, code); err != nil {
			h.logger.WarnContext(ctx, "failed to stage referral code",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	http.Redirect(w, r, h.provider.LoginURL(r.URL.Query().Get("return_to")), http.StatusFound)
}

// HandleCallback handles GET /auth/callback: the provider's redirect back to
// us. A verified identity becomes a member record and a session cookie.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ident, err := h.provider.Authenticate(ctx, r.URL.Query())
	if err != nil {
		h.logger.WarnContext(ctx, "authentication callback rejected",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	member, err := h.service.ResolveOrCreate(ctx, service.Identity{
		ExternalID:  ident.ExternalID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "member resolution failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.Issue(member.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "session token issuance failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not establish session"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.InfoContext(ctx, "member logged in",
		"member_id", member.ID.String(),
		"request_id", requestID,
	)

	http.Redirect(w, r, safeReturnTo(r.URL.Query().Get("return_to")), http.StatusFound)
}

// safeReturnTo restricts post-login redirects to local paths.
func safeReturnTo(returnTo string) string {
	if returnTo == "" {
		return "/"
	}
	u, err := url.Parse(returnTo)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return u.Path
}

// MemberResponse is the public view of a member.
type MemberResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	InviteCode  string `json:"inviteCode"`
	InviteURL   string `json:"inviteUrl,omitempty"`
	IsRoot      bool   `json:"isRoot"`
	CreatedAt   string `json:"createdAt"`
}

func (h *Handler) fromMember(m models.Member) MemberResponse {
	resp := MemberResponse{
		ID:          m.ID.String(),
		Email:       m.Email,
		DisplayName: m.DisplayName,
		InviteCode:  m.InviteCode,
		IsRoot:      m.IsRoot(),
		CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if h.publicBaseURL != "" {
		resp.InviteURL = h.publicBaseURL + "/auth/login?invite=" + url.QueryEscape(m.InviteCode)
	}
	return resp
}

// HandleMe handles GET /members/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, err := h.service.Get(ctx, requestcontext.MemberID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.fromMember(member))
}

// HandleNetwork handles GET /network: the flattened recruiting forest.
func (h *Handler) HandleNetwork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nodes, err := h.service.BuildForest(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "network report failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"network": nodes})
}
