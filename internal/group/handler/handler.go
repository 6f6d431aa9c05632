package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"canvass/internal/group/models"
	id "canvass/pkg/domain"
	dErrors "canvass/pkg/domain-errors"
	"canvass/pkg/platform/httputil"
	"canvass/pkg/requestcontext"
)

// Service defines the group operations the handler needs.
type Service interface {
	CreateGroup(ctx context.Context, founderID id.MemberID, name, description string) (models.Group, error)
	AddMember(ctx context.Context, groupID id.GroupID, actingMemberID, recruitID id.MemberID) error
	ListMembership(ctx context.Context, memberID id.MemberID) ([]models.MembershipView, error)
}

// Handler wires the group endpoints. All routes require an authenticated
// member; the router mounts them behind the auth middleware.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the group endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/groups", h.HandleCreate)
	r.Get("/groups", h.HandleList)
	r.Post("/groups/{groupID}/members", h.HandleAddMember)
}

// CreateRequest is the POST /groups payload.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r CreateRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// GroupResponse is the public view of a group.
type GroupResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	FounderID   string `json:"founderId"`
	CreatedAt   string `json:"createdAt"`
}

func fromGroup(g models.Group) GroupResponse {
	return GroupResponse{
		ID:          g.ID.String(),
		Name:        g.Name,
		Description: g.Description,
		FounderID:   g.FounderID.String(),
		CreatedAt:   g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleCreate handles POST /groups.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	memberID := requestcontext.MemberID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	group, err := h.service.CreateGroup(ctx, memberID, req.Name, req.Description)
	if err != nil {
		h.logger.WarnContext(ctx, "group creation rejected",
			"member_id", memberID.String(),
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "group created",
		"group_id", group.ID.String(),
		"member_id", memberID.String(),
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromGroup(group))
}

// AddMemberRequest is the POST /groups/{groupID}/members payload.
type AddMemberRequest struct {
	MemberID string `json:"memberId"`
}

func (r AddMemberRequest) Validate() error {
	if r.MemberID == "" {
		return dErrors.New(dErrors.CodeValidation, "memberId is required")
	}
	return nil
}

// HandleAddMember handles POST /groups/{groupID}/members.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actingMemberID := requestcontext.MemberID(ctx)

	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AddMemberRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	recruitID, err := id.ParseMemberID(req.MemberID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.AddMember(ctx, groupID, actingMemberID, recruitID); err != nil {
		h.logger.WarnContext(ctx, "group member add rejected",
			"group_id", groupID.String(),
			"member_id", actingMemberID.String(),
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleList handles GET /groups: the authenticated member's memberships.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	views, err := h.service.ListMembership(ctx, requestcontext.MemberID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "membership listing failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"groups": views})
}
