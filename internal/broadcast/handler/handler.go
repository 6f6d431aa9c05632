package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"canvass/internal/broadcast"
	id "canvass/pkg/domain"
	dErrors "canvass/pkg/domain-errors"
	"canvass/pkg/platform/httputil"
	"canvass/pkg/requestcontext"
)

// Service defines the broadcast operation the handler needs.
type Service interface {
	Broadcast(ctx context.Context, groupID id.GroupID, senderID id.MemberID, subject, body string) (broadcast.Result, error)
}

// Handler wires the broadcast endpoint. The route requires an authenticated
// member; the router mounts it behind the auth middleware.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the broadcast endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Post("/groups/{groupID}/broadcast", h.HandleBroadcast)
}

// Request is the POST /groups/{groupID}/broadcast payload.
type Request struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (r Request) Validate() error {
	if r.Subject == "" {
		return dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if r.Body == "" {
		return dErrors.New(dErrors.CodeValidation, "body is required")
	}
	return nil
}

// Response carries the delivery counts and a human-readable summary.
type Response struct {
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Message string `json:"message"`
}

// HandleBroadcast handles POST /groups/{groupID}/broadcast.
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	senderID := requestcontext.MemberID(ctx)

	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[Request](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Broadcast(ctx, groupID, senderID, req.Subject, req.Body)
	if err != nil {
		if errors.Is(err, broadcast.ErrNoRecipients) {
			httputil.WriteJSON(w, http.StatusOK, Response{
				Message: "group has no other members to reach",
			})
			return
		}
		h.logger.WarnContext(ctx, "broadcast rejected",
			"group_id", groupID.String(),
			"member_id", senderID.String(),
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	total := result.Sent + result.Failed
	message := fmt.Sprintf("sent to %d of %d members", result.Sent, total)
	httputil.WriteJSON(w, http.StatusOK, Response{
		Sent:    result.Sent,
		Failed:  result.Failed,
		Message: message,
	})
}
