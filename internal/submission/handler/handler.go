package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"canvass/internal/submission/models"
	"canvass/internal/submission/service"
	dErrors "canvass/pkg/domain-errors"
	"canvass/pkg/platform/httputil"
	"canvass/pkg/requestcontext"
)

// Service defines the submission operations the handler needs.
type Service interface {
	Respond(ctx context.Context, input service.RespondInput) (service.RespondResult, error)
	AnonymousSummary(ctx context.Context) ([]models.SummaryRow, error)
}

// Handler wires the public respond endpoint and the anonymous-submission
// report.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public respond endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Post("/respond", h.HandleRespond)
}

// RegisterReports mounts the reporting endpoint; the router guards it with
// the reporting key.
func (h *Handler) RegisterReports(r chi.Router) {
	r.Get("/reports/anonymous-submissions", h.HandleAnonymousSummary)
}

// HandleRespond handles POST /respond. The payload is form-encoded and the
// candidate (?ca=) and display mode (?mode=) ride on the query string.
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed form payload"))
		return
	}

	result, err := h.service.Respond(ctx, service.RespondInput{
		Name:         r.PostFormValue("name"),
		VoterID:      r.PostFormValue("voter_id"),
		Email:        r.PostFormValue("email"),
		Comment:      r.PostFormValue("comment"),
		CandidateKey: r.URL.Query().Get("ca"),
		Mode:         r.URL.Query().Get("mode"),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "respond flow failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	var email any
	if result.Submission.Email != "" {
		email = result.Submission.Email
	}
	var voterID any
	if result.Submission.VoterID != nil {
		voterID = *result.Submission.VoterID
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": result.Response,
		"input": map[string]any{
			"name":     result.Submission.Name,
			"voter_id": voterID,
			"comment":  result.Submission.Comment,
			"email":    email,
		},
		"email_results": result.EmailResults,
		"meta": map[string]any{
			"candidate_key":  result.Candidate.Key,
			"candidate_name": result.Candidate.DisplayName,
			"mode":           result.Mode,
		},
	})
}

// HandleAnonymousSummary handles GET /reports/anonymous-submissions.
func (h *Handler) HandleAnonymousSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.service.AnonymousSummary(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "anonymous summary failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"submissions": rows})
}
