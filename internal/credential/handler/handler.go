package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"devcred/internal/credential/models"
	"devcred/internal/credential/service"
	"devcred/internal/privacy"
	"devcred/internal/vcdoc"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
	"devcred/pkg/platform/httputil"
	"devcred/pkg/platform/middleware/request"
)

// Service defines the credential operations used by the handler.
type Service interface {
	Generate(ctx context.Context, req models.GenerateRequest) models.GenerateResult
	GenerateBatch(ctx context.Context, reqs []models.GenerateRequest, opts models.BatchOptions) (*models.BatchResult, error)
	Verify(ctx context.Context, req models.VerifyRequest) (*models.VerificationResult, error)
	Revoke(ctx context.Context, id domain.CredentialID) (bool, error)
	Get(ctx context.Context, id domain.CredentialID) (*models.CredentialRecord, error)
	List(ctx context.Context, subject domain.SubjectID) ([]models.CredentialRecord, error)
	Export(ctx context.Context, id domain.CredentialID) (*vcdoc.Document, error)
	BudgetStatus(ctx context.Context, subject domain.SubjectID) (privacy.Balance, error)
	Pending() []models.PendingRequest
}

// Handler wires credential endpoints to the credential manager.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts credential endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.HandleGenerate)
	r.Post("/credentials/batch", h.HandleGenerateBatch)
	r.Post("/credentials/verify", h.HandleVerify)
	r.Get("/credentials/pending", h.HandlePending)
	r.Get("/credentials/{id}", h.HandleGet)
	r.Get("/credentials/{id}/vc", h.HandleExport)
	r.Post("/credentials/{id}/revoke", h.HandleRevoke)
	r.Get("/subjects/{id}/credentials", h.HandleList)
	r.Get("/subjects/{id}/budget", h.HandleBudget)
}

// HandleGenerate handles POST /credentials. Invalid generations are reported
// in the body with the status their error code maps to.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.IDFromContext(ctx)

	req, ok := httputil.Decode[GenerateRequest](w, r, h.logger)
	if !ok {
		return
	}

	res := h.service.Generate(ctx, req.GenerateRequest)
	status := http.StatusCreated
	if res.Status != models.GenerateStatusReady {
		status = httputil.DomainCodeToHTTPStatus(dErrors.Code(res.ErrorCode))
		h.logger.InfoContext(ctx, "credential generation rejected",
			"request_id", requestID,
			"subject_id", req.Subject,
			"error_code", res.ErrorCode,
		)
	}
	httputil.WriteJSON(w, status, res)
}

// HandleGenerateBatch handles POST /credentials/batch.
func (h *Handler) HandleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.IDFromContext(ctx)

	req, ok := httputil.Decode[BatchRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.GenerateBatch(ctx, req.Requests, models.BatchOptions{Parallel: req.Parallel})
	if err != nil {
		h.logger.WarnContext(ctx, "batch rejected",
			"request_id", requestID,
			"batch_size", len(req.Requests),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleVerify handles POST /credentials/verify. A failed verification is
// still a 200; the outcome is in the body.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.IDFromContext(ctx)

	req, ok := httputil.Decode[VerifyRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.Verify(ctx, req.VerifyRequest)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to verify credential",
			"request_id", requestID,
			"credential_id", req.CredentialID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// RevokeResponse reports whether a revocation changed anything.
type RevokeResponse struct {
	CredentialID domain.CredentialID `json:"credentialId"`
	Revoked      bool                `json:"revoked"`
}

// HandleRevoke handles POST /credentials/{id}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.IDFromContext(ctx)

	id, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	changed, err := h.service.Revoke(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke credential",
			"request_id", requestID,
			"credential_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{CredentialID: id, Revoked: changed})
}

// HandleGet handles GET /credentials/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleExport handles GET /credentials/{id}/vc.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.IDFromContext(ctx)

	id, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	doc, err := h.service.Export(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to export credential",
			"request_id", requestID,
			"credential_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vc+ld+json")
	w.WriteHeader(http.StatusOK)
	// Headers are already sent; an encoding error cannot change the status.
	_ = json.NewEncoder(w).Encode(doc)
}

// ListResponse wraps a subject's credentials.
type ListResponse struct {
	Subject     domain.SubjectID          `json:"subject"`
	Credentials []models.CredentialRecord `json:"credentials"`
}

// HandleList handles GET /subjects/{id}/credentials.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject, ok := h.subjectID(w, r)
	if !ok {
		return
	}

	recs, err := h.service.List(ctx, subject)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list credentials",
			"request_id", request.IDFromContext(ctx),
			"subject_id", subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if recs == nil {
		recs = []models.CredentialRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Subject: subject, Credentials: recs})
}

// BudgetResponse is a subject's privacy budget.
type BudgetResponse struct {
	Subject   domain.SubjectID `json:"subject"`
	Spent     float64          `json:"spent"`
	Budget    float64          `json:"budget"`
	Remaining float64          `json:"remaining"`
}

// HandleBudget handles GET /subjects/{id}/budget.
func (h *Handler) HandleBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject, ok := h.subjectID(w, r)
	if !ok {
		return
	}

	bal, err := h.service.BudgetStatus(ctx, subject)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read privacy budget",
			"request_id", request.IDFromContext(ctx),
			"subject_id", subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BudgetResponse{
		Subject:   subject,
		Spent:     bal.Spent,
		Budget:    bal.Budget,
		Remaining: bal.Remaining(),
	})
}

// HandlePending handles GET /credentials/pending.
func (h *Handler) HandlePending(w http.ResponseWriter, _ *http.Request) {
	pending := h.service.Pending()
	if pending == nil {
		pending = []models.PendingRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, pending)
}

func (h *Handler) credentialID(w http.ResponseWriter, r *http.Request) (domain.CredentialID, bool) {
	id, err := domain.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "invalid credential id"))
		return "", false
	}
	return id, true
}

func (h *Handler) subjectID(w http.ResponseWriter, r *http.Request) (domain.SubjectID, bool) {
	id, err := domain.ParseSubjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "invalid subject id"))
		return "", false
	}
	return id, true
}

var _ Service = (*service.Service)(nil)
