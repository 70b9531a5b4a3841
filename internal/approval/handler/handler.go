// Package handler wires the approval endpoint to the approval service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"regbridge/internal/approval"
	dErrors "regbridge/pkg/domain-errors"
	"regbridge/pkg/platform/httputil"
	"regbridge/pkg/requestcontext"
)

// Service defines the interface for approval operations.
type Service interface {
	Approve(ctx context.Context, txBase64 string) (approval.Outcome, error)
}

// Handler exposes the approve endpoint.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an approval handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts approval endpoints on the router. GET is kept for
// wallet-compat with the original bridge's query-parameter interface.
func (h *Handler) Register(r chi.Router) {
	r.Post("/tx/approve", h.HandleApprove)
	r.Get("/tx/approve", h.HandleApprove)
}

// ApproveRequest is the JSON request payload.
type ApproveRequest struct {
	Tx string `json:"tx"`
}

// HandleApprove handles POST and GET /tx/approve requests.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	txBase64, err := h.txParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	outcome, err := h.service.Approve(ctx, txBase64)
	if err != nil {
		h.logger.ErrorContext(ctx, "approval request failed",
			"request_id", requestID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "approval request served",
		"request_id", requestID,
		"status", outcome.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

// txParam accepts the envelope from the JSON body or, for GET, the tx query
// parameter.
func (h *Handler) txParam(r *http.Request) (string, error) {
	if r.Method == http.MethodGet {
		tx := r.URL.Query().Get("tx")
		if tx == "" {
			return "", dErrors.New(dErrors.CodeBadRequest, "missing tx parameter")
		}
		return tx, nil
	}

	var req ApproveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return "", err
	}
	if req.Tx == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "missing tx field")
	}
	return req.Tx, nil
}
