// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/osync-go/internal/leads"
	"github.com/olegiv/osync-go/internal/util"
)

// LeadsHandler exposes the public lead-capture endpoint.
type LeadsHandler struct {
	service *leads.Service
	isDev   bool
	logger  *slog.Logger
}

// NewLeadsHandler creates a lead capture handler.
func NewLeadsHandler(service *leads.Service, isDev bool, logger *slog.Logger) *LeadsHandler {
	return &LeadsHandler{
		service: service,
		isDev:   isDev,
		logger:  logger,
	}
}

// Submit handles POST /leads.
func (h *LeadsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req leads.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	meta := leads.RequestMeta{
		IP:        util.ClientIP(r),
		UserAgent: r.UserAgent(),
	}

	resp, err := h.service.Process(r.Context(), req, meta)
	switch {
	case errors.Is(err, leads.ErrMissingFormID):
		writeJSONError(w, http.StatusBadRequest, "Missing formId")
	case errors.Is(err, leads.ErrMissingData):
		writeJSONError(w, http.StatusBadRequest, "Missing form data")
	case errors.Is(err, leads.ErrFormNotFound):
		writeJSONError(w, http.StatusNotFound, "Form not found")
	case err != nil:
		h.logger.Error("Lead submission failed",
			"category", "lead", "form_id", req.FormID, "error", err)
		body := map[string]any{"error": "Internal server error"}
		if h.isDev {
			body["message"] = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, body)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// Preflight handles OPTIONS /leads for clients whose preflight is not
// answered by the CORS middleware.
func (h *LeadsHandler) Preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// MethodNotAllowed answers requests with an unsupported method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
