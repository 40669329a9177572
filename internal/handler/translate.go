// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler contains the HTTP endpoints of the osync service: content
// webhook receivers, public lead capture, and health checks.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/olegiv/osync-go/internal/content"
	"github.com/olegiv/osync-go/internal/model"
	"github.com/olegiv/osync-go/internal/translate"
	"github.com/olegiv/osync-go/internal/webhook"
)

// SignatureHeaderName is the inbound webhook signature header set by the
// content store.
const SignatureHeaderName = "sanity-webhook-signature"

// maxWebhookBody caps inbound webhook payload size (1MB).
const maxWebhookBody = 1 << 20

// TranslateHandler receives content-change webhooks and runs the
// translation engine.
type TranslateHandler struct {
	engine  *translate.Engine
	content content.Client
	secret  string
	isDev   bool
	logger  *slog.Logger
}

// NewTranslateHandler creates a translate webhook handler.
func NewTranslateHandler(engine *translate.Engine, c content.Client, secret string, isDev bool, logger *slog.Logger) *TranslateHandler {
	return &TranslateHandler{
		engine:  engine,
		content: c,
		secret:  secret,
		isDev:   isDev,
		logger:  logger,
	}
}

// blogWebhookPayload is the reduced projection the content store sends to
// the blog webhook. The document id may arrive directly or inside the ids
// groups of a projection-less webhook.
type blogWebhookPayload struct {
	ID  string `json:"_id"`
	IDs struct {
		Created []string `json:"created"`
		Updated []string `json:"updated"`
	} `json:"ids"`
}

func (p *blogWebhookPayload) documentID() string {
	if p.ID != "" {
		return p.ID
	}
	if len(p.IDs.Created) > 0 {
		return p.IDs.Created[0]
	}
	if len(p.IDs.Updated) > 0 {
		return p.IDs.Updated[0]
	}
	return ""
}

// readVerifiedBody reads the request body and checks the webhook signature.
// It writes the error response itself and returns nil when the request must
// not be processed.
func (h *TranslateHandler) readVerifiedBody(w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Failed to read request body")
		return nil
	}

	if !webhook.VerifyInbound(body, r.Header.Get(SignatureHeaderName), h.secret) {
		h.logger.Warn("Rejected webhook with invalid signature",
			"category", "translate", "path", r.URL.Path)
		writeJSONError(w, http.StatusUnauthorized, "Invalid webhook signature")
		return nil
	}

	return body
}

// Document handles POST /hooks/translate and POST /hooks/translate/pages.
// The payload is the changed document itself; the engine dispatches on its
// type.
func (h *TranslateHandler) Document(w http.ResponseWriter, r *http.Request) {
	body := h.readVerifiedBody(w, r)
	if body == nil {
		return
	}

	var doc model.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	h.logger.Info("Webhook received",
		"category", "translate", "type", doc.Type(), "doc_id", doc.ID(), "lang", doc.Language())

	h.translate(w, r, doc)
}

// Blog handles POST /hooks/translate/blog. Unlike the document webhooks it
// receives only ids and fetches the full document before translating.
func (h *TranslateHandler) Blog(w http.ResponseWriter, r *http.Request) {
	body := h.readVerifiedBody(w, r)
	if body == nil {
		return
	}

	var payload blogWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	docID := payload.documentID()
	if docID == "" {
		writeJSONError(w, http.StatusBadRequest, "No post ID provided")
		return
	}

	doc, err := h.content.GetDocument(r.Context(), docID)
	if errors.Is(err, content.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.serverError(w, "fetching document", err)
		return
	}

	h.logger.Info("Blog webhook received",
		"category", "translate", "type", doc.Type(), "doc_id", doc.ID())

	h.translate(w, r, doc)
}

// translate runs the shared skip checks and the engine, then reports the
// per-language results.
func (h *TranslateHandler) translate(w http.ResponseWriter, r *http.Request, doc model.Document) {
	// Taxonomy documents hold all languages in one document; the skip
	// checks below do not apply to them.
	if doc.Type() != model.TypeCategory && doc.Type() != model.TypeTag {
		if doc.Language() != model.SourceLanguage {
			writeJSONMessage(w, "Skipping non-English document")
			return
		}
		if model.LanguageSettingsOf(doc).IsLanguageSpecific {
			writeJSONMessage(w, "Skipping language-specific content")
			return
		}
	}

	results, err := h.engine.TranslateDocument(r.Context(), doc)
	if errors.Is(err, translate.ErrUnsupportedType) {
		writeJSONMessage(w, fmt.Sprintf("Unsupported document type: %s", doc.Type()))
		return
	}
	if err != nil {
		h.serverError(w, "translating document", err)
		return
	}

	languages := make([]string, 0, len(results))
	for _, res := range results {
		languages = append(languages, res.Language)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   fmt.Sprintf("Successfully translated to %d languages", len(results)),
		"languages": languages,
		"results":   results,
	})
}

// serverError logs the failure and answers with a generic 500; the detail
// is exposed only in development.
func (h *TranslateHandler) serverError(w http.ResponseWriter, action string, err error) {
	h.logger.Error("Translation webhook failed",
		"category", "translate", "action", action, "error", err)

	resp := map[string]any{"error": "Translation failed"}
	if h.isDev {
		resp["details"] = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}
