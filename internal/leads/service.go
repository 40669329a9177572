// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package leads processes public form submissions: validation, sanitization,
// persistence, and signed webhook fan-out to configured destinations.
package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mileusna/useragent"

	"github.com/olegiv/osync-go/internal/content"
	"github.com/olegiv/osync-go/internal/model"
	"github.com/olegiv/osync-go/internal/store"
	"github.com/olegiv/osync-go/internal/webhook"
)

// Validation and lookup errors. The HTTP layer maps these to status codes.
var (
	ErrMissingFormID = errors.New("missing formId")
	ErrMissingData   = errors.New("missing form data")
	ErrFormNotFound  = errors.New("form not found")
)

// knownFields are submission fields stored in dedicated columns; everything
// else goes into the additional-fields bag.
var knownFields = map[string]bool{
	"email":   true,
	"name":    true,
	"company": true,
	"phone":   true,
	"message": true,
}

const formConfigQuery = `*[_type == "leadForm" && formId == $formId][0]{
	formId, name, webhooks, successAction, redirectUrl,
	passContextToRedirect, successMessage
}`

// SubmissionRequest is the body of a POST /leads request.
type SubmissionRequest struct {
	FormID  string            `json:"formId"`
	Data    map[string]string `json:"data"`
	Context model.LeadContext `json:"context"`
}

// RequestMeta carries transport-level metadata extracted by the HTTP layer.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Response is returned to the submitting client.
type Response struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submissionId"`
	Redirect     string `json:"redirect,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Service handles lead submissions end to end.
type Service struct {
	content   content.Client
	queries   *store.Queries
	deliverer *webhook.Deliverer
	logger    *slog.Logger
	sanitizer *bluemonday.Policy
	newID     func() string
	now       func() time.Time
}

// NewService creates a lead service.
func NewService(c content.Client, q *store.Queries, d *webhook.Deliverer, logger *slog.Logger) *Service {
	return &Service{
		content:   c,
		queries:   q,
		deliverer: d,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Process validates a submission, persists it, fires configured webhooks and
// computes the client response.
func (s *Service) Process(ctx context.Context, req SubmissionRequest, meta RequestMeta) (*Response, error) {
	if req.FormID == "" {
		return nil, ErrMissingFormID
	}
	if len(req.Data) == 0 {
		return nil, ErrMissingData
	}

	form, err := s.fetchForm(ctx, req.FormID)
	if err != nil {
		return nil, err
	}

	sub := s.buildSubmission(req, meta)
	if err := s.queries.CreateLeadSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("persisting submission: %w", err)
	}

	s.logger.Info("Lead submission created",
		"category", "lead", "form_id", req.FormID, "submission_id", sub.ID)

	if len(form.Webhooks) > 0 {
		s.fireWebhooks(ctx, form, sub, req, meta)
	}

	return s.buildResponse(form, sub, req), nil
}

func (s *Service) fetchForm(ctx context.Context, formID string) (*model.LeadFormConfig, error) {
	var form model.LeadFormConfig
	err := s.content.Fetch(ctx, formConfigQuery, map[string]any{"formId": formID}, &form)
	if errors.Is(err, content.ErrNotFound) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching form config: %w", err)
	}
	return &form, nil
}

func (s *Service) buildSubmission(req SubmissionRequest, meta RequestMeta) model.LeadSubmission {
	additional := make(map[string]string)
	for key, value := range req.Data {
		if !knownFields[key] {
			additional[key] = s.sanitizer.Sanitize(value)
		}
	}

	ua := useragent.Parse(meta.UserAgent)

	sub := model.LeadSubmission{
		ID:         s.newID(),
		FormID:     req.FormID,
		Email:      strings.TrimSpace(req.Data["email"]),
		Name:       s.sanitizer.Sanitize(req.Data["name"]),
		Company:    s.sanitizer.Sanitize(req.Data["company"]),
		Phone:      strings.TrimSpace(req.Data["phone"]),
		Message:    s.sanitizer.Sanitize(req.Data["message"]),
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		Browser:    ua.Name,
		OS:         ua.OS,
		DeviceType: deviceType(ua),
		Status:     model.LeadStatusNew,
	}
	sub.SetAdditionalFields(additional)
	sub.SetContext(req.Context)
	return sub
}

func deviceType(ua useragent.UserAgent) string {
	switch {
	case ua.Bot:
		return "bot"
	case ua.Mobile:
		return "mobile"
	case ua.Tablet:
		return "tablet"
	case ua.Desktop:
		return "desktop"
	default:
		return "unknown"
	}
}

// fireWebhooks delivers the submission to every enabled destination in
// order, records the per-destination results on the submission, and queues
// retryable failures.
func (s *Service) fireWebhooks(ctx context.Context, form *model.LeadFormConfig, sub model.LeadSubmission, req SubmissionRequest, meta RequestMeta) {
	payload, err := json.Marshal(s.webhookPayload(sub, req, meta))
	if err != nil {
		s.logger.Error("Failed to build webhook payload",
			"category", "webhook", "submission_id", sub.ID, "error", err)
		return
	}

	var results []model.WebhookResult
	for _, dest := range form.Webhooks {
		if !dest.Enabled {
			continue
		}

		result := s.deliverer.Deliver(ctx, dest, payload)
		record := model.WebhookResult{
			Destination: destinationName(dest),
			Success:     result.Success,
			StatusCode:  result.StatusCode,
			Timestamp:   s.now().UTC(),
		}
		if result.Error != nil {
			record.Error = result.Error.Error()
		}
		results = append(results, record)

		if result.Success {
			s.logger.Info("Webhook delivered",
				"category", "webhook", "submission_id", sub.ID,
				"destination", record.Destination, "status_code", result.StatusCode)
			continue
		}

		s.logger.Warn("Webhook delivery failed",
			"category", "webhook", "submission_id", sub.ID,
			"destination", record.Destination, "error", result.Error)

		if result.ShouldRetry {
			if err := webhook.Enqueue(ctx, s.queries, sub.ID, dest, payload, result); err != nil {
				s.logger.Error("Failed to enqueue delivery retry",
					"category", "webhook", "submission_id", sub.ID, "error", err)
			}
		}
	}

	if len(results) == 0 {
		return
	}
	if err := s.queries.UpdateLeadSubmissionWebhookResults(ctx, sub.ID, model.ResultsToJSON(results)); err != nil {
		s.logger.Error("Failed to record webhook results",
			"category", "webhook", "submission_id", sub.ID, "error", err)
	}
}

// webhookPayload is what destinations receive: the raw form data plus the
// page context enriched with transport metadata.
func (s *Service) webhookPayload(sub model.LeadSubmission, req SubmissionRequest, meta RequestMeta) map[string]any {
	payloadCtx := make(map[string]any)
	if data, err := json.Marshal(req.Context); err == nil {
		_ = json.Unmarshal(data, &payloadCtx)
	}
	payloadCtx["userAgent"] = meta.UserAgent
	payloadCtx["ip"] = meta.IP

	return map[string]any{
		"formId":       req.FormID,
		"submissionId": sub.ID,
		"submittedAt":  s.now().UTC().Format(time.RFC3339),
		"data":         req.Data,
		"context":      payloadCtx,
	}
}

func destinationName(dest model.WebhookDestination) string {
	if dest.Name != "" {
		return dest.Name
	}
	return dest.URL
}

func (s *Service) buildResponse(form *model.LeadFormConfig, sub model.LeadSubmission, req SubmissionRequest) *Response {
	resp := &Response{
		Success:      true,
		SubmissionID: sub.ID,
	}

	if form.IsRedirect() {
		if redirect := s.buildRedirect(form, req); redirect != "" {
			resp.Redirect = redirect
		}
	}

	if form.SuccessAction == model.SuccessActionMessage || form.SuccessAction == "" {
		resp.Message = form.SuccessMessage
		if resp.Message == "" {
			resp.Message = "Thank you for signing up!"
		}
	}

	return resp
}

// buildRedirect substitutes placeholders into the form's redirect URL and
// optionally appends context query parameters.
func (s *Service) buildRedirect(form *model.LeadFormConfig, req SubmissionRequest) string {
	redirect := form.RedirectURL
	if redirect == "" {
		return ""
	}

	redirect = strings.Replace(redirect, "{email}", url.QueryEscape(req.Data["email"]), 1)
	redirect = strings.Replace(redirect, "{name}", url.QueryEscape(req.Data["name"]), 1)
	redirect = strings.Replace(redirect, "{company}", url.QueryEscape(req.Data["company"]), 1)
	redirect = strings.Replace(redirect, "{plan}", url.QueryEscape(req.Context.Plan), 1)

	if !form.PassContextToRedirect {
		return redirect
	}

	parsed, err := url.Parse(redirect)
	if err != nil {
		s.logger.Warn("Invalid redirect URL",
			"category", "lead", "form_id", form.FormID, "url", redirect)
		return redirect
	}

	query := parsed.Query()
	setIfPresent(query, "plan", req.Context.Plan)
	setIfPresent(query, "source", req.Context.Source)
	setIfPresent(query, "utm_source", req.Context.UTMSource)
	setIfPresent(query, "utm_medium", req.Context.UTMMedium)
	setIfPresent(query, "utm_campaign", req.Context.UTMCampaign)
	setIfPresent(query, "email", req.Data["email"])
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

func setIfPresent(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}
