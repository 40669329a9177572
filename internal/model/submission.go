// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// Lead submission statuses
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusClosed    = "closed"
)

// LeadContext carries page and campaign context captured alongside a
// submission.
type LeadContext struct {
	Plan        string `json:"plan,omitempty"`
	Source      string `json:"source,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
	UTMTerm     string `json:"utmTerm,omitempty"`
	UTMContent  string `json:"utmContent,omitempty"`
	Language    string `json:"language,omitempty"`
	Region      string `json:"region,omitempty"`
}

// LeadSubmission is a captured form submission. Known fields are split out;
// everything else a form sends lives in AdditionalFields.
type LeadSubmission struct {
	ID               string    `json:"id"`
	FormID           string    `json:"form_id"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	Company          string    `json:"company,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Message          string    `json:"message,omitempty"`
	AdditionalFields string    `json:"-"` // JSON object stored as string
	Context          string    `json:"-"` // JSON LeadContext stored as string
	IP               string    `json:"ip,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	Browser          string    `json:"browser,omitempty"`
	OS               string    `json:"os,omitempty"`
	DeviceType       string    `json:"device_type,omitempty"`
	Status           string    `json:"status"`
	Notes            string    `json:"notes,omitempty"`
	WebhookResults   string    `json:"-"` // JSON array stored as string
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GetAdditionalFields parses the additional-fields JSON into a map.
func (s *LeadSubmission) GetAdditionalFields() map[string]string {
	fields := make(map[string]string)
	if s.AdditionalFields == "" || s.AdditionalFields == "{}" {
		return fields
	}
	_ = json.Unmarshal([]byte(s.AdditionalFields), &fields)
	return fields
}

// SetAdditionalFields stores a map as the additional-fields JSON.
func (s *LeadSubmission) SetAdditionalFields(fields map[string]string) {
	if len(fields) == 0 {
		s.AdditionalFields = "{}"
		return
	}
	data, _ := json.Marshal(fields)
	s.AdditionalFields = string(data)
}

// GetContext parses the context JSON.
func (s *LeadSubmission) GetContext() LeadContext {
	var ctx LeadContext
	if s.Context == "" {
		return ctx
	}
	_ = json.Unmarshal([]byte(s.Context), &ctx)
	return ctx
}

// SetContext stores the context as JSON.
func (s *LeadSubmission) SetContext(ctx LeadContext) {
	data, _ := json.Marshal(ctx)
	s.Context = string(data)
}

// GetWebhookResults parses the recorded delivery results.
func (s *LeadSubmission) GetWebhookResults() []WebhookResult {
	var results []WebhookResult
	if s.WebhookResults == "" || s.WebhookResults == "[]" {
		return results
	}
	_ = json.Unmarshal([]byte(s.WebhookResults), &results)
	return results
}

// Success actions a lead form can request after a submission.
const (
	SuccessActionMessage     = "message"
	SuccessActionRedirect    = "redirect"
	SuccessActionAppRedirect = "app_redirect"
)

// LeadFormConfig is a lead form's configuration document in the content
// store, fetched by formId when a submission arrives.
type LeadFormConfig struct {
	FormID                string               `json:"formId"`
	Name                  string               `json:"name"`
	SuccessAction         string               `json:"successAction"`
	SuccessMessage        string               `json:"successMessage"`
	RedirectURL           string               `json:"redirectUrl"`
	PassContextToRedirect bool                 `json:"passContextToRedirect"`
	Webhooks              []WebhookDestination `json:"webhooks"`
}

// IsRedirect reports whether the form wants the client redirected after a
// successful submission.
func (f *LeadFormConfig) IsRedirect() bool {
	return f.SuccessAction == SuccessActionRedirect || f.SuccessAction == SuccessActionAppRedirect
}
