// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store provides database access for lead submissions, the outbound
// delivery retry queue, and the event log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/osync-go/internal/model"
)

// DBTX is the interface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries wraps a database handle with typed query methods.
type Queries struct {
	db DBTX
}

// New creates a Queries instance bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries instance bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// --- Lead submissions ---

const createLeadSubmission = `
INSERT INTO lead_submissions (
	id, form_id, email, name, company, phone, message,
	additional_fields, context, ip, user_agent, browser, os, device_type,
	status, webhook_results, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateLeadSubmission inserts a new submission row.
func (q *Queries) CreateLeadSubmission(ctx context.Context, s model.LeadSubmission) error {
	now := time.Now().UTC()
	if s.Status == "" {
		s.Status = model.LeadStatusNew
	}
	if s.AdditionalFields == "" {
		s.AdditionalFields = "{}"
	}
	if s.Context == "" {
		s.Context = "{}"
	}
	if s.WebhookResults == "" {
		s.WebhookResults = "[]"
	}
	_, err := q.db.ExecContext(ctx, createLeadSubmission,
		s.ID, s.FormID, s.Email, s.Name, s.Company, s.Phone, s.Message,
		s.AdditionalFields, s.Context, s.IP, s.UserAgent, s.Browser, s.OS, s.DeviceType,
		s.Status, s.WebhookResults, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating lead submission: %w", err)
	}
	return nil
}

const getLeadSubmission = `
SELECT id, form_id, email, name, company, phone, message,
	additional_fields, context, ip, user_agent, browser, os, device_type,
	status, notes, webhook_results, created_at, updated_at
FROM lead_submissions WHERE id = ?
`

// GetLeadSubmissionByID fetches a single submission.
func (q *Queries) GetLeadSubmissionByID(ctx context.Context, id string) (model.LeadSubmission, error) {
	var s model.LeadSubmission
	err := q.db.QueryRowContext(ctx, getLeadSubmission, id).Scan(
		&s.ID, &s.FormID, &s.Email, &s.Name, &s.Company, &s.Phone, &s.Message,
		&s.AdditionalFields, &s.Context, &s.IP, &s.UserAgent, &s.Browser, &s.OS, &s.DeviceType,
		&s.Status, &s.Notes, &s.WebhookResults, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return model.LeadSubmission{}, err
	}
	return s, nil
}

// UpdateLeadSubmissionWebhookResults stores the serialized delivery results.
func (q *Queries) UpdateLeadSubmissionWebhookResults(ctx context.Context, id, resultsJSON string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE lead_submissions SET webhook_results = ?, updated_at = ? WHERE id = ?`,
		resultsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating webhook results: %w", err)
	}
	return nil
}

// UpdateLeadSubmissionStatus moves a submission through the review pipeline.
func (q *Queries) UpdateLeadSubmissionStatus(ctx context.Context, id, status, notes string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE lead_submissions SET status = ?, notes = ?, updated_at = ? WHERE id = ?`,
		status, notes, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating submission status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const listLeadSubmissionsByForm = `
SELECT id, form_id, email, name, company, phone, message,
	additional_fields, context, ip, user_agent, browser, os, device_type,
	status, notes, webhook_results, created_at, updated_at
FROM lead_submissions WHERE form_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?
`

// ListLeadSubmissionsByForm returns submissions for a form, newest first.
func (q *Queries) ListLeadSubmissionsByForm(ctx context.Context, formID string, limit, offset int64) ([]model.LeadSubmission, error) {
	rows, err := q.db.QueryContext(ctx, listLeadSubmissionsByForm, formID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing lead submissions: %w", err)
	}
	defer rows.Close()

	var out []model.LeadSubmission
	for rows.Next() {
		var s model.LeadSubmission
		if err := rows.Scan(
			&s.ID, &s.FormID, &s.Email, &s.Name, &s.Company, &s.Phone, &s.Message,
			&s.AdditionalFields, &s.Context, &s.IP, &s.UserAgent, &s.Browser, &s.OS, &s.DeviceType,
			&s.Status, &s.Notes, &s.WebhookResults, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning lead submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- Webhook delivery retry queue ---

const createWebhookDelivery = `
INSERT INTO webhook_deliveries (
	submission_id, destination, url, secret, headers, payload,
	response_code, attempts, next_retry_at, status, error_message,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateWebhookDelivery enqueues a delivery row for retry.
func (q *Queries) CreateWebhookDelivery(ctx context.Context, d model.WebhookDelivery) (int64, error) {
	now := time.Now().UTC()
	if d.Status == "" {
		d.Status = model.DeliveryStatusFailed
	}
	if d.Headers == "" {
		d.Headers = "{}"
	}
	res, err := q.db.ExecContext(ctx, createWebhookDelivery,
		d.SubmissionID, d.Destination, d.URL, d.Secret, d.Headers, d.Payload,
		d.ResponseCode, d.Attempts, d.NextRetryAt, d.Status, d.ErrorMessage,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("creating webhook delivery: %w", err)
	}
	return res.LastInsertId()
}

const getWebhookDelivery = `
SELECT id, submission_id, destination, url, secret, headers, payload,
	response_code, attempts, next_retry_at, delivered_at, status, error_message,
	created_at, updated_at
FROM webhook_deliveries WHERE id = ?
`

// GetWebhookDelivery fetches a single delivery row.
func (q *Queries) GetWebhookDelivery(ctx context.Context, id int64) (model.WebhookDelivery, error) {
	var d model.WebhookDelivery
	err := q.db.QueryRowContext(ctx, getWebhookDelivery, id).Scan(
		&d.ID, &d.SubmissionID, &d.Destination, &d.URL, &d.Secret, &d.Headers, &d.Payload,
		&d.ResponseCode, &d.Attempts, &d.NextRetryAt, &d.DeliveredAt, &d.Status, &d.ErrorMessage,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return model.WebhookDelivery{}, err
	}
	return d, nil
}

const listDueWebhookDeliveries = `
SELECT id, submission_id, destination, url, secret, headers, payload,
	response_code, attempts, next_retry_at, delivered_at, status, error_message,
	created_at, updated_at
FROM webhook_deliveries
WHERE status = 'failed' AND next_retry_at IS NOT NULL AND next_retry_at <= ?
ORDER BY next_retry_at ASC LIMIT ?
`

// ListDueWebhookDeliveries returns failed deliveries whose retry time has
// passed.
func (q *Queries) ListDueWebhookDeliveries(ctx context.Context, now time.Time, limit int64) ([]model.WebhookDelivery, error) {
	rows, err := q.db.QueryContext(ctx, listDueWebhookDeliveries, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing due deliveries: %w", err)
	}
	defer rows.Close()

	var out []model.WebhookDelivery
	for rows.Next() {
		var d model.WebhookDelivery
		if err := rows.Scan(
			&d.ID, &d.SubmissionID, &d.Destination, &d.URL, &d.Secret, &d.Headers, &d.Payload,
			&d.ResponseCode, &d.Attempts, &d.NextRetryAt, &d.DeliveredAt, &d.Status, &d.ErrorMessage,
			&d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDeliverySuccess marks a delivery as delivered.
func (q *Queries) UpdateDeliverySuccess(ctx context.Context, id int64, responseCode int64, attempts int64) error {
	now := time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status = ?, response_code = ?, attempts = ?,
			delivered_at = ?, next_retry_at = NULL, error_message = '', updated_at = ?
		WHERE id = ?`,
		model.DeliveryStatusDelivered, responseCode, attempts, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("marking delivery success: %w", err)
	}
	return nil
}

// UpdateDeliveryRetry records a failed attempt and schedules the next one.
func (q *Queries) UpdateDeliveryRetry(ctx context.Context, id int64, responseCode sql.NullInt64, attempts int64, nextRetryAt time.Time, errMsg string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status = ?, response_code = ?, attempts = ?,
			next_retry_at = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		model.DeliveryStatusFailed, responseCode, attempts, nextRetryAt.UTC(), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("scheduling delivery retry: %w", err)
	}
	return nil
}

// UpdateDeliveryDead marks a delivery as permanently failed.
func (q *Queries) UpdateDeliveryDead(ctx context.Context, id int64, responseCode sql.NullInt64, attempts int64, errMsg string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status = ?, response_code = ?, attempts = ?,
			next_retry_at = NULL, error_message = ?, updated_at = ?
		WHERE id = ?`,
		model.DeliveryStatusDead, responseCode, attempts, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking delivery dead: %w", err)
	}
	return nil
}

// --- Event log ---

// CreateEventParams holds the fields for a new event log entry.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Lang      sql.NullString
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent inserts an event log entry.
func (q *Queries) CreateEvent(ctx context.Context, p CreateEventParams) (int64, error) {
	if p.Metadata == "" {
		p.Metadata = "{}"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO events (level, category, message, lang, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Level, p.Category, p.Message, p.Lang, p.Metadata, p.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("creating event: %w", err)
	}
	return res.LastInsertId()
}

// CountRecentEvents counts events at a level since the given time. Used by
// the readiness probe to surface sustained error bursts.
func (q *Queries) CountRecentEvents(ctx context.Context, level string, since time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE level = ? AND created_at >= ?`,
		level, since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}
