// Package model defines domain models and types used throughout the application.
package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Outbound delivery statuses
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
	DeliveryStatusDead      = "dead"
)

// WebhookDestination is an outbound webhook configured on a lead form in the
// content store.
type WebhookDestination struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Enabled   bool              `json:"enabled"`
	SecretKey string            `json:"secretKey"`
}

// UnmarshalJSON accepts headers as either a plain object or the content
// store's array-of-{key,value} form.
func (w *WebhookDestination) UnmarshalJSON(data []byte) error {
	type alias WebhookDestination
	aux := struct {
		*alias
		Headers json.RawMessage `json:"headers"`
	}{alias: (*alias)(w)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Headers) == 0 || string(aux.Headers) == "null" {
		return nil
	}

	headers := make(map[string]string)
	if err := json.Unmarshal(aux.Headers, &headers); err == nil {
		w.Headers = headers
		return nil
	}

	var pairs []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(aux.Headers, &pairs); err != nil {
		return err
	}
	for _, p := range pairs {
		if p.Key != "" && p.Value != "" {
			headers[p.Key] = p.Value
		}
	}
	w.Headers = headers
	return nil
}

// WebhookResult records the outcome of one delivery attempt to one
// destination.
type WebhookResult struct {
	Destination string    `json:"destination"`
	Success     bool      `json:"success"`
	StatusCode  int       `json:"statusCode,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// WebhookDelivery is a row in the retry queue for failed outbound deliveries.
type WebhookDelivery struct {
	ID           int64         `json:"id"`
	SubmissionID string        `json:"submission_id"`
	Destination  string        `json:"destination"`
	URL          string        `json:"url"`
	Secret       string        `json:"-"`
	Headers      string        `json:"-"` // JSON object stored as string
	Payload      string        `json:"payload"`
	ResponseCode sql.NullInt64 `json:"response_code,omitempty"`
	Attempts     int64         `json:"attempts"`
	NextRetryAt  sql.NullTime  `json:"next_retry_at,omitempty"`
	DeliveredAt  sql.NullTime  `json:"delivered_at,omitempty"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// GetHeaders parses the JSON headers string into a map.
func (d *WebhookDelivery) GetHeaders() map[string]string {
	headers := make(map[string]string)
	if d.Headers == "" || d.Headers == "{}" {
		return headers
	}
	_ = json.Unmarshal([]byte(d.Headers), &headers)
	return headers
}

// SetHeaders sets the headers from a map to JSON string.
func (d *WebhookDelivery) SetHeaders(headers map[string]string) {
	if len(headers) == 0 {
		d.Headers = "{}"
		return
	}
	data, _ := json.Marshal(headers)
	d.Headers = string(data)
}

// HeadersToJSON converts a map of headers to a JSON string.
func HeadersToJSON(headers map[string]string) string {
	if len(headers) == 0 {
		return "{}"
	}
	data, _ := json.Marshal(headers)
	return string(data)
}

// ResultsToJSON converts delivery results to a JSON string for persistence.
func ResultsToJSON(results []WebhookResult) string {
	if len(results) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(results)
	return string(data)
}

// IsPending returns true if the delivery is pending.
func (d *WebhookDelivery) IsPending() bool {
	return d.Status == DeliveryStatusPending
}

// IsDelivered returns true if the delivery was successful.
func (d *WebhookDelivery) IsDelivered() bool {
	return d.Status == DeliveryStatusDelivered
}

// IsFailed returns true if the delivery failed but may retry.
func (d *WebhookDelivery) IsFailed() bool {
	return d.Status == DeliveryStatusFailed
}

// IsDead returns true if the delivery has exhausted all retries.
func (d *WebhookDelivery) IsDead() bool {
	return d.Status == DeliveryStatusDead
}
