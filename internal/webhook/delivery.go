// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/osync-go/internal/model"
	"github.com/olegiv/osync-go/internal/util"
)

// Delivery configuration constants
const (
	MaxAttempts    = 5                // Maximum number of delivery attempts
	InitialBackoff = 1 * time.Minute  // Initial backoff delay
	MaxBackoff     = 24 * time.Hour   // Maximum backoff delay
	RequestTimeout = 30 * time.Second // HTTP request timeout
	MaxResponseLen = 10 * 1024        // Maximum response body to read (10KB)
	UserAgent      = "osync/1.0"      // User-Agent header value
)

// DeliveryResult represents the result of a delivery attempt.
type DeliveryResult struct {
	Success     bool
	StatusCode  int
	Error       error
	ShouldRetry bool
}

// Deliverer posts payloads to webhook destinations. The zero value is not
// usable; construct with NewDeliverer.
type Deliverer struct {
	// Client is the HTTP client used for deliveries.
	Client *http.Client
	// ValidateURL guards outbound requests against SSRF. Tests targeting
	// loopback servers replace it.
	ValidateURL func(string) error
}

// NewDeliverer creates a Deliverer with production defaults.
func NewDeliverer() *Deliverer {
	return &Deliverer{
		Client: &http.Client{
			Timeout: RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		ValidateURL: util.ValidateWebhookURL,
	}
}

// Deliver posts a payload to one webhook destination. When the destination
// has a secret, the request carries an HMAC signature and timestamp so the
// receiver can authenticate it.
func (d *Deliverer) Deliver(ctx context.Context, dest model.WebhookDestination, payload []byte) DeliveryResult {
	if err := d.ValidateURL(dest.URL); err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("webhook URL rejected: %w", err),
			ShouldRetry: false,
		}
	}

	method := dest.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, dest.URL, bytes.NewReader(payload))
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("failed to create request: %w", err),
			ShouldRetry: false,
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	for key, value := range dest.Headers {
		req.Header.Set(key, value)
	}
	if dest.SecretKey != "" {
		req.Header.Set("X-Webhook-Signature", SignatureHeader(payload, dest.SecretKey))
		req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("request failed: %w", err),
			ShouldRetry: true, // Network error, retry
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain a bounded amount so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseLen))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return DeliveryResult{Success: true, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client error - don't retry (except 408 Request Timeout and 429 Too Many Requests)
		shouldRetry := resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests
		return DeliveryResult{
			StatusCode:  resp.StatusCode,
			Error:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			ShouldRetry: shouldRetry,
		}
	default:
		// Server error (5xx) - retry
		return DeliveryResult{
			StatusCode:  resp.StatusCode,
			Error:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			ShouldRetry: true,
		}
	}
}

// calculateBackoff calculates the exponential backoff duration for a given attempt.
// Attempt 1 = 1 min, attempt 2 = 2 min, attempt 3 = 4 min, capped at MaxBackoff.
func calculateBackoff(attempt int64) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	backoff := time.Duration(float64(InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if backoff > MaxBackoff {
		backoff = MaxBackoff
	}

	return backoff
}
