// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/olegiv/osync-go/internal/model"
	"github.com/olegiv/osync-go/internal/store"
)

// BatchSize limits how many due deliveries one retry pass picks up.
const BatchSize = 50

// Retrier drains the webhook delivery retry queue. Failed deliveries are
// retried with exponential backoff until they succeed or exhaust
// MaxAttempts, at which point they are marked dead.
type Retrier struct {
	queries   *store.Queries
	deliverer *Deliverer
	logger    *slog.Logger
}

// NewRetrier creates a Retrier backed by the given store.
func NewRetrier(queries *store.Queries, deliverer *Deliverer, logger *slog.Logger) *Retrier {
	return &Retrier{
		queries:   queries,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Run processes all deliveries whose retry time has come. It is intended to
// be invoked periodically from the scheduler.
func (r *Retrier) Run(ctx context.Context) error {
	due, err := r.queries.ListDueWebhookDeliveries(ctx, time.Now(), BatchSize)
	if err != nil {
		return err
	}

	for _, delivery := range due {
		r.process(ctx, delivery)
	}

	return nil
}

func (r *Retrier) process(ctx context.Context, d model.WebhookDelivery) {
	dest := model.WebhookDestination{
		Name:      d.Destination,
		URL:       d.URL,
		Headers:   d.GetHeaders(),
		SecretKey: d.Secret,
	}

	attempts := d.Attempts + 1
	result := r.deliverer.Deliver(ctx, dest, []byte(d.Payload))
	code := sql.NullInt64{Int64: int64(result.StatusCode), Valid: result.StatusCode != 0}

	switch {
	case result.Success:
		if err := r.queries.UpdateDeliverySuccess(ctx, d.ID, int64(result.StatusCode), attempts); err != nil {
			r.logger.Error("Failed to mark delivery delivered",
				"category", "webhook", "delivery_id", d.ID, "error", err)
			return
		}
		r.logger.Info("Webhook delivery succeeded on retry",
			"category", "webhook", "delivery_id", d.ID,
			"destination", d.Destination, "attempts", attempts)

	case !result.ShouldRetry || attempts >= MaxAttempts:
		if err := r.queries.UpdateDeliveryDead(ctx, d.ID, code, attempts, result.Error.Error()); err != nil {
			r.logger.Error("Failed to mark delivery dead",
				"category", "webhook", "delivery_id", d.ID, "error", err)
			return
		}
		r.logger.Error("Webhook delivery exhausted",
			"category", "webhook", "delivery_id", d.ID,
			"destination", d.Destination, "attempts", attempts, "error", result.Error)

	default:
		next := time.Now().UTC().Add(calculateBackoff(attempts))
		if err := r.queries.UpdateDeliveryRetry(ctx, d.ID, code, attempts, next, result.Error.Error()); err != nil {
			r.logger.Error("Failed to schedule delivery retry",
				"category", "webhook", "delivery_id", d.ID, "error", err)
			return
		}
		r.logger.Warn("Webhook delivery failed, will retry",
			"category", "webhook", "delivery_id", d.ID,
			"destination", d.Destination, "attempts", attempts,
			"next_retry_at", next, "error", result.Error)
	}
}

// Enqueue stores a failed first delivery so the retrier picks it up later.
func Enqueue(ctx context.Context, queries *store.Queries, submissionID string, dest model.WebhookDestination, payload []byte, result DeliveryResult) error {
	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}

	d := model.WebhookDelivery{
		SubmissionID: submissionID,
		Destination:  dest.Name,
		URL:          dest.URL,
		Secret:       dest.SecretKey,
		Headers:      model.HeadersToJSON(dest.Headers),
		Payload:      string(payload),
		ResponseCode: sql.NullInt64{Int64: int64(result.StatusCode), Valid: result.StatusCode != 0},
		Attempts:     1,
		NextRetryAt:  sql.NullTime{Time: time.Now().UTC().Add(calculateBackoff(1)), Valid: true},
		Status:       model.DeliveryStatusFailed,
		ErrorMessage: errMsg,
	}

	_, err := queries.CreateWebhookDelivery(ctx, d)
	return err
}
