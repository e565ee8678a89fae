/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"go.opentelemetry.io/otel"
)

const notificationColumns = `id, kind, recipient_id, payload, retry_after, attempts, last_error, created_at`

func insertNotification(ctx context.Context, conn execer, entry *model.NotificationQueueEntry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal notification payload", err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO srp.notification_queue (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.Kind, entry.RecipientID, payload, entry.RetryAfter, entry.Attempts, entry.LastError, entry.CreatedAt)
	if err != nil {
		return mapError(err, "notification")
	}
	return nil
}

func (d Datasource) EnqueueNotification(ctx context.Context, entry *model.NotificationQueueEntry) error {
	ctx, span := otel.Tracer("Notifications").Start(ctx, "Enqueueing notification")
	defer span.End()

	if err := insertNotification(ctx, d.Conn, entry); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// GetDueNotifications returns up to limit entries whose retry_after is not after now,
// earliest first.
func (d Datasource) GetDueNotifications(ctx context.Context, now time.Time, limit int) ([]model.NotificationQueueEntry, error) {
	ctx, span := otel.Tracer("Notifications").Start(ctx, "Fetching due notifications")
	defer span.End()

	return d.queryNotifications(ctx, `
		SELECT `+notificationColumns+`
		FROM srp.notification_queue
		WHERE retry_after <= $1
		ORDER BY retry_after ASC, created_at ASC
		LIMIT $2
	`, now, limit)
}

func (d Datasource) ListNotifications(ctx context.Context, limit, offset int) ([]model.NotificationQueueEntry, error) {
	ctx, span := otel.Tracer("Notifications").Start(ctx, "Listing notifications")
	defer span.End()

	return d.queryNotifications(ctx, `
		SELECT `+notificationColumns+`
		FROM srp.notification_queue
		ORDER BY retry_after ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (d Datasource) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]model.NotificationQueueEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve notifications", err)
	}
	defer rows.Close()

	entries := []model.NotificationQueueEntry{}
	for rows.Next() {
		var (
			entry   model.NotificationQueueEntry
			payload []byte
		)
		err = rows.Scan(&entry.ID, &entry.Kind, &entry.RecipientID, &payload, &entry.RetryAfter,
			&entry.Attempts, &entry.LastError, &entry.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan notification", err)
		}
		if err = json.Unmarshal(payload, &entry.Payload); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal notification payload", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over notifications", err)
	}
	return entries, nil
}

func (d Datasource) DeleteNotification(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("Notifications").Start(ctx, "Deleting notification")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `DELETE FROM srp.notification_queue WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete notification", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Notification not found", nil)
	}
	return nil
}

func (d Datasource) UpdateNotificationRetry(ctx context.Context, id string, retryAfter time.Time, attempts int, lastErr string) error {
	ctx, span := otel.Tracer("Notifications").Start(ctx, "Rescheduling notification")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE srp.notification_queue
		SET retry_after = $2, attempts = $3, last_error = $4
		WHERE id = $1
	`, id, retryAfter, attempts, lastErr)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update notification", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Notification not found", nil)
	}
	return nil
}
