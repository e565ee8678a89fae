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
	"database/sql"
	"errors"

	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

func (d Datasource) ProcessedMailExists(ctx context.Context, mailID int64) (bool, error) {
	ctx, span := otel.Tracer("Mails").Start(ctx, "Checking processed mail")
	defer span.End()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM srp.processed_mails WHERE mail_id = $1)
	`, mailID).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check processed mail", err)
	}
	return exists, nil
}

// GetProcessedMailIDs returns the ids from mailIDs that already have a processed mail record.
func (d Datasource) GetProcessedMailIDs(ctx context.Context, mailIDs []int64) (map[int64]bool, error) {
	ctx, span := otel.Tracer("Mails").Start(ctx, "Fetching processed mail ids")
	defer span.End()

	processed := make(map[int64]bool, len(mailIDs))
	if len(mailIDs) == 0 {
		return processed, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT mail_id FROM srp.processed_mails WHERE mail_id = ANY($1)
	`, pq.Array(mailIDs))
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve processed mails", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan processed mail id", err)
		}
		processed[id] = true
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over processed mails", err)
	}
	return processed, nil
}

// RecordMailOutcome persists the optional claim, the processed mail row and the optional
// notification in one transaction. If the mail row already exists nothing is written and
// ErrAlreadyProcessed is returned; a live claim on the same killmail yields ErrDuplicateKillmail.
func (d Datasource) RecordMailOutcome(ctx context.Context, outcome *model.MailOutcome) error {
	ctx, span := otel.Tracer("Mails").Start(ctx, "Recording mail outcome")
	defer span.End()

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if outcome.Claim != nil {
			if err := insertClaim(ctx, tx, outcome.Claim); err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateKillmail
				}
				return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create claim", err)
			}
			outcome.Mail.ClaimID = &outcome.Claim.ID
			if outcome.Notification != nil {
				outcome.Notification.Payload.ClaimID = outcome.Claim.ID
			}
		}

		mail := outcome.Mail
		result, err := tx.ExecContext(ctx, `
			INSERT INTO srp.processed_mails (
				mail_id, sender_id, sender_name, subject, received_at, processed_at, status, claim_id, error_detail
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (mail_id) DO NOTHING
		`, mail.MailID, mail.SenderID, mail.SenderName, mail.Subject, mail.ReceivedAt,
			mail.ProcessedAt, mail.Status, nullInt64(mail.ClaimID), mail.ErrorDetail)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record processed mail", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
		}
		if rows == 0 {
			return ErrAlreadyProcessed
		}

		if outcome.Notification != nil {
			return insertNotification(ctx, tx, outcome.Notification)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrAlreadyProcessed) {
		span.RecordError(err)
	}
	if err != nil && outcome.Claim != nil {
		outcome.Claim.ID = 0
		outcome.Mail.ClaimID = nil
	}
	return err
}

func (d Datasource) DeleteProcessedMail(ctx context.Context, mailID int64) error {
	ctx, span := otel.Tracer("Mails").Start(ctx, "Deleting processed mail")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `DELETE FROM srp.processed_mails WHERE mail_id = $1`, mailID)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete processed mail", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Processed mail not found", nil)
	}
	return nil
}
