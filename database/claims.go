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
	"encoding/json"
	"errors"
	"time"

	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"go.opentelemetry.io/otel"
)

const claimColumns = `id, character_id, character_name, killmail_id, killmail_hash, ship_type_id,
	ship_type_name, ship_group, solar_system_id, loss_time, is_polarized, killmail_value,
	base_payout_amount, final_payout_amount, status, processed_by, processed_at, denial_reason,
	admin_notes, auto_decided, fleet_id, payment_journal_id, payment_amount, paid_at,
	source_mail_id, claimant_notes, validation_warnings, enrichment_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func scanClaim(row rowScanner) (*model.Claim, error) {
	var (
		claim            model.Claim
		killmailID       sql.NullInt64
		lossTime         sql.NullTime
		processedAt      sql.NullTime
		fleetID          sql.NullString
		paymentJournalID sql.NullInt64
		paidAt           sql.NullTime
		sourceMailID     sql.NullInt64
		warnings         []byte
	)
	err := row.Scan(
		&claim.ID, &claim.CharacterID, &claim.CharacterName, &killmailID, &claim.KillmailHash,
		&claim.ShipTypeID, &claim.ShipTypeName, &claim.ShipGroup, &claim.SolarSystemID, &lossTime,
		&claim.IsPolarized, &claim.KillmailValue, &claim.BasePayoutAmount, &claim.FinalPayoutAmount,
		&claim.Status, &claim.ProcessedBy, &processedAt, &claim.DenialReason, &claim.AdminNotes,
		&claim.AutoDecided, &fleetID, &paymentJournalID, &claim.PaymentAmount, &paidAt,
		&sourceMailID, &claim.ClaimantNotes, &warnings, &claim.EnrichmentError,
		&claim.CreatedAt, &claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	claim.KillmailID = int64Ptr(killmailID)
	claim.LossTime = lossTime.Time
	claim.ProcessedAt = timePtr(processedAt)
	claim.FleetID = fleetID.String
	claim.PaymentJournalID = int64Ptr(paymentJournalID)
	claim.PaidAt = timePtr(paidAt)
	claim.SourceMailID = int64Ptr(sourceMailID)
	claim.ValidationWarnings = []string{}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &claim.ValidationWarnings); err != nil {
			return nil, err
		}
	}
	return &claim, nil
}

func (d Datasource) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	ctx, span := otel.Tracer("Claims").Start(ctx, "Fetching claim from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM srp.claims WHERE id = $1`, id)
	claim, err := scanClaim(row)
	if err != nil {
		span.RecordError(err)
		return nil, mapError(err, "claim")
	}
	return claim, nil
}

func (d Datasource) ListClaims(ctx context.Context, status model.ClaimStatus, limit, offset int) ([]model.Claim, error) {
	ctx, span := otel.Tracer("Claims").Start(ctx, "Listing claims")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+claimColumns+`
		FROM srp.claims
		WHERE ($1 = '' OR status = $1)
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve claims", err)
	}
	defer rows.Close()

	claims := []model.Claim{}
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan claim data", err)
		}
		claims = append(claims, *claim)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over claims", err)
	}
	return claims, nil
}

func (d Datasource) ClaimExistsForKillmail(ctx context.Context, killmailID int64) (bool, error) {
	ctx, span := otel.Tracer("Claims").Start(ctx, "Checking killmail for live claim")
	defer span.End()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM srp.claims WHERE killmail_id = $1 AND status <> 'cancelled')
	`, killmailID).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check killmail", err)
	}
	return exists, nil
}

// insertClaim writes a new claim and fills in the generated id and timestamps.
func insertClaim(ctx context.Context, tx *sql.Tx, claim *model.Claim) error {
	warnings, err := json.Marshal(nonNilWarnings(claim.ValidationWarnings))
	if err != nil {
		return err
	}
	return tx.QueryRowContext(ctx, `
		INSERT INTO srp.claims (
			character_id, character_name, killmail_id, killmail_hash, ship_type_id, ship_type_name,
			ship_group, solar_system_id, loss_time, is_polarized, killmail_value, base_payout_amount,
			final_payout_amount, status, processed_by, processed_at, denial_reason, admin_notes,
			auto_decided, fleet_id, payment_journal_id, payment_amount, paid_at, source_mail_id,
			claimant_notes, validation_warnings, enrichment_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING id, created_at, updated_at
	`,
		claim.CharacterID, claim.CharacterName, nullInt64(claim.KillmailID), claim.KillmailHash,
		claim.ShipTypeID, claim.ShipTypeName, claim.ShipGroup, claim.SolarSystemID, nullTime(claim.LossTime),
		claim.IsPolarized, claim.KillmailValue, claim.BasePayoutAmount, claim.FinalPayoutAmount,
		claim.Status, claim.ProcessedBy, claim.ProcessedAt, claim.DenialReason, claim.AdminNotes,
		claim.AutoDecided, nullString(claim.FleetID), nullInt64(claim.PaymentJournalID), claim.PaymentAmount,
		claim.PaidAt, nullInt64(claim.SourceMailID), claim.ClaimantNotes, warnings, claim.EnrichmentError,
	).Scan(&claim.ID, &claim.CreatedAt, &claim.UpdatedAt)
}

// ApplyClaimDecision stores the decision fields of claim only if the row is still in prev.
// The optional notification is enqueued in the same transaction.
func (d Datasource) ApplyClaimDecision(ctx context.Context, claim *model.Claim, prev model.ClaimStatus, notification *model.NotificationQueueEntry) error {
	ctx, span := otel.Tracer("Claims").Start(ctx, "Applying claim decision")
	defer span.End()

	warnings, err := json.Marshal(nonNilWarnings(claim.ValidationWarnings))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal warnings", err)
	}

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE srp.claims
			SET status = $2, final_payout_amount = $3, processed_by = $4, processed_at = $5,
				denial_reason = $6, admin_notes = $7, auto_decided = $8, validation_warnings = $9,
				updated_at = NOW()
			WHERE id = $1 AND status = $10 AND status <> 'paid'
		`, claim.ID, claim.Status, claim.FinalPayoutAmount, claim.ProcessedBy, claim.ProcessedAt,
			claim.DenialReason, claim.AdminNotes, claim.AutoDecided, warnings, prev)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update claim", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
		}
		if rows == 0 {
			return ErrStaleClaim
		}
		if notification == nil {
			return nil
		}
		return insertNotification(ctx, tx, notification)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// MarkClaimPaid links a journal entry to an approved claim and moves it to paid. Payment
// warnings are appended to the ones recorded at intake. It returns
// false without error when the claim is no longer payable or the entry already paid another claim.
func (d Datasource) MarkClaimPaid(ctx context.Context, claimID int64, entry model.WalletJournalEntry, warnings []string, notification *model.NotificationQueueEntry) (bool, error) {
	ctx, span := otel.Tracer("Claims").Start(ctx, "Marking claim paid")
	defer span.End()

	warningsJSON, err := json.Marshal(nonNilWarnings(warnings))
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal warnings", err)
	}

	errNotPayable := errors.New("claim not payable")
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE srp.claims
			SET status = 'paid', payment_journal_id = $2, payment_amount = $3, paid_at = $4,
				validation_warnings = validation_warnings || $5::jsonb, updated_at = NOW()
			WHERE id = $1 AND status = 'approved' AND payment_journal_id IS NULL
		`, claimID, entry.ID, entry.Amount.Abs(), entry.Date, warningsJSON)
		if err != nil {
			if isUniqueViolation(err) {
				return errNotPayable
			}
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark claim paid", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
		}
		if rows == 0 {
			return errNotPayable
		}
		if notification == nil {
			return nil
		}
		return insertNotification(ctx, tx, notification)
	})
	if errors.Is(err, errNotPayable) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return true, nil
}

func nonNilWarnings(warnings []string) []string {
	if warnings == nil {
		return []string{}
	}
	return warnings
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
