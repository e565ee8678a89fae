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
	"time"

	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"go.opentelemetry.io/otel"
)

// GetJournalCursor returns the highest journal id stored so far, or 0 when empty.
func (d Datasource) GetJournalCursor(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("Journal").Start(ctx, "Fetching journal cursor")
	defer span.End()

	var cursor int64
	err := d.Conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM srp.wallet_journal`).Scan(&cursor)
	if err != nil {
		span.RecordError(err)
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read journal cursor", err)
	}
	return cursor, nil
}

// SaveJournalEntries inserts entries that are not stored yet and returns how many were new.
func (d Datasource) SaveJournalEntries(ctx context.Context, entries []model.WalletJournalEntry) (int, error) {
	ctx, span := otel.Tracer("Journal").Start(ctx, "Saving journal entries")
	defer span.End()

	if len(entries) == 0 {
		return 0, nil
	}

	saved := 0
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO srp.wallet_journal (
				id, date, ref_type, amount, balance, first_party_id, second_party_id, reason, description
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to prepare journal insert", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			result, err := stmt.ExecContext(ctx, e.ID, e.Date, e.RefType, e.Amount, e.Balance,
				e.FirstPartyID, e.SecondPartyID, e.Reason, e.Description)
			if err != nil {
				return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save journal entry", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
			}
			saved += int(n)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return saved, nil
}

// GetUnmatchedJournalEntries returns outgoing entries dated at or after since that no claim
// references as its payment, ordered by id.
func (d Datasource) GetUnmatchedJournalEntries(ctx context.Context, since time.Time) ([]model.WalletJournalEntry, error) {
	ctx, span := otel.Tracer("Journal").Start(ctx, "Fetching unmatched journal entries")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT j.id, j.date, j.ref_type, j.amount, j.balance, j.first_party_id, j.second_party_id,
			j.reason, j.description, j.created_at
		FROM srp.wallet_journal j
		LEFT JOIN srp.claims c ON c.payment_journal_id = j.id
		WHERE c.id IS NULL AND j.amount < 0 AND j.date >= $1
		ORDER BY j.id
	`, since)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve journal entries", err)
	}
	defer rows.Close()

	entries := []model.WalletJournalEntry{}
	for rows.Next() {
		var e model.WalletJournalEntry
		err = rows.Scan(&e.ID, &e.Date, &e.RefType, &e.Amount, &e.Balance, &e.FirstPartyID,
			&e.SecondPartyID, &e.Reason, &e.Description, &e.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan journal entry", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over journal entries", err)
	}
	return entries, nil
}
