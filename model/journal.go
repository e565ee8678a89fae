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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletJournalEntry is an append-only ledger row from the corporation wallet feed.
// ID is the external transaction id and is used for deduplication.
type WalletJournalEntry struct {
	ID             int64           `json:"id"`
	Date           time.Time       `json:"date"`
	RefType        string          `json:"ref_type"`
	Amount         decimal.Decimal `json:"amount"`
	Balance        decimal.Decimal `json:"balance"`
	FirstPartyID   int64           `json:"first_party_id"`
	SecondPartyID  int64           `json:"second_party_id"`
	Reason         string          `json:"reason"`
	Description    string          `json:"description"`
	MatchedClaimID *int64          `json:"matched_claim_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsOutgoing reports whether ISK left the wallet in this entry.
func (w WalletJournalEntry) IsOutgoing() bool {
	return w.Amount.IsNegative()
}

// ReconcileResult summarises one wallet reconciliation pass.
type ReconcileResult struct {
	JournalSaved       int `json:"journal_saved"`
	PaymentsReconciled int `json:"payments_reconciled"`
	Unmatched          int `json:"unmatched"`
}
