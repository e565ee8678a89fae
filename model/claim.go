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
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus is the lifecycle state of an SRP request.
type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimApproved  ClaimStatus = "approved"
	ClaimDenied    ClaimStatus = "denied"
	ClaimPaid      ClaimStatus = "paid"
	ClaimCancelled ClaimStatus = "cancelled"
)

// AutoDecisionMarker is written into admin notes of every claim decided by the pipeline.
// Human decisions never carry it.
const AutoDecisionMarker = "[auto-decision]"

// Claim is a single ship replacement request tied to one killmail.
type Claim struct {
	ID                 int64               `json:"id"`
	CharacterID        int64               `json:"character_id"`
	CharacterName      string              `json:"character_name"`
	KillmailID         *int64              `json:"killmail_id,omitempty"`
	KillmailHash       string              `json:"killmail_hash,omitempty"`
	ShipTypeID         int32               `json:"ship_type_id"`
	ShipTypeName       string              `json:"ship_type_name"`
	ShipGroup          string              `json:"ship_group"`
	SolarSystemID      int32               `json:"solar_system_id"`
	LossTime           time.Time           `json:"loss_time"`
	IsPolarized        bool                `json:"is_polarized"`
	KillmailValue      decimal.Decimal     `json:"killmail_value"`
	BasePayoutAmount   decimal.Decimal     `json:"base_payout_amount"`
	FinalPayoutAmount  decimal.NullDecimal `json:"final_payout_amount"`
	Status             ClaimStatus         `json:"status"`
	ProcessedBy        string              `json:"processed_by,omitempty"`
	ProcessedAt        *time.Time          `json:"processed_at,omitempty"`
	DenialReason       string              `json:"denial_reason,omitempty"`
	AdminNotes         string              `json:"admin_notes,omitempty"`
	AutoDecided        bool                `json:"auto_decided"`
	FleetID            string              `json:"fleet_id,omitempty"`
	PaymentJournalID   *int64              `json:"payment_journal_id,omitempty"`
	PaymentAmount      decimal.NullDecimal `json:"payment_amount"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	SourceMailID       *int64              `json:"source_mail_id,omitempty"`
	ClaimantNotes      string              `json:"claimant_notes,omitempty"`
	ValidationWarnings []string            `json:"validation_warnings"`
	EnrichmentError    string              `json:"enrichment_error,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Reference is the code payers put in the wallet transfer reason to link a payment to this claim.
func (c *Claim) Reference() string {
	return fmt.Sprintf("SRP-%d", c.ID)
}

// IsAutoDecision reports whether the current decision was made by the pipeline.
func (c *Claim) IsAutoDecision() bool {
	return c.AutoDecided || strings.Contains(c.AdminNotes, AutoDecisionMarker)
}

// allowedTransitions holds the forward-only claim lifecycle.
var allowedTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimPending:  {ClaimApproved, ClaimDenied, ClaimCancelled},
	ClaimApproved: {ClaimPaid, ClaimCancelled},
	ClaimDenied:   {ClaimCancelled},
}

// CanTransition reports whether a claim may move from one status to another.
// Nothing returns to pending, and paid/cancelled are terminal.
func CanTransition(from, to ClaimStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanOverride reports whether a human may replace the current decision of the claim
// with the target status. Besides the normal lifecycle, an unpaid automatic approval or
// denial may be flipped by an operator.
func (c *Claim) CanOverride(to ClaimStatus) bool {
	if CanTransition(c.Status, to) {
		return true
	}
	if !c.IsAutoDecision() {
		return false
	}
	switch {
	case c.Status == ClaimApproved && to == ClaimDenied:
		return true
	case c.Status == ClaimDenied && to == ClaimApproved:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimPaid || s == ClaimCancelled
}
