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

type NotificationKind string

const (
	NotificationApproved NotificationKind = "srp_approved"
	NotificationDenied   NotificationKind = "srp_denied"
	NotificationPaid     NotificationKind = "srp_paid"
)

// NotificationPayload carries what is needed to render the notification mail body.
type NotificationPayload struct {
	ClaimID      int64           `json:"claim_id"`
	ShipTypeName string          `json:"ship_type_name"`
	KillmailID   int64           `json:"killmail_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason,omitempty"`
}

// NotificationQueueEntry is one outbound mail waiting for delivery. Entries are only
// removed once delivered or cleared by an operator.
type NotificationQueueEntry struct {
	ID          string              `json:"id"`
	Kind        NotificationKind    `json:"kind"`
	RecipientID int64               `json:"recipient_id"`
	Payload     NotificationPayload `json:"payload"`
	RetryAfter  time.Time           `json:"retry_after"`
	Attempts    int                 `json:"attempts"`
	LastError   string              `json:"last_error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NewNotification builds a queue entry that is due immediately.
func NewNotification(kind NotificationKind, claim *Claim, reason string, now time.Time) *NotificationQueueEntry {
	payload := NotificationPayload{
		ClaimID:      claim.ID,
		ShipTypeName: claim.ShipTypeName,
		Reason:       reason,
	}
	if claim.KillmailID != nil {
		payload.KillmailID = *claim.KillmailID
	}
	switch {
	case kind == NotificationPaid && claim.PaymentAmount.Valid:
		payload.Amount = claim.PaymentAmount.Decimal
	case claim.FinalPayoutAmount.Valid:
		payload.Amount = claim.FinalPayoutAmount.Decimal
	}
	return &NotificationQueueEntry{
		ID:          GenerateUUIDWithSuffix("ntf"),
		Kind:        kind,
		RecipientID: claim.CharacterID,
		Payload:     payload,
		RetryAfter:  now,
		CreatedAt:   now,
	}
}
