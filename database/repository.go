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
	"time"

	"github.com/jerry-enebeli/srp/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	claims        // Interface for claim-related operations
	mails         // Interface for processed mail bookkeeping
	shipTypes     // Interface for ship type reference data
	fleets        // Interface for the fleet schedule
	notifications // Interface for the outbound notification queue
	journal       // Interface for wallet journal ingestion
	tokens        // Interface for the service token store
}

// claims defines methods for handling SRP claims.
type claims interface {
	GetClaim(ctx context.Context, id int64) (*model.Claim, error)                                                                                                  // Retrieves a claim by ID
	ListClaims(ctx context.Context, status model.ClaimStatus, limit, offset int) ([]model.Claim, error)                                                            // Lists claims, optionally filtered by status
	ClaimExistsForKillmail(ctx context.Context, killmailID int64) (bool, error)                                                                                    // Checks for a live claim on a killmail
	ApplyClaimDecision(ctx context.Context, claim *model.Claim, prev model.ClaimStatus, notification *model.NotificationQueueEntry) error                          // Persists a decision if the claim is still in prev
	MarkClaimPaid(ctx context.Context, claimID int64, entry model.WalletJournalEntry, warnings []string, notification *model.NotificationQueueEntry) (bool, error) // Links a payment to an approved claim, appending warnings
}

// mails defines methods for processed mail bookkeeping.
type mails interface {
	ProcessedMailExists(ctx context.Context, mailID int64) (bool, error)              // Checks whether a mail was already examined
	GetProcessedMailIDs(ctx context.Context, mailIDs []int64) (map[int64]bool, error) // Returns the subset of ids already examined
	RecordMailOutcome(ctx context.Context, outcome *model.MailOutcome) error          // Persists claim, processed mail and notification atomically
	DeleteProcessedMail(ctx context.Context, mailID int64) error                      // Forces a mail to be reprocessed
}

// shipTypes defines read access to ship type reference data.
type shipTypes interface {
	GetShipTypeConfigs(ctx context.Context) ([]model.ShipTypeConfig, error)
}

// fleets defines read access to the fleet schedule.
type fleets interface {
	GetFleetsBetween(ctx context.Context, from, to time.Time) ([]model.Fleet, error)
}

// notifications defines methods for the outbound notification queue.
type notifications interface {
	EnqueueNotification(ctx context.Context, entry *model.NotificationQueueEntry) error                               // Persists a new queue entry
	GetDueNotifications(ctx context.Context, now time.Time, limit int) ([]model.NotificationQueueEntry, error)        // Entries with retry_after <= now, oldest first
	DeleteNotification(ctx context.Context, id string) error                                                          // Removes a delivered or cleared entry
	UpdateNotificationRetry(ctx context.Context, id string, retryAfter time.Time, attempts int, lastErr string) error // Reschedules a failed entry
	ListNotifications(ctx context.Context, limit, offset int) ([]model.NotificationQueueEntry, error)                 // Lists queued entries for operators
}

// journal defines methods for wallet journal ingestion.
type journal interface {
	GetJournalCursor(ctx context.Context) (int64, error)                                                 // Highest stored journal id
	SaveJournalEntries(ctx context.Context, entries []model.WalletJournalEntry) (int, error)             // Inserts new entries, returns how many were new
	GetUnmatchedJournalEntries(ctx context.Context, since time.Time) ([]model.WalletJournalEntry, error) // Outgoing entries not yet linked to a claim
}

// tokens defines the persisted service token store.
type tokens interface {
	GetServiceToken(ctx context.Context, characterID int64) (*model.ServiceToken, error)
	SaveServiceToken(ctx context.Context, token *model.ServiceToken) error
}
