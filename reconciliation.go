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

package srp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// maxJournalPages bounds a single journal sync.
const maxJournalPages = 100

var (
	claimReferencePattern = regexp.MustCompile(`(?i)\bsrp\s*[-#:]?\s*(\d+)\b`)
	bareReferencePattern  = regexp.MustCompile(`^\s*#?(\d+)\s*$`)
)

// ReconcileWallet syncs the corporation wallet journal and marks approved claims as paid
// when an outgoing transfer references them.
func (s *SRP) ReconcileWallet(ctx context.Context, token *model.ServiceToken) (model.ReconcileResult, error) {
	ctx, span := otel.Tracer("Reconciler").Start(ctx, "Reconciling wallet")
	defer span.End()

	var result model.ReconcileResult

	saved, err := s.syncJournal(ctx, token)
	result.JournalSaved = saved
	if err != nil {
		return result, err
	}

	entries, err := s.datasource.GetUnmatchedJournalEntries(ctx, s.journalSince())
	if err != nil {
		return result, fmt.Errorf("loading unmatched journal entries: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		paid, err := s.reconcileEntry(ctx, entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("journal entry %d: %w", entry.ID, err))
			continue
		}
		if paid {
			result.PaymentsReconciled++
		} else {
			result.Unmatched++
		}
	}

	span.SetAttributes(
		attribute.Int("journal.saved", result.JournalSaved),
		attribute.Int("payments.reconciled", result.PaymentsReconciled),
	)
	s.metrics.PaymentsReconciled(result.PaymentsReconciled)
	return result, errors.Join(errs...)
}

// syncJournal pulls journal pages newest first until it reaches the highest stored entry.
func (s *SRP) syncJournal(ctx context.Context, token *model.ServiceToken) (int, error) {
	cursor, err := s.datasource.GetJournalCursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading journal cursor: %w", err)
	}

	corporationID := s.config.Esi.CorporationID
	if corporationID == 0 {
		corporationID = token.CorporationID
	}

	var fresh []model.WalletJournalEntry
	for page := 1; page <= maxJournalPages; page++ {
		entries, pages, err := s.esi.GetWalletJournal(ctx, token.AccessToken, corporationID, s.config.Esi.WalletDivision, page)
		if err != nil {
			s.noteRateLimit("esi", err)
			return 0, err
		}

		reachedCursor := false
		for _, e := range entries {
			if e.ID <= cursor {
				reachedCursor = true
				continue
			}
			fresh = append(fresh, e)
		}
		if reachedCursor || page >= pages || len(entries) == 0 {
			break
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	return s.datasource.SaveJournalEntries(ctx, fresh)
}

// reconcileEntry tries to pay the claim referenced by a journal entry. It reports false
// when the entry does not pay any claim.
func (s *SRP) reconcileEntry(ctx context.Context, entry model.WalletJournalEntry) (bool, error) {
	claimID, ok := parseClaimReference(entry.Reason)
	if !ok {
		return false, nil
	}
	logger := logrus.WithFields(logrus.Fields{"journal_id": entry.ID, "claim_id": claimID})

	claim, err := s.datasource.GetClaim(ctx, claimID)
	if apierror.IsNotFound(err) {
		logger.Debug("journal entry references unknown claim")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading claim %d: %w", claimID, err)
	}
	if claim.Status != model.ClaimApproved {
		logger.WithField("status", claim.Status).Info("journal entry references a claim that is not approved")
		return false, nil
	}

	var warnings []string
	amount := entry.Amount.Abs()
	if claim.FinalPayoutAmount.Valid && !claim.FinalPayoutAmount.Decimal.Equal(amount) {
		warnings = model.AppendWarning(warnings, fmt.Sprintf("paid %s ISK but approved payout is %s ISK",
			formatISK(amount), formatISK(claim.FinalPayoutAmount.Decimal)))
	}
	if entry.SecondPartyID != 0 && entry.SecondPartyID != claim.CharacterID {
		warnings = model.AppendWarning(warnings, fmt.Sprintf("payment went to %d, not the claimant", entry.SecondPartyID))
	}

	paid := *claim
	paid.PaymentAmount.Decimal = amount
	paid.PaymentAmount.Valid = true
	notification := model.NewNotification(model.NotificationPaid, &paid, "", s.now())

	ok, err = s.datasource.MarkClaimPaid(ctx, claim.ID, entry, warnings, notification)
	if err != nil {
		return false, err
	}
	if ok {
		logger.WithField("amount", amount.String()).Info("claim marked as paid")
	}
	return ok, nil
}

// parseClaimReference finds a claim id in a wallet transfer reason. "SRP-12", "srp #12"
// and a bare "12" are accepted.
func parseClaimReference(reason string) (int64, bool) {
	m := claimReferencePattern.FindStringSubmatch(reason)
	if m == nil {
		m = bareReferencePattern.FindStringSubmatch(reason)
	}
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// journalSince is the oldest journal date a reconciliation pass looks at.
func (s *SRP) journalSince() time.Time {
	return s.now().AddDate(0, 0, -s.config.Pipeline.ReconcileLookbackDays)
}
