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
	"testing"
	"time"

	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func journalEntry(id int64, amount int64, reason string) model.WalletJournalEntry {
	return model.WalletJournalEntry{
		ID:            id,
		Date:          time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC),
		RefType:       "corporation_account_withdrawal",
		Amount:        decimal.NewFromInt(amount),
		FirstPartyID:  98000001,
		SecondPartyID: 2112,
		Reason:        reason,
	}
}

func approvedClaim(id int64, payout int64) *model.Claim {
	return &model.Claim{
		ID:                id,
		CharacterID:       2112,
		ShipTypeName:      "Guardian",
		Status:            model.ClaimApproved,
		FinalPayoutAmount: decimal.NewNullDecimal(decimal.NewFromInt(payout)),
	}
}

func TestParseClaimReference(t *testing.T) {
	cases := map[string]int64{
		"SRP-42":           42,
		"srp #42":          42,
		"Srp: 42 guardian": 42,
		"srp42":            42,
		"42":               42,
		" #42 ":            42,
	}
	for reason, want := range cases {
		got, ok := parseClaimReference(reason)
		assert.True(t, ok, reason)
		assert.Equal(t, want, got, reason)
	}

	for _, reason := range []string{"", "fuel", "payout for 42 ships", "SRP-0"} {
		_, ok := parseClaimReference(reason)
		assert.False(t, ok, reason)
	}
}

func TestSyncJournal_StopsAtCursor(t *testing.T) {
	ts := newTestSRP(t)
	ts.ds.On("GetJournalCursor", mock.Anything).Return(int64(500), nil)
	ts.api.On("GetWalletJournal", mock.Anything, "access-token", int64(98000001), 1, 1).
		Return([]model.WalletJournalEntry{journalEntry(503, -10, ""), journalEntry(502, -10, "")}, 3, nil).Once()
	ts.api.On("GetWalletJournal", mock.Anything, "access-token", int64(98000001), 1, 2).
		Return([]model.WalletJournalEntry{journalEntry(501, -10, ""), journalEntry(500, -10, "")}, 3, nil).Once()
	ts.ds.On("SaveJournalEntries", mock.Anything, mock.MatchedBy(func(entries []model.WalletJournalEntry) bool {
		return len(entries) == 3 && entries[2].ID == 501
	})).Return(3, nil).Once()

	saved, err := ts.syncJournal(context.Background(), testToken())
	require.NoError(t, err)
	assert.Equal(t, 3, saved)
	ts.api.AssertNotCalled(t, "GetWalletJournal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 3)
}

func TestReconcileWallet_MarksClaimPaid(t *testing.T) {
	ts := newTestSRP(t)
	entry := journalEntry(501, -250_000_000, "SRP-42")

	ts.ds.On("GetJournalCursor", mock.Anything).Return(int64(500), nil)
	ts.api.On("GetWalletJournal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 1).
		Return([]model.WalletJournalEntry{entry}, 1, nil).Once()
	ts.ds.On("SaveJournalEntries", mock.Anything, []model.WalletJournalEntry{entry}).Return(1, nil).Once()
	ts.ds.On("GetUnmatchedJournalEntries", mock.Anything, ts.clock.AddDate(0, 0, -30)).
		Return([]model.WalletJournalEntry{entry}, nil).Once()
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(approvedClaim(42, 250_000_000), nil).Once()
	ts.ds.On("MarkClaimPaid", mock.Anything, int64(42), entry, []string(nil), mock.MatchedBy(func(n *model.NotificationQueueEntry) bool {
		return n.Kind == model.NotificationPaid && n.Payload.Amount.Equal(decimal.NewFromInt(250_000_000)) && n.RecipientID == 2112
	})).Return(true, nil).Once()

	result, err := ts.ReconcileWallet(context.Background(), testToken())
	require.NoError(t, err)
	assert.Equal(t, model.ReconcileResult{JournalSaved: 1, PaymentsReconciled: 1}, result)
	ts.ds.AssertExpectations(t)
}

func TestReconcileWallet_AmountMismatchWarns(t *testing.T) {
	ts := newTestSRP(t)
	entry := journalEntry(501, -200_000_000, "srp #42")
	entry.SecondPartyID = 3333

	ts.ds.On("GetJournalCursor", mock.Anything).Return(int64(501), nil)
	ts.api.On("GetWalletJournal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 1).
		Return([]model.WalletJournalEntry{entry}, 1, nil).Once()
	ts.ds.On("GetUnmatchedJournalEntries", mock.Anything, mock.Anything).Return([]model.WalletJournalEntry{entry}, nil).Once()
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(approvedClaim(42, 250_000_000), nil).Once()
	ts.ds.On("MarkClaimPaid", mock.Anything, int64(42), entry, mock.MatchedBy(func(w []string) bool {
		return len(w) == 2
	}), mock.Anything).Return(true, nil).Once()

	result, err := ts.ReconcileWallet(context.Background(), testToken())
	require.NoError(t, err)
	assert.Equal(t, 1, result.PaymentsReconciled)
	ts.ds.AssertNotCalled(t, "SaveJournalEntries", mock.Anything, mock.Anything)
}

func TestReconcileWallet_NotApprovedStaysUnmatched(t *testing.T) {
	ts := newTestSRP(t)
	pending := journalEntry(501, -100, "SRP-7")
	unknown := journalEntry(502, -100, "SRP-8")
	noRef := journalEntry(503, -100, "fuel blocks")

	ts.ds.On("GetJournalCursor", mock.Anything).Return(int64(503), nil)
	ts.api.On("GetWalletJournal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 1).
		Return([]model.WalletJournalEntry{}, 1, nil).Once()
	ts.ds.On("GetUnmatchedJournalEntries", mock.Anything, mock.Anything).
		Return([]model.WalletJournalEntry{pending, unknown, noRef}, nil).Once()
	ts.ds.On("GetClaim", mock.Anything, int64(7)).Return(&model.Claim{ID: 7, Status: model.ClaimPending}, nil).Once()
	ts.ds.On("GetClaim", mock.Anything, int64(8)).Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "claim not found", nil)).Once()

	result, err := ts.ReconcileWallet(context.Background(), testToken())
	require.NoError(t, err)
	assert.Equal(t, model.ReconcileResult{Unmatched: 3}, result)
	ts.ds.AssertNotCalled(t, "MarkClaimPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileWallet_AlreadyPaidByOtherEntry(t *testing.T) {
	ts := newTestSRP(t)
	entry := journalEntry(501, -100, "SRP-42")

	ts.ds.On("GetJournalCursor", mock.Anything).Return(int64(501), nil)
	ts.api.On("GetWalletJournal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 1).
		Return([]model.WalletJournalEntry{}, 1, nil).Once()
	ts.ds.On("GetUnmatchedJournalEntries", mock.Anything, mock.Anything).Return([]model.WalletJournalEntry{entry}, nil).Once()
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(approvedClaim(42, 100), nil).Once()
	ts.ds.On("MarkClaimPaid", mock.Anything, int64(42), entry, mock.Anything, mock.Anything).Return(false, nil).Once()

	result, err := ts.ReconcileWallet(context.Background(), testToken())
	require.NoError(t, err)
	assert.Equal(t, 0, result.PaymentsReconciled)
	assert.Equal(t, 1, result.Unmatched)
}

func TestReconcileWallet_JournalFetchFails(t *testing.T) {
	ts := newTestSRP(t)
	ts.ds.On("GetJournalCursor", mock.Anything).Return(int64(0), nil)
	ts.api.On("GetWalletJournal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 1).
		Return(nil, 0, errors.New("forbidden")).Once()

	_, err := ts.ReconcileWallet(context.Background(), testToken())
	assert.EqualError(t, err, "forbidden")
	ts.ds.AssertNotCalled(t, "GetUnmatchedJournalEntries", mock.Anything, mock.Anything)
}

func TestReconcileWallet_EntryErrorsJoined(t *testing.T) {
	ts := newTestSRP(t)
	entry := journalEntry(501, -100, "SRP-42")

	ts.ds.On("GetJournalCursor", mock.Anything).Return(int64(501), nil)
	ts.api.On("GetWalletJournal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 1).
		Return([]model.WalletJournalEntry{}, 1, nil).Once()
	ts.ds.On("GetUnmatchedJournalEntries", mock.Anything, mock.Anything).Return([]model.WalletJournalEntry{entry}, nil).Once()
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(approvedClaim(42, 100), nil).Once()
	ts.ds.On("MarkClaimPaid", mock.Anything, int64(42), entry, mock.Anything, mock.Anything).Return(false, errors.New("deadlock")).Once()

	_, err := ts.ReconcileWallet(context.Background(), testToken())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal entry 501: deadlock")
}

func TestReconcileWallet_ClaimLookupFailureIsReported(t *testing.T) {
	ts := newTestSRP(t)
	entry := journalEntry(501, -100, "SRP-42")

	ts.ds.On("GetJournalCursor", mock.Anything).Return(int64(501), nil)
	ts.api.On("GetWalletJournal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 1).
		Return([]model.WalletJournalEntry{}, 1, nil).Once()
	ts.ds.On("GetUnmatchedJournalEntries", mock.Anything, mock.Anything).Return([]model.WalletJournalEntry{entry}, nil).Once()
	ts.ds.On("GetClaim", mock.Anything, int64(42)).
		Return(nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get claim", nil)).Once()

	result, err := ts.ReconcileWallet(context.Background(), testToken())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal entry 501: loading claim 42")
	assert.Equal(t, 0, result.Unmatched)
	ts.ds.AssertNotCalled(t, "MarkClaimPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
