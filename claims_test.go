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
	"testing"

	"github.com/jerry-enebeli/srp/database"
	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingClaim(id int64) *model.Claim {
	return &model.Claim{
		ID:               id,
		CharacterID:      claimantID,
		ShipTypeName:     "Guardian",
		Status:           model.ClaimPending,
		BasePayoutAmount: decimal.NewFromInt(250_000_000),
	}
}

func TestDecideClaim_Approve(t *testing.T) {
	ts := newTestSRP(t)
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(pendingClaim(42), nil)
	ts.ds.On("ApplyClaimDecision", mock.Anything, mock.MatchedBy(func(c *model.Claim) bool {
		return c.Status == model.ClaimApproved && c.ProcessedBy == "fc-alice" && !c.AutoDecided
	}), model.ClaimPending, mock.MatchedBy(func(n *model.NotificationQueueEntry) bool {
		return n.Kind == model.NotificationApproved && n.Payload.ClaimID == 42 &&
			n.Payload.Amount.Equal(decimal.NewFromInt(200_000_000))
	})).Return(nil).Once()

	claim, err := ts.DecideClaim(context.Background(), 42, ActionApprove, "fc-alice", "", decimal.NewNullDecimal(decimal.NewFromInt(200_000_000)))
	require.NoError(t, err)
	assert.True(t, claim.FinalPayoutAmount.Decimal.Equal(decimal.NewFromInt(200_000_000)))
	ts.ds.AssertExpectations(t)
}

func TestDecideClaim_CancelHasNoNotification(t *testing.T) {
	ts := newTestSRP(t)
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(pendingClaim(42), nil)
	ts.ds.On("ApplyClaimDecision", mock.Anything, mock.Anything, model.ClaimPending, (*model.NotificationQueueEntry)(nil)).
		Return(nil).Once()

	claim, err := ts.DecideClaim(context.Background(), 42, ActionCancel, "fc-alice", "duplicate of SRP-41", decimal.NullDecimal{})
	require.NoError(t, err)
	assert.Equal(t, model.ClaimCancelled, claim.Status)
	ts.ds.AssertExpectations(t)
}

func TestDecideClaim_InvalidTransition(t *testing.T) {
	ts := newTestSRP(t)
	paid := pendingClaim(42)
	paid.Status = model.ClaimPaid
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(paid, nil)

	_, err := ts.DecideClaim(context.Background(), 42, ActionDeny, "fc-alice", "late", decimal.NullDecimal{})
	assert.Equal(t, apierror.ErrInvalidTransition, apierror.CodeOf(err))
	ts.ds.AssertNotCalled(t, "ApplyClaimDecision", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDecideClaim_MissingDenialReason(t *testing.T) {
	ts := newTestSRP(t)
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(pendingClaim(42), nil)

	_, err := ts.DecideClaim(context.Background(), 42, ActionDeny, "fc-alice", "", decimal.NullDecimal{})
	assert.Equal(t, apierror.ErrInvalidInput, apierror.CodeOf(err))
}

func TestDecideClaim_ApproveWithoutPayoutRejected(t *testing.T) {
	ts := newTestSRP(t)
	claim := pendingClaim(42)
	claim.BasePayoutAmount = decimal.Zero
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(claim, nil)

	_, err := ts.DecideClaim(context.Background(), 42, ActionApprove, "fc-alice", "", decimal.NullDecimal{})
	assert.Equal(t, apierror.ErrInvalidInput, apierror.CodeOf(err))
	ts.ds.AssertNotCalled(t, "ApplyClaimDecision", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDecideClaim_Stale(t *testing.T) {
	ts := newTestSRP(t)
	ts.ds.On("GetClaim", mock.Anything, int64(42)).Return(pendingClaim(42), nil)
	ts.ds.On("ApplyClaimDecision", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(database.ErrStaleClaim)

	_, err := ts.DecideClaim(context.Background(), 42, ActionDeny, "fc-alice", "no fleet", decimal.NullDecimal{})
	assert.Equal(t, apierror.ErrConflict, apierror.CodeOf(err))
}

func TestDecideClaim_NotFound(t *testing.T) {
	ts := newTestSRP(t)
	ts.ds.On("GetClaim", mock.Anything, int64(9)).Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "claim not found", nil))

	_, err := ts.DecideClaim(context.Background(), 9, ActionApprove, "fc-alice", "", decimal.NullDecimal{})
	assert.True(t, apierror.IsNotFound(err))
}

func TestReprocessMail(t *testing.T) {
	ts := newTestSRP(t)
	ts.ds.On("DeleteProcessedMail", mock.Anything, int64(10)).Return(nil).Once()
	require.NoError(t, ts.ReprocessMail(context.Background(), 10))
	ts.ds.AssertExpectations(t)
}
