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

	"github.com/jerry-enebeli/srp/database"
	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func (s *SRP) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	return s.datasource.GetClaim(ctx, id)
}

func (s *SRP) ListClaims(ctx context.Context, status model.ClaimStatus, limit, offset int) ([]model.Claim, error) {
	return s.datasource.ListClaims(ctx, status, limit, offset)
}

// DecideClaim applies an operator decision to a claim and queues the claimant notification
// in the same transaction.
func (s *SRP) DecideClaim(ctx context.Context, id int64, action ManualAction, processor, reason string, payout decimal.NullDecimal) (*model.Claim, error) {
	claim, err := s.datasource.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}

	decision, err := ManualDecision(claim, action, reason, payout)
	if errors.Is(err, ErrInvalidTransition) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition, err.Error(), nil)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
	}

	prev := claim.Status
	now := s.now()
	ApplyDecision(claim, decision, processor, now)

	var entry *model.NotificationQueueEntry
	if decision.Notify != "" {
		entry = model.NewNotification(decision.Notify, claim, decision.Reason, now)
	}

	err = s.datasource.ApplyClaimDecision(ctx, claim, prev, entry)
	if errors.Is(err, database.ErrStaleClaim) {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "claim was changed by someone else, reload and retry", nil)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.Decision(string(claim.Status), false)
	logrus.WithFields(logrus.Fields{
		"claim_id":  claim.ID,
		"from":      prev,
		"to":        claim.Status,
		"processor": processor,
	}).Info("claim decided manually")
	return claim, nil
}

// ReprocessMail forgets that a mail was processed so the next run examines it again.
func (s *SRP) ReprocessMail(ctx context.Context, mailID int64) error {
	return s.datasource.DeleteProcessedMail(ctx, mailID)
}
