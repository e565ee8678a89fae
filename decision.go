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
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jerry-enebeli/srp/model"
	"github.com/shopspring/decimal"
)

const (
	ReasonShipNotEligible = "ship type not eligible"
	ReasonNoFleetActivity = "no matching fleet activity"

	// PipelineProcessor is recorded as the processor of automatic decisions.
	PipelineProcessor = "srp-pipeline"
)

// ErrInvalidTransition is returned when a manual decision is not allowed from the claim's status.
var ErrInvalidTransition = errors.New("invalid claim status transition")

// ErrPayoutRequired is returned when approving a claim without a configured payout and
// without an explicit amount.
var ErrPayoutRequired = errors.New("a payout amount is required, the ship type has no configured payout")

// DecisionPolicy holds the configurable thresholds of the eligibility rules.
type DecisionPolicy struct {
	ProximityWindow      time.Duration
	DefaultFleetDuration time.Duration
}

// DecisionInput is everything the eligibility rules look at.
type DecisionInput struct {
	ShipTypeID   int32
	ShipTypeName string
	LossTime     time.Time
	Polarized    bool
	Config       *model.ShipTypeConfig
	Fleets       []model.Fleet
	Policy       DecisionPolicy
}

// Decision is the outcome of the eligibility rules or of a manual action.
type Decision struct {
	Status     model.ClaimStatus
	Auto       bool
	BasePayout decimal.Decimal
	Payout     decimal.NullDecimal
	Reason     string
	FleetID    string
	AdminNotes string
	Warnings   []string
	Notify     model.NotificationKind
}

// Decide maps a claim onto a status. It has no side effects, so the same input always
// yields the same decision.
func Decide(in DecisionInput) Decision {
	if in.Config == nil && in.ShipTypeID == 0 {
		return Decision{
			Status:     model.ClaimPending,
			AdminNotes: "manual review: ship type unknown",
			Warnings:   []string{"ship type could not be determined"},
		}
	}

	if in.Config == nil || !in.Config.Active {
		return autoDecision(model.ClaimDenied, ReasonShipNotEligible, decimal.Zero, "")
	}

	base := in.Config.PayoutFor(in.Polarized)

	if in.Config.FCDiscretion {
		return Decision{
			Status:     model.ClaimPending,
			BasePayout: base,
			AdminNotes: "manual review: ship type requires FC discretion",
			Warnings:   []string{},
		}
	}

	if in.LossTime.IsZero() {
		return Decision{
			Status:     model.ClaimPending,
			BasePayout: base,
			AdminNotes: "manual review: loss time unknown",
			Warnings:   []string{"loss time unknown, fleet activity could not be checked"},
		}
	}

	fleet := matchFleet(in.LossTime, in.Fleets, in.Policy)
	if fleet == nil {
		return autoDecision(model.ClaimDenied, ReasonNoFleetActivity, base, "")
	}

	d := autoDecision(model.ClaimApproved, "", base, fleet.ID)
	d.AdminNotes = fmt.Sprintf("%s approved: fleet %s (%s)", model.AutoDecisionMarker, fleet.Name, fleet.ID)
	return d
}

func autoDecision(status model.ClaimStatus, reason string, base decimal.Decimal, fleetID string) Decision {
	d := Decision{
		Status:     status,
		Auto:       true,
		BasePayout: base,
		Reason:     reason,
		FleetID:    fleetID,
		Warnings:   []string{},
	}
	switch status {
	case model.ClaimApproved:
		d.Payout = decimal.NewNullDecimal(base)
		d.Notify = model.NotificationApproved
	case model.ClaimDenied:
		// automatic denials are not mailed to the claimant
		d.AdminNotes = fmt.Sprintf("%s denied: %s", model.AutoDecisionMarker, reason)
	}
	return d
}

// matchFleet returns the non-cancelled fleet whose widened window contains lossTime,
// preferring the one that started closest to the loss.
func matchFleet(lossTime time.Time, fleets []model.Fleet, policy DecisionPolicy) *model.Fleet {
	var candidates []model.Fleet
	for _, f := range fleets {
		if f.Status == model.FleetCancelled {
			continue
		}
		from, to := f.Window(policy.ProximityWindow, policy.DefaultFleetDuration)
		if lossTime.Before(from) || lossTime.After(to) {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return nil
	}

	distance := func(f model.Fleet) time.Duration {
		start := f.ScheduledAt
		if f.StartedAt != nil {
			start = *f.StartedAt
		}
		d := lossTime.Sub(start)
		if d < 0 {
			d = -d
		}
		return d
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := distance(candidates[i]), distance(candidates[j])
		if di != dj {
			return di < dj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &candidates[0]
}

// ManualAction is an operator decision on a claim.
type ManualAction string

const (
	ActionApprove ManualAction = "approve"
	ActionDeny    ManualAction = "deny"
	ActionCancel  ManualAction = "cancel"
)

func (a ManualAction) target() (model.ClaimStatus, bool) {
	switch a {
	case ActionApprove:
		return model.ClaimApproved, true
	case ActionDeny:
		return model.ClaimDenied, true
	case ActionCancel:
		return model.ClaimCancelled, true
	}
	return "", false
}

// ManualDecision computes an operator decision. It follows the same lifecycle rules as the
// pipeline and may additionally flip an unpaid automatic decision. Manual decisions never
// carry the automatic marker.
func ManualDecision(claim *model.Claim, action ManualAction, reason string, payoutOverride decimal.NullDecimal) (Decision, error) {
	target, ok := action.target()
	if !ok {
		return Decision{}, fmt.Errorf("unknown action %q", action)
	}
	if !claim.CanOverride(target) {
		return Decision{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, claim.Status, target)
	}

	d := Decision{
		Status:     target,
		BasePayout: claim.BasePayoutAmount,
		FleetID:    claim.FleetID,
		AdminNotes: strings.TrimSpace(reason),
		Warnings:   []string{},
	}
	switch target {
	case model.ClaimApproved:
		payout := claim.BasePayoutAmount
		if payoutOverride.Valid {
			payout = payoutOverride.Decimal
		} else if payout.IsZero() {
			return Decision{}, ErrPayoutRequired
		}
		if payout.IsNegative() {
			return Decision{}, errors.New("payout must not be negative")
		}
		d.Payout = decimal.NewNullDecimal(payout)
		d.Notify = model.NotificationApproved
	case model.ClaimDenied:
		d.Reason = strings.TrimSpace(reason)
		if d.Reason == "" {
			return Decision{}, errors.New("a denial reason is required")
		}
		d.Notify = model.NotificationDenied
	}
	return d, nil
}

// ApplyDecision writes a decision onto a claim. final_payout_amount is only kept for
// approved claims and denial_reason only for denied ones.
func ApplyDecision(claim *model.Claim, d Decision, processor string, now time.Time) {
	claim.Status = d.Status
	claim.AutoDecided = d.Auto
	claim.AdminNotes = d.AdminNotes
	claim.FleetID = d.FleetID
	claim.BasePayoutAmount = d.BasePayout

	claim.FinalPayoutAmount = decimal.NullDecimal{}
	claim.DenialReason = ""
	switch d.Status {
	case model.ClaimApproved:
		claim.FinalPayoutAmount = d.Payout
	case model.ClaimDenied:
		claim.DenialReason = d.Reason
	}

	if d.Status != model.ClaimPending {
		claim.ProcessedBy = processor
		claim.ProcessedAt = &now
	}
	for _, w := range d.Warnings {
		claim.ValidationWarnings = model.AppendWarning(claim.ValidationWarnings, w)
	}
}
