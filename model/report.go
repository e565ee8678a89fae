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
	"sync"
	"time"
)

// HealthStatus is the outcome of the upstream health gate.
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Issues    []string  `json:"issues"`
	Warnings  []string  `json:"warnings"`
	CheckedAt time.Time `json:"checked_at"`
	FromCache bool      `json:"from_cache"`
}

// RunMailError is a per-mail failure surfaced to operators.
type RunMailError struct {
	MailID int64  `json:"mail_id"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

// RunReport summarises one pipeline invocation. It is safe for concurrent use by the
// mail workers through its Add* methods.
type RunReport struct {
	mu sync.Mutex

	RunID      string        `json:"run_id"`
	Identity   int64         `json:"identity"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Health     *HealthStatus `json:"health,omitempty"`
	Skipped    bool          `json:"skipped"`
	SkipReason string        `json:"skip_reason,omitempty"`

	MailsSeen      int `json:"mails_seen"`
	MailsProcessed int `json:"mails_processed"`
	ClaimsCreated  int `json:"claims_created"`
	Approved       int `json:"approved"`
	Denied         int `json:"denied"`
	PendingReview  int `json:"pending_review"`
	MailsSkipped   int `json:"mails_skipped"`
	MailsErrored   int `json:"mails_errored"`

	MailErrors []RunMailError `json:"mail_errors"`

	NotificationsSent        int `json:"notifications_sent"`
	NotificationsFailed      int `json:"notifications_failed"`
	NotificationsRateLimited int `json:"notifications_rate_limited"`

	JournalSaved       int `json:"journal_saved"`
	PaymentsReconciled int `json:"payments_reconciled"`

	StageErrors map[string]string `json:"stage_errors"`
}

func NewRunReport(runID string, identity int64, startedAt time.Time) *RunReport {
	return &RunReport{
		RunID:       runID,
		Identity:    identity,
		StartedAt:   startedAt,
		MailErrors:  []RunMailError{},
		StageErrors: map[string]string{},
	}
}

func (r *RunReport) AddMailError(mailID int64, stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MailsErrored++
	r.MailErrors = append(r.MailErrors, RunMailError{MailID: mailID, Stage: stage, Error: err.Error()})
}

func (r *RunReport) AddStageError(stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StageErrors[stage] = err.Error()
}

// AddOutcome counts a persisted mail outcome.
func (r *RunReport) AddOutcome(outcome *MailOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MailsProcessed++
	switch outcome.Mail.Status {
	case MailSkipped:
		r.MailsSkipped++
	case MailError:
		r.MailsErrored++
	}
	if outcome.Claim == nil {
		return
	}
	r.ClaimsCreated++
	switch outcome.Claim.Status {
	case ClaimApproved:
		r.Approved++
	case ClaimDenied:
		r.Denied++
	case ClaimPending:
		r.PendingReview++
	}
}

// Skip marks the run as skipped for the given reason.
func (r *RunReport) Skip(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = true
	r.SkipReason = reason
}

func (r *RunReport) Finish(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = now
	r.Duration = now.Sub(r.StartedAt)
}

// HasErrors reports whether any stage or mail failed.
func (r *RunReport) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.StageErrors) > 0 || len(r.MailErrors) > 0 || r.MailsErrored > 0 || r.NotificationsFailed > 0
}

// HasActivity reports whether the run changed anything worth announcing.
func (r *RunReport) HasActivity() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.MailsProcessed > 0 || r.NotificationsSent > 0 || r.NotificationsRateLimited > 0 ||
		r.JournalSaved > 0 || r.PaymentsReconciled > 0
}

// ShouldPublish is false for quiet runs so the report channel only carries signal.
// Health skips are always published; lease skips are not since another run is reporting.
func (r *RunReport) ShouldPublish() bool {
	if r.Skipped {
		return r.Health != nil && !r.Health.Healthy
	}
	return r.HasActivity() || r.HasErrors()
}
