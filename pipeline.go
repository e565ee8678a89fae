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
	"runtime/debug"
	"strings"
	"time"

	redlock "github.com/jerry-enebeli/srp/internal/lock"
	"github.com/jerry-enebeli/srp/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	StageLease         = "lease"
	StageHealth        = "health"
	StageToken         = "token"
	StageNotifications = "notifications"
	StageReconcile     = "reconcile"
	StageMail          = "mail"

	skipLeaseHeld = "another run is active"
)

func pipelineLeaseKey(characterID int64) string {
	return fmt.Sprintf("srp:pipeline:%d", characterID)
}

// leaseRefreshInterval keeps a few refreshes inside one TTL.
func leaseRefreshInterval(ttl time.Duration) time.Duration {
	interval := ttl / 3
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return interval
}

// RunOnce executes one full pipeline pass: lease, health gate, token, notification drain,
// wallet reconciliation and mailbox processing. It never returns an error; every failure
// is captured in the report, and a failing stage does not stop the ones after it.
func (s *SRP) RunOnce(ctx context.Context) *model.RunReport {
	ctx, span := otel.Tracer("Pipeline").Start(ctx, "Running pipeline")
	defer span.End()

	runID := model.GenerateUUIDWithSuffix("run")
	identity := s.characterID()
	report := model.NewRunReport(runID, identity, s.now())
	span.SetAttributes(attribute.String("run.id", runID), attribute.Int64("run.identity", identity))
	logger := logrus.WithFields(logrus.Fields{"run_id": runID, "identity": identity})

	leaseTTL := s.config.Pipeline.LeaseTTL()
	lease := redlock.NewLocker(s.redis, pipelineLeaseKey(identity), runID)
	if err := lease.Lock(ctx, leaseTTL); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			reason := skipLeaseHeld
			if holder, err := lease.Holder(ctx); err == nil && holder != "" {
				reason = fmt.Sprintf("%s (%s)", skipLeaseHeld, holder)
			}
			logger.WithField("reason", reason).Info("pipeline lease held by another run, skipping")
			report.Skip(reason)
			report.Finish(s.now())
			s.metrics.RunFinished("skipped_lease")
			return report
		}
		logger.WithError(err).Error("acquiring pipeline lease")
		report.AddStageError(StageLease, err)
		report.Skip("could not acquire run lease")
		report.Finish(s.now())
		s.metrics.RunFinished("errored")
		return report
	}
	stopRefresh := lease.KeepAlive(ctx, leaseTTL, leaseRefreshInterval(leaseTTL), func(err error) {
		logger.WithError(err).Warn("extending pipeline lease")
	})
	defer func() {
		stopRefresh()
		if err := lease.Unlock(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Warn("releasing pipeline lease")
		}
	}()

	health := s.CheckHealth(ctx)
	report.Health = &health
	if !health.Healthy {
		logger.WithField("issues", health.Issues).Warn("upstream unhealthy, skipping run")
		report.Skip("upstream unhealthy: " + strings.Join(health.Issues, "; "))
		s.finishRun(ctx, report, "skipped_health")
		return report
	}

	var token *model.ServiceToken
	s.runStage(ctx, report, StageToken, func(ctx context.Context) error {
		var err error
		token, err = s.tokens.Token(ctx)
		return err
	})
	if token == nil {
		s.finishRun(ctx, report, "errored")
		return report
	}

	stages := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{StageNotifications, func(ctx context.Context) error {
			result, err := s.DrainNotifications(ctx, token)
			report.NotificationsSent = result.Sent
			report.NotificationsFailed = result.Failed
			report.NotificationsRateLimited = result.RateLimited
			return err
		}},
		{StageReconcile, func(ctx context.Context) error {
			result, err := s.ReconcileWallet(ctx, token)
			report.JournalSaved = result.JournalSaved
			report.PaymentsReconciled = result.PaymentsReconciled
			return err
		}},
		{StageMail, func(ctx context.Context) error {
			return s.ProcessMailbox(ctx, token, report)
		}},
	}
	for _, stage := range stages {
		s.runStage(ctx, report, stage.name, stage.fn)
	}

	outcome := "completed"
	if report.HasErrors() {
		outcome = "errored"
	}
	s.finishRun(ctx, report, outcome)
	return report
}

// runStage runs fn as a named stage. Errors and panics are recorded on the report.
func (s *SRP) runStage(ctx context.Context, report *model.RunReport, name string, fn func(ctx context.Context) error) {
	ctx, span := otel.Tracer("Pipeline").Start(ctx, "Stage "+name)
	defer span.End()

	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logrus.WithField("stage", name).WithField("stack", string(debug.Stack())).Error(err)
			span.SetStatus(codes.Error, err.Error())
			report.AddStageError(name, err)
		}
		s.metrics.ObserveStage(name, s.now().Sub(started))
	}()

	if err := fn(ctx); err != nil {
		logrus.WithField("stage", name).WithError(err).Error("pipeline stage failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		report.AddStageError(name, err)
	}
}

func (s *SRP) finishRun(ctx context.Context, report *model.RunReport, outcome string) {
	report.Finish(s.now())
	s.metrics.RunFinished(outcome)

	logrus.WithFields(logrus.Fields{
		"run_id":          report.RunID,
		"outcome":         outcome,
		"mails_processed": report.MailsProcessed,
		"claims_created":  report.ClaimsCreated,
		"duration":        report.Duration,
	}).Info("pipeline run finished")

	if !report.ShouldPublish() || s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReport(ctx, report); err != nil {
		logrus.WithField("run_id", report.RunID).WithError(err).Error("publishing run report")
	}
}
