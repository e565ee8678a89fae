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
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jerry-enebeli/srp/internal/esi"
	"github.com/jerry-enebeli/srp/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// nextRunDelay keeps a transiently failed entry out of the current drain.
const nextRunDelay = time.Second

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templateFuncs = template.FuncMap{"isk": formatISK}

func mustTemplate(subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New("subject").Funcs(templateFuncs).Parse(subject)),
		body:    template.Must(template.New("body").Funcs(templateFuncs).Parse(body)),
	}
}

var notificationTemplates = map[model.NotificationKind]mailTemplate{
	model.NotificationApproved: mustTemplate(
		`SRP-{{.ClaimID}} approved: {{.ShipTypeName}}`,
		`Your ship replacement request SRP-{{.ClaimID}} for the loss of your {{.ShipTypeName}}`+
			`{{if .KillmailID}} (killmail {{.KillmailID}}){{end}} has been approved.<br><br>`+
			`Payout: {{isk .Amount}} ISK. It will be transferred by the corporation wallet shortly.`,
	),
	model.NotificationDenied: mustTemplate(
		`SRP-{{.ClaimID}} denied: {{.ShipTypeName}}`,
		`Your ship replacement request SRP-{{.ClaimID}} for the loss of your {{.ShipTypeName}}`+
			`{{if .KillmailID}} (killmail {{.KillmailID}}){{end}} has been denied.<br><br>`+
			`Reason: {{.Reason}}`,
	),
	model.NotificationPaid: mustTemplate(
		`SRP-{{.ClaimID}} paid: {{.ShipTypeName}}`,
		`{{isk .Amount}} ISK has been paid out for your ship replacement request SRP-{{.ClaimID}}`+
			` ({{.ShipTypeName}}). Fly safe.`,
	),
}

// DrainResult counts what one drain did.
type DrainResult struct {
	Sent        int `json:"sent"`
	Failed      int `json:"failed"`
	RateLimited int `json:"rate_limited"`
}

// EnqueueNotification persists a notification for later delivery.
func (s *SRP) EnqueueNotification(ctx context.Context, entry *model.NotificationQueueEntry) error {
	return s.datasource.EnqueueNotification(ctx, entry)
}

func (s *SRP) ListNotifications(ctx context.Context, limit, offset int) ([]model.NotificationQueueEntry, error) {
	return s.datasource.ListNotifications(ctx, limit, offset)
}

// ClearNotification removes an entry without delivering it.
func (s *SRP) ClearNotification(ctx context.Context, id string) error {
	return s.datasource.DeleteNotification(ctx, id)
}

// DrainNotifications sends every due notification, oldest retry_after first. Delivered
// entries are deleted. A rate limit answer reschedules the entry with backoff and stops the
// drain; any other failure keeps the entry for the next run. Entries are never dropped.
func (s *SRP) DrainNotifications(ctx context.Context, token *model.ServiceToken) (DrainResult, error) {
	ctx, span := otel.Tracer("Notification queue").Start(ctx, "Draining notifications")
	defer span.End()

	var result DrainResult
	now := s.now()
	batchSize := s.config.Pipeline.DrainBatchSize

	for {
		entries, err := s.datasource.GetDueNotifications(ctx, now, batchSize)
		if err != nil {
			return result, err
		}

		for i := range entries {
			entry := &entries[i]
			err := s.deliver(ctx, token, entry)
			if err == nil {
				if err := s.datasource.DeleteNotification(ctx, entry.ID); err != nil {
					// delivered but still queued: the claimant may get a duplicate next run
					return result, fmt.Errorf("deleting delivered notification %s: %w", entry.ID, err)
				}
				result.Sent++
				s.metrics.NotificationSent()
				continue
			}

			failedAt := s.now()
			attempts := entry.Attempts + 1
			var rateLimit *esi.RateLimitError
			if errors.As(err, &rateLimit) {
				delay := notificationBackoff(attempts, s.config.Pipeline.BackoffInitial(), s.config.Pipeline.BackoffMax())
				if rateLimit.RetryAfter > delay {
					delay = rateLimit.RetryAfter
				}
				if err := s.datasource.UpdateNotificationRetry(ctx, entry.ID, failedAt.Add(delay), attempts, err.Error()); err != nil {
					return result, err
				}
				result.RateLimited++
				s.metrics.RateLimited("esi")
				logrus.WithFields(logrus.Fields{
					"notification_id": entry.ID,
					"attempts":        attempts,
					"retry_in":        delay,
				}).Warn("notification rate limited, stopping drain")
				return result, nil
			}

			result.Failed++
			s.metrics.NotificationFailed()
			logrus.WithField("notification_id", entry.ID).WithError(err).Warn("notification delivery failed")
			if err := s.datasource.UpdateNotificationRetry(ctx, entry.ID, failedAt.Add(nextRunDelay), attempts, err.Error()); err != nil {
				return result, err
			}
		}

		if len(entries) < batchSize {
			return result, nil
		}
	}
}

func (s *SRP) deliver(ctx context.Context, token *model.ServiceToken, entry *model.NotificationQueueEntry) error {
	subject, body, err := RenderNotification(entry)
	if err != nil {
		return err
	}
	_, err = s.esi.SendMail(ctx, token.AccessToken, token.CharacterID, esi.OutgoingMail{
		Recipients: []esi.Recipient{{RecipientID: entry.RecipientID, RecipientType: "character"}},
		Subject:    subject,
		Body:       body,
	})
	return err
}

// RenderNotification renders the subject and body of a queued notification.
func RenderNotification(entry *model.NotificationQueueEntry) (string, string, error) {
	tmpl, ok := notificationTemplates[entry.Kind]
	if !ok {
		return "", "", fmt.Errorf("no template for notification kind %q", entry.Kind)
	}
	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, entry.Payload); err != nil {
		return "", "", err
	}
	if err := tmpl.body.Execute(&body, entry.Payload); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}

// notificationBackoff is the delay before the given attempt: initial doubled per attempt,
// capped at max, without jitter.
func notificationBackoff(attempts int, initial, max time.Duration) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()

	delay := initial
	for i := 0; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// formatISK renders an amount with thousands separators and two decimals.
func formatISK(amount decimal.Decimal) string {
	s := amount.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
