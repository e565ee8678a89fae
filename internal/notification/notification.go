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

package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/internal/request"
	"github.com/jerry-enebeli/srp/model"
	"github.com/sirupsen/logrus"
)

// ReportEvent is the event name carried by the generic webhook envelope.
const ReportEvent = "srp.run_report"

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

// WebhookEnvelope is the body posted to the generic report webhook.
type WebhookEnvelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Publisher delivers run reports to the operator channels that are configured.
// A Publisher with no channel configured is a no-op.
type Publisher struct {
	SlackWebhookURL string
	WebhookURL      string
	WebhookHeaders  map[string]string
	Client          *http.Client
}

// NewPublisher builds a Publisher from the notification section of the configuration.
func NewPublisher(cnf config.Notification) *Publisher {
	return &Publisher{
		SlackWebhookURL: cnf.Slack.WebhookUrl,
		WebhookURL:      cnf.Webhook.Url,
		WebhookHeaders:  cnf.Webhook.Headers,
		Client:          &http.Client{Timeout: 10 * time.Second},
	}
}

// PublishReport sends the report to every configured channel. All channels are
// attempted; the returned error joins the failures.
func (p *Publisher) PublishReport(ctx context.Context, report *model.RunReport) error {
	var errs []error
	if p.SlackWebhookURL != "" {
		if err := p.post(ctx, p.SlackWebhookURL, reportBlocks(report), nil); err != nil {
			errs = append(errs, fmt.Errorf("slack: %w", err))
		}
	}
	if p.WebhookURL != "" {
		envelope := WebhookEnvelope{Event: ReportEvent, Payload: report}
		if err := p.post(ctx, p.WebhookURL, envelope, p.WebhookHeaders); err != nil {
			errs = append(errs, fmt.Errorf("webhook: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) post(ctx context.Context, url string, body interface{}, headers map[string]string) error {
	payload, err := request.ToJsonReq(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	// Slack answers "ok" as plain text so the body is not decoded.
	_, err = request.Call(p.Client, req, nil)
	return err
}

func reportTitle(report *model.RunReport) string {
	switch {
	case report.Skipped:
		return "SRP run skipped ⏸"
	case report.HasErrors():
		return "SRP run finished with errors 🐞"
	default:
		return "SRP run finished ✅"
	}
}

func reportBlocks(report *model.RunReport) slackMessage {
	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: reportTitle(report), Emoji: true}},
	}

	if report.Skipped {
		reason := report.SkipReason
		if report.Health != nil && len(report.Health.Issues) > 0 {
			reason = reason + "\n" + strings.Join(report.Health.Issues, "\n")
		}
		blocks = append(blocks, slackBlock{
			Type:   "section",
			Fields: []slackText{{Type: "mrkdwn", Text: "*Reason:*\n" + reason}},
		})
	} else {
		blocks = append(blocks,
			slackBlock{Type: "section", Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Mails:*\n%d seen, %d processed", report.MailsSeen, report.MailsProcessed)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Claims:*\n%d created (%d approved, %d denied, %d pending)",
					report.ClaimsCreated, report.Approved, report.Denied, report.PendingReview)},
			}},
			slackBlock{Type: "section", Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Notifications:*\n%d sent, %d failed, %d rate limited",
					report.NotificationsSent, report.NotificationsFailed, report.NotificationsRateLimited)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Wallet:*\n%d journal rows, %d payments matched",
					report.JournalSaved, report.PaymentsReconciled)},
			}},
		)
	}

	if len(report.StageErrors) > 0 {
		stages := make([]string, 0, len(report.StageErrors))
		for stage := range report.StageErrors {
			stages = append(stages, stage)
		}
		sort.Strings(stages)
		lines := make([]string, 0, len(stages))
		for _, stage := range stages {
			lines = append(lines, fmt.Sprintf("• %s: %s", stage, report.StageErrors[stage]))
		}
		blocks = append(blocks, slackBlock{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: "*Stage errors:*\n" + strings.Join(lines, "\n")}}})
	}

	if len(report.MailErrors) > 0 {
		lines := make([]string, 0, len(report.MailErrors))
		for _, e := range report.MailErrors {
			lines = append(lines, fmt.Sprintf("• mail %d (%s): %s", e.MailID, e.Stage, e.Error))
		}
		blocks = append(blocks, slackBlock{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: "*Mail errors:*\n" + strings.Join(lines, "\n")}}})
	}

	blocks = append(blocks, slackBlock{Type: "context", Elements: []slackText{{Type: "mrkdwn",
		Text: fmt.Sprintf("run %s · %s", report.RunID, report.StartedAt.Format(time.RFC822))}}})
	return slackMessage{Blocks: blocks}
}

// SlackNotification sends an error message to the configured Slack webhook.
func SlackNotification(err error) {
	conf, cfgErr := config.Fetch()
	if cfgErr != nil {
		log.Println(cfgErr)
		return
	}

	msg := slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "Error From SRP 🐞", Emoji: true}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n%v", err)}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%v", time.Now().Format(time.RFC822))}}},
	}}

	p := NewPublisher(conf.Notification)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if postErr := p.post(ctx, conf.Notification.Slack.WebhookUrl, msg, nil); postErr != nil {
		log.Println(postErr)
	}
}

// NotifyError logs the error and, when Slack is configured, reports it there asynchronously.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			SlackNotification(systemError)
		}
	}(systemError)
}
