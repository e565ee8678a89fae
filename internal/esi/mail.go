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

package esi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jerry-enebeli/srp/model"
)

type mailHeaderResponse struct {
	MailID    int64     `json:"mail_id"`
	From      int64     `json:"from"`
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
	Labels    []int32   `json:"labels"`
}

type mailResponse struct {
	From      int64     `json:"from"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Labels    []int32   `json:"labels"`
}

// Recipient addresses an outgoing mail.
type Recipient struct {
	RecipientID   int64  `json:"recipient_id"`
	RecipientType string `json:"recipient_type"`
}

// OutgoingMail is the body of a mail send.
type OutgoingMail struct {
	Recipients   []Recipient `json:"recipients"`
	Subject      string      `json:"subject"`
	Body         string      `json:"body"`
	ApprovedCost int64       `json:"approved_cost"`
}

// GetMailHeaders lists one page of the character's mailbox, newest first.
// lastMailID of zero requests the newest page; otherwise only mails older than it are returned.
func (c *Client) GetMailHeaders(ctx context.Context, token string, characterID, lastMailID int64) ([]model.MailHeader, error) {
	query := url.Values{}
	if lastMailID > 0 {
		query.Set("last_mail_id", strconv.FormatInt(lastMailID, 10))
	}

	var page []mailHeaderResponse
	_, err := c.do(ctx, call{
		method: http.MethodGet,
		url:    c.endpoint(fmt.Sprintf("/characters/%d/mail/", characterID), query),
		token:  token,
		out:    &page,
	})
	if err != nil {
		return nil, fmt.Errorf("listing mail headers: %w", err)
	}

	headers := make([]model.MailHeader, 0, len(page))
	for _, h := range page {
		headers = append(headers, model.MailHeader{
			MailID:    h.MailID,
			From:      h.From,
			Subject:   h.Subject,
			Timestamp: h.Timestamp,
			IsRead:    h.IsRead,
			Labels:    h.Labels,
		})
	}
	return headers, nil
}

// GetMail fetches a single mail including its body. A deleted mail yields ErrNotFound.
func (c *Client) GetMail(ctx context.Context, token string, characterID, mailID int64) (*model.Mail, error) {
	var m mailResponse
	_, err := c.do(ctx, call{
		method: http.MethodGet,
		url:    c.endpoint(fmt.Sprintf("/characters/%d/mail/%d/", characterID, mailID), nil),
		token:  token,
		out:    &m,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching mail %d: %w", mailID, err)
	}

	return &model.Mail{
		MailHeader: model.MailHeader{
			MailID:    mailID,
			From:      m.From,
			Subject:   m.Subject,
			Timestamp: m.Timestamp,
			IsRead:    m.Read,
			Labels:    m.Labels,
		},
		Body: m.Body,
	}, nil
}

// SendMail sends a mail from the character and returns the new mail id.
// Spam protection answers are reported as *RateLimitError.
func (c *Client) SendMail(ctx context.Context, token string, characterID int64, mail OutgoingMail) (int64, error) {
	var mailID int64
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		url:    c.endpoint(fmt.Sprintf("/characters/%d/mail/", characterID), nil),
		token:  token,
		body:   mail,
		out:    &mailID,
	})
	if err != nil {
		return 0, fmt.Errorf("sending mail: %w", err)
	}
	return mailID, nil
}
