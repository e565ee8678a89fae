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

import "time"

type MailStatus string

const (
	MailCreated MailStatus = "created"
	MailSkipped MailStatus = "skipped"
	MailError   MailStatus = "error"
)

// ProcessedMail marks an inbound mail as examined. A mail id is processed at most once;
// deleting the row forces the pipeline to look at the mail again.
type ProcessedMail struct {
	MailID      int64      `json:"mail_id"`
	SenderID    int64      `json:"sender_id"`
	SenderName  string     `json:"sender_name"`
	Subject     string     `json:"subject"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt time.Time  `json:"processed_at"`
	Status      MailStatus `json:"status"`
	ClaimID     *int64     `json:"claim_id,omitempty"`
	ErrorDetail string     `json:"error_detail,omitempty"`
}

// MailHeader is a mailbox entry as listed by the game API.
type MailHeader struct {
	MailID     int64     `json:"mail_id"`
	From       int64     `json:"from"`
	Subject    string    `json:"subject"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"is_read"`
	Labels     []int32   `json:"labels"`
	SenderName string    `json:"-"`
}

// Mail is a full mail including its body.
type Mail struct {
	MailHeader
	Body string `json:"body"`
}

// MailOutcome is everything that must be persisted atomically once a mail has been examined.
type MailOutcome struct {
	Mail         ProcessedMail
	Claim        *Claim
	Notification *NotificationQueueEntry
}
