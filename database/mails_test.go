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

package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

func newOutcome(withClaim bool) *model.MailOutcome {
	now := time.Now()
	outcome := &model.MailOutcome{
		Mail: model.ProcessedMail{
			MailID:      int64(gofakeit.Number(1000, 999999)),
			SenderID:    90000001,
			SenderName:  gofakeit.Name(),
			Subject:     "SRP Guardian",
			ReceivedAt:  now,
			ProcessedAt: now,
			Status:      model.MailSkipped,
			ErrorDetail: "unparseable",
		},
	}
	if withClaim {
		claim := &model.Claim{
			CharacterID: 90000001,
			KillmailID:  ptr.Int64(123456),
			Status:      model.ClaimApproved,
		}
		outcome.Mail.Status = model.MailCreated
		outcome.Mail.ErrorDetail = ""
		outcome.Claim = claim
		outcome.Notification = model.NewNotification(model.NotificationApproved, claim, "", now)
	}
	return outcome
}

func TestProcessedMailExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := ds.ProcessedMailExists(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProcessedMailIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT mail_id FROM srp.processed_mails").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"mail_id"}).AddRow(int64(1)).AddRow(int64(3)))

	ids, err := ds.GetProcessedMailIDs(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 3: true}, ids)

	empty, err := ds.GetProcessedMailIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMailOutcome_WithClaim(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ds := Datasource{Conn: db}

	outcome := newOutcome(true)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO srp.claims").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now))
	mock.ExpectExec("INSERT INTO srp.processed_mails").
		WithArgs(outcome.Mail.MailID, int64(90000001), sqlmock.AnyArg(), "SRP Guardian", sqlmock.AnyArg(),
			sqlmock.AnyArg(), "created", int64(42), "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO srp.notification_queue").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = ds.RecordMailOutcome(context.Background(), outcome)
	require.NoError(t, err)
	assert.Equal(t, int64(42), outcome.Claim.ID)
	require.NotNil(t, outcome.Mail.ClaimID)
	assert.Equal(t, int64(42), *outcome.Mail.ClaimID)
	assert.Equal(t, int64(42), outcome.Notification.Payload.ClaimID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMailOutcome_AlreadyProcessed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ds := Datasource{Conn: db}

	outcome := newOutcome(true)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO srp.claims").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now))
	mock.ExpectExec("INSERT INTO srp.processed_mails").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = ds.RecordMailOutcome(context.Background(), outcome)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Zero(t, outcome.Claim.ID)
	assert.Nil(t, outcome.Mail.ClaimID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMailOutcome_DuplicateKillmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO srp.claims").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err = ds.RecordMailOutcome(context.Background(), newOutcome(true))
	assert.ErrorIs(t, err, ErrDuplicateKillmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMailOutcome_SkippedMail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ds := Datasource{Conn: db}

	outcome := newOutcome(false)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO srp.processed_mails").
		WithArgs(outcome.Mail.MailID, int64(90000001), sqlmock.AnyArg(), "SRP Guardian", sqlmock.AnyArg(),
			sqlmock.AnyArg(), "skipped", nil, "unparseable").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, ds.RecordMailOutcome(context.Background(), outcome))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProcessedMail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ds := Datasource{Conn: db}

	mock.ExpectExec("DELETE FROM srp.processed_mails").WithArgs(int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, ds.DeleteProcessedMail(context.Background(), 42))

	mock.ExpectExec("DELETE FROM srp.processed_mails").WithArgs(int64(43)).WillReturnResult(sqlmock.NewResult(0, 0))
	err = ds.DeleteProcessedMail(context.Background(), 43)
	assert.Equal(t, apierror.ErrNotFound, err.(apierror.APIError).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
