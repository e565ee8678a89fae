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
package mocks

import (
	"context"
	"time"

	"github.com/jerry-enebeli/srp/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Claim methods

func (m *MockDataSource) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	args := m.Called(ctx, id)
	claim, _ := args.Get(0).(*model.Claim)
	return claim, args.Error(1)
}

func (m *MockDataSource) ListClaims(ctx context.Context, status model.ClaimStatus, limit, offset int) ([]model.Claim, error) {
	args := m.Called(ctx, status, limit, offset)
	claims, _ := args.Get(0).([]model.Claim)
	return claims, args.Error(1)
}

func (m *MockDataSource) ClaimExistsForKillmail(ctx context.Context, killmailID int64) (bool, error) {
	args := m.Called(ctx, killmailID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) ApplyClaimDecision(ctx context.Context, claim *model.Claim, prev model.ClaimStatus, notification *model.NotificationQueueEntry) error {
	args := m.Called(ctx, claim, prev, notification)
	return args.Error(0)
}

func (m *MockDataSource) MarkClaimPaid(ctx context.Context, claimID int64, entry model.WalletJournalEntry, warnings []string, notification *model.NotificationQueueEntry) (bool, error) {
	args := m.Called(ctx, claimID, entry, warnings, notification)
	return args.Bool(0), args.Error(1)
}

// Processed mail methods

func (m *MockDataSource) ProcessedMailExists(ctx context.Context, mailID int64) (bool, error) {
	args := m.Called(ctx, mailID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetProcessedMailIDs(ctx context.Context, mailIDs []int64) (map[int64]bool, error) {
	args := m.Called(ctx, mailIDs)
	ids, _ := args.Get(0).(map[int64]bool)
	return ids, args.Error(1)
}

func (m *MockDataSource) RecordMailOutcome(ctx context.Context, outcome *model.MailOutcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

func (m *MockDataSource) DeleteProcessedMail(ctx context.Context, mailID int64) error {
	args := m.Called(ctx, mailID)
	return args.Error(0)
}

// Reference data methods

func (m *MockDataSource) GetShipTypeConfigs(ctx context.Context) ([]model.ShipTypeConfig, error) {
	args := m.Called(ctx)
	configs, _ := args.Get(0).([]model.ShipTypeConfig)
	return configs, args.Error(1)
}

func (m *MockDataSource) GetFleetsBetween(ctx context.Context, from, to time.Time) ([]model.Fleet, error) {
	args := m.Called(ctx, from, to)
	fleets, _ := args.Get(0).([]model.Fleet)
	return fleets, args.Error(1)
}

// Notification queue methods

func (m *MockDataSource) EnqueueNotification(ctx context.Context, entry *model.NotificationQueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDataSource) GetDueNotifications(ctx context.Context, now time.Time, limit int) ([]model.NotificationQueueEntry, error) {
	args := m.Called(ctx, now, limit)
	entries, _ := args.Get(0).([]model.NotificationQueueEntry)
	return entries, args.Error(1)
}

func (m *MockDataSource) DeleteNotification(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) UpdateNotificationRetry(ctx context.Context, id string, retryAfter time.Time, attempts int, lastErr string) error {
	args := m.Called(ctx, id, retryAfter, attempts, lastErr)
	return args.Error(0)
}

func (m *MockDataSource) ListNotifications(ctx context.Context, limit, offset int) ([]model.NotificationQueueEntry, error) {
	args := m.Called(ctx, limit, offset)
	entries, _ := args.Get(0).([]model.NotificationQueueEntry)
	return entries, args.Error(1)
}

// Wallet journal methods

func (m *MockDataSource) GetJournalCursor(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) SaveJournalEntries(ctx context.Context, entries []model.WalletJournalEntry) (int, error) {
	args := m.Called(ctx, entries)
	return args.Int(0), args.Error(1)
}

func (m *MockDataSource) GetUnmatchedJournalEntries(ctx context.Context, since time.Time) ([]model.WalletJournalEntry, error) {
	args := m.Called(ctx, since)
	entries, _ := args.Get(0).([]model.WalletJournalEntry)
	return entries, args.Error(1)
}

// Service token methods

func (m *MockDataSource) GetServiceToken(ctx context.Context, characterID int64) (*model.ServiceToken, error) {
	args := m.Called(ctx, characterID)
	token, _ := args.Get(0).(*model.ServiceToken)
	return token, args.Error(1)
}

func (m *MockDataSource) SaveServiceToken(ctx context.Context, token *model.ServiceToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}
