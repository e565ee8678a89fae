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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/database/mocks"
	"github.com/jerry-enebeli/srp/internal/cache"
	"github.com/jerry-enebeli/srp/internal/esi"
	"github.com/jerry-enebeli/srp/internal/metrics"
	"github.com/jerry-enebeli/srp/internal/zkill"
	"github.com/jerry-enebeli/srp/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

const testCharacterID = int64(90000001)

type MockGameAPI struct {
	mock.Mock
}

func (m *MockGameAPI) Status(ctx context.Context) ([]esi.RouteStatus, error) {
	args := m.Called(ctx)
	routes, _ := args.Get(0).([]esi.RouteStatus)
	return routes, args.Error(1)
}

func (m *MockGameAPI) GetMailHeaders(ctx context.Context, token string, characterID, lastMailID int64) ([]model.MailHeader, error) {
	args := m.Called(ctx, token, characterID, lastMailID)
	headers, _ := args.Get(0).([]model.MailHeader)
	return headers, args.Error(1)
}

func (m *MockGameAPI) GetMail(ctx context.Context, token string, characterID, mailID int64) (*model.Mail, error) {
	args := m.Called(ctx, token, characterID, mailID)
	mail, _ := args.Get(0).(*model.Mail)
	return mail, args.Error(1)
}

func (m *MockGameAPI) SendMail(ctx context.Context, token string, characterID int64, mail esi.OutgoingMail) (int64, error) {
	args := m.Called(ctx, token, characterID, mail)
	return int64(args.Int(0)), args.Error(1)
}

func (m *MockGameAPI) ResolveNames(ctx context.Context, names []string) (*esi.ResolvedIDs, error) {
	args := m.Called(ctx, names)
	ids, _ := args.Get(0).(*esi.ResolvedIDs)
	return ids, args.Error(1)
}

func (m *MockGameAPI) ResolveIDs(ctx context.Context, ids []int64) ([]esi.NamedID, error) {
	args := m.Called(ctx, ids)
	names, _ := args.Get(0).([]esi.NamedID)
	return names, args.Error(1)
}

func (m *MockGameAPI) GetKillmail(ctx context.Context, killmailID int64, hash string) (*esi.Killmail, error) {
	args := m.Called(ctx, killmailID, hash)
	km, _ := args.Get(0).(*esi.Killmail)
	return km, args.Error(1)
}

func (m *MockGameAPI) GetType(ctx context.Context, typeID int32) (*esi.TypeInfo, error) {
	args := m.Called(ctx, typeID)
	info, _ := args.Get(0).(*esi.TypeInfo)
	return info, args.Error(1)
}

func (m *MockGameAPI) GetWalletJournal(ctx context.Context, token string, corporationID int64, division, page int) ([]model.WalletJournalEntry, int, error) {
	args := m.Called(ctx, token, corporationID, division, page)
	entries, _ := args.Get(0).([]model.WalletJournalEntry)
	return entries, args.Int(1), args.Error(2)
}

type MockKillboard struct {
	mock.Mock
}

func (m *MockKillboard) GetKill(ctx context.Context, killmailID int64) (*zkill.Kill, error) {
	args := m.Called(ctx, killmailID)
	kill, _ := args.Get(0).(*zkill.Kill)
	return kill, args.Error(1)
}

type MockTokenProvider struct {
	mock.Mock
}

func (m *MockTokenProvider) Token(ctx context.Context) (*model.ServiceToken, error) {
	args := m.Called(ctx)
	token, _ := args.Get(0).(*model.ServiceToken)
	return token, args.Error(1)
}

func (m *MockTokenProvider) CharacterID() int64 {
	return testCharacterID
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishReport(ctx context.Context, report *model.RunReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// testSRP bundles the service under test with its collaborators.
type testSRP struct {
	*SRP
	ds        *mocks.MockDataSource
	api       *MockGameAPI
	zkill     *MockKillboard
	tokens    *MockTokenProvider
	publisher *MockPublisher
	redis     *miniredis.Miniredis
	clock     *time.Time
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		Esi: config.EsiConfig{
			CharacterID:      testCharacterID,
			CorporationID:    98000001,
			WalletDivision:   1,
			MailLookbackDays: 30,
		},
		Pipeline: config.PipelineConfig{
			Queue:                    "srp:pipeline_run",
			LeaseTTLSeconds:          600,
			HealthCacheTTLSeconds:    60,
			FleetProximityMinutes:    60,
			DefaultFleetDurationMins: 240,
			MailWorkers:              1,
			DrainBatchSize:           10,
			BackoffInitialSeconds:    60,
			BackoffMaxSeconds:        3600,
			ReconcileLookbackDays:    30,
		},
	}
}

func newTestSRP(t *testing.T) *testSRP {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	ts := &testSRP{
		ds:        &mocks.MockDataSource{},
		api:       &MockGameAPI{},
		zkill:     &MockKillboard{},
		tokens:    &MockTokenProvider{},
		publisher: &MockPublisher{},
		redis:     mr,
		clock:     &now,
	}
	ts.SRP = &SRP{
		config:     testConfig(),
		datasource: ts.ds,
		redis:      client,
		cache:      cache.NewCache(client, 0),
		esi:        ts.api,
		zkill:      ts.zkill,
		tokens:     ts.tokens,
		publisher:  ts.publisher,
		metrics:    metrics.New(prometheus.NewRegistry()),
		now:        func() time.Time { return *ts.clock },
	}
	return ts
}

func (ts *testSRP) advance(d time.Duration) {
	*ts.clock = ts.clock.Add(d)
}

func testToken() *model.ServiceToken {
	return &model.ServiceToken{
		CharacterID:   testCharacterID,
		CorporationID: 98000001,
		AccessToken:   "access-token",
	}
}

func healthyRoutes() []esi.RouteStatus {
	routes := make([]esi.RouteStatus, 0, len(criticalRoutes))
	for _, r := range criticalRoutes {
		routes = append(routes, esi.RouteStatus{Method: r.method, Route: r.route, Status: "green"})
	}
	return routes
}
