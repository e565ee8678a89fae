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
	"embed"
	"net/http"
	"time"

	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/database"
	"github.com/jerry-enebeli/srp/internal/cache"
	"github.com/jerry-enebeli/srp/internal/esi"
	"github.com/jerry-enebeli/srp/internal/metrics"
	"github.com/jerry-enebeli/srp/internal/notification"
	"github.com/jerry-enebeli/srp/internal/zkill"
	"github.com/jerry-enebeli/srp/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// GameAPI is the part of the game API client used by the pipeline.
type GameAPI interface {
	Status(ctx context.Context) ([]esi.RouteStatus, error)
	GetMailHeaders(ctx context.Context, token string, characterID, lastMailID int64) ([]model.MailHeader, error)
	GetMail(ctx context.Context, token string, characterID, mailID int64) (*model.Mail, error)
	SendMail(ctx context.Context, token string, characterID int64, mail esi.OutgoingMail) (int64, error)
	ResolveNames(ctx context.Context, names []string) (*esi.ResolvedIDs, error)
	ResolveIDs(ctx context.Context, ids []int64) ([]esi.NamedID, error)
	GetKillmail(ctx context.Context, killmailID int64, hash string) (*esi.Killmail, error)
	GetType(ctx context.Context, typeID int32) (*esi.TypeInfo, error)
	GetWalletJournal(ctx context.Context, token string, corporationID int64, division, page int) ([]model.WalletJournalEntry, int, error)
}

// Killboard looks up aggregated kill metadata.
type Killboard interface {
	GetKill(ctx context.Context, killmailID int64) (*zkill.Kill, error)
}

// TokenProvider hands out a usable access token for the service identity.
type TokenProvider interface {
	Token(ctx context.Context) (*model.ServiceToken, error)
	CharacterID() int64
}

// ReportPublisher delivers run reports to operators.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *model.RunReport) error
}

// SRP runs the ship replacement pipeline and the operator actions around it.
type SRP struct {
	config     *config.Configuration
	datasource database.IDataSource
	redis      redis.UniversalClient
	cache      cache.Cache
	esi        GameAPI
	zkill      Killboard
	tokens     TokenProvider
	publisher  ReportPublisher
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewSRP wires the pipeline from the current configuration.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
// - redisClient redis.UniversalClient: Shared client for the run lease and the health cache.
// - m *metrics.Metrics: Collectors to record into; nil registers on a private registry.
//
// Returns:
// - *SRP: The pipeline service.
// - error: An error if the configuration has not been loaded.
func NewSRP(db database.IDataSource, redisClient redis.UniversalClient, m *metrics.Metrics) (*SRP, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	httpClient := &http.Client{Timeout: time.Duration(cnf.Esi.TimeoutSeconds) * time.Second}
	esiOpts := esi.OptionsFromConfig(cnf.Esi)
	esiOpts.HTTPClient = httpClient

	return &SRP{
		config:     cnf,
		datasource: db,
		redis:      redisClient,
		cache:      cache.NewCache(redisClient, 0),
		esi:        esi.NewClient(esiOpts),
		zkill:      zkill.NewClient(cnf.Zkill, cnf.Esi.UserAgent, nil),
		tokens:     esi.NewTokenSource(db, cnf.Esi, httpClient),
		publisher:  notification.NewPublisher(cnf.Notification),
		metrics:    m,
		now:        time.Now,
	}, nil
}

// Metrics exposes the collectors, mainly for the HTTP handler.
func (s *SRP) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *SRP) characterID() int64 {
	if s.tokens != nil {
		return s.tokens.CharacterID()
	}
	return s.config.Esi.CharacterID
}
