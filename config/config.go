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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT           = "5001"
	DEFAULT_ESI_URL        = "https://esi.evetech.net/latest"
	DEFAULT_SSO_URL        = "https://login.eveonline.com/v2/oauth/token"
	DEFAULT_ZKILL_URL      = "https://zkillboard.com/api"
	DEFAULT_USER_AGENT     = "srp-pipeline"
	DEFAULT_SCHEDULE       = "@every 15m"
	DEFAULT_PIPELINE_QUEUE = "srp:pipeline_run"
	DEFAULT_MONITOR_PORT   = "5004"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"SRP_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"SRP_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"SRP_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"SRP_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"SRP_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"SRP_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"SRP_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"SRP_REDIS_DNS"`
}

// EsiConfig configures the game API client and the mailbox identity it acts for.
type EsiConfig struct {
	BaseURL           string   `json:"base_url" envconfig:"SRP_ESI_BASE_URL"`
	SSOURL            string   `json:"sso_url" envconfig:"SRP_ESI_SSO_URL"`
	ClientID          string   `json:"client_id" envconfig:"SRP_ESI_CLIENT_ID"`
	ClientSecret      string   `json:"client_secret" envconfig:"SRP_ESI_CLIENT_SECRET"`
	UserAgent         string   `json:"user_agent" envconfig:"SRP_ESI_USER_AGENT"`
	TimeoutSeconds    int      `json:"timeout_seconds" envconfig:"SRP_ESI_TIMEOUT_SECONDS"`
	RequestsPerSecond *float64 `json:"requests_per_second" envconfig:"SRP_ESI_RPS"`
	Burst             int      `json:"burst" envconfig:"SRP_ESI_BURST"`
	CharacterID       int64    `json:"character_id" envconfig:"SRP_ESI_CHARACTER_ID"`
	CorporationID     int64    `json:"corporation_id" envconfig:"SRP_ESI_CORPORATION_ID"`
	WalletDivision    int      `json:"wallet_division" envconfig:"SRP_ESI_WALLET_DIVISION"`
	MailLookbackDays  int      `json:"mail_lookback_days" envconfig:"SRP_ESI_MAIL_LOOKBACK_DAYS"`
}

type ZkillConfig struct {
	BaseURL        string `json:"base_url" envconfig:"SRP_ZKILL_BASE_URL"`
	TimeoutSeconds int    `json:"timeout_seconds" envconfig:"SRP_ZKILL_TIMEOUT_SECONDS"`
}

// PipelineConfig holds the tunables of the intake and reconciliation run.
type PipelineConfig struct {
	Schedule                 string `json:"schedule" envconfig:"SRP_PIPELINE_SCHEDULE"`
	Queue                    string `json:"queue" envconfig:"SRP_PIPELINE_QUEUE"`
	LeaseTTLSeconds          int    `json:"lease_ttl_seconds" envconfig:"SRP_PIPELINE_LEASE_TTL_SECONDS"`
	HealthCacheTTLSeconds    int    `json:"health_cache_ttl_seconds" envconfig:"SRP_PIPELINE_HEALTH_CACHE_TTL_SECONDS"`
	FleetProximityMinutes    int    `json:"fleet_proximity_minutes" envconfig:"SRP_PIPELINE_FLEET_PROXIMITY_MINUTES"`
	DefaultFleetDurationMins int    `json:"default_fleet_duration_minutes" envconfig:"SRP_PIPELINE_DEFAULT_FLEET_DURATION_MINUTES"`
	MailWorkers              int    `json:"mail_workers" envconfig:"SRP_PIPELINE_MAIL_WORKERS"`
	DrainBatchSize           int    `json:"drain_batch_size" envconfig:"SRP_PIPELINE_DRAIN_BATCH_SIZE"`
	BackoffInitialSeconds    int    `json:"backoff_initial_seconds" envconfig:"SRP_PIPELINE_BACKOFF_INITIAL_SECONDS"`
	BackoffMaxSeconds        int    `json:"backoff_max_seconds" envconfig:"SRP_PIPELINE_BACKOFF_MAX_SECONDS"`
	ReconcileLookbackDays    int    `json:"reconcile_lookback_days" envconfig:"SRP_PIPELINE_RECONCILE_LOOKBACK_DAYS"`
	MonitoringPort           string `json:"monitoring_port" envconfig:"SRP_PIPELINE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"SRP_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"SRP_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"SRP_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"SRP_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url" envconfig:"SRP_WEBHOOK_URL"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName          string           `json:"project_name" envconfig:"SRP_PROJECT_NAME"`
	Server               ServerConfig     `json:"server"`
	DataSource           DataSourceConfig `json:"data_source"`
	Redis                RedisConfig      `json:"redis"`
	Esi                  EsiConfig        `json:"esi"`
	Zkill                ZkillConfig      `json:"zkill"`
	Pipeline             PipelineConfig   `json:"pipeline"`
	Notification         Notification     `json:"notification"`
	RateLimit            RateLimitConfig  `json:"rate_limit"`
	EnableTelemetry      bool             `json:"enable_telemetry" envconfig:"SRP_ENABLE_TELEMETRY"`
	OtelExporterEndpoint string           `json:"otel_exporter_endpoint" envconfig:"SRP_OTEL_EXPORTER_ENDPOINT"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("srp", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called srp.json with your config ❌")
	}
	return c, nil
}

func defaultInt(value *int, def int) {
	if *value <= 0 {
		*value = def
	}
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "SRP Pipeline"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.Esi.CharacterID == 0 {
		log.Println("Error: ESI character id is empty. It's a required field.")
		return errors.New("esi character id is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Esi.BaseURL = strings.TrimRight(strings.TrimSpace(cnf.Esi.BaseURL), "/")
	cnf.Zkill.BaseURL = strings.TrimRight(strings.TrimSpace(cnf.Zkill.BaseURL), "/")

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Esi.BaseURL == "" {
		cnf.Esi.BaseURL = DEFAULT_ESI_URL
	}
	if cnf.Esi.SSOURL == "" {
		cnf.Esi.SSOURL = DEFAULT_SSO_URL
	}
	if cnf.Esi.UserAgent == "" {
		cnf.Esi.UserAgent = DEFAULT_USER_AGENT
	}
	if cnf.Esi.RequestsPerSecond == nil {
		defaultRPS := 10.0
		cnf.Esi.RequestsPerSecond = &defaultRPS
	}
	defaultInt(&cnf.Esi.TimeoutSeconds, 15)
	defaultInt(&cnf.Esi.Burst, 2*int(*cnf.Esi.RequestsPerSecond))
	defaultInt(&cnf.Esi.WalletDivision, 1)
	defaultInt(&cnf.Esi.MailLookbackDays, 30)

	if cnf.Zkill.BaseURL == "" {
		cnf.Zkill.BaseURL = DEFAULT_ZKILL_URL
	}
	defaultInt(&cnf.Zkill.TimeoutSeconds, 10)

	if cnf.Pipeline.Schedule == "" {
		cnf.Pipeline.Schedule = DEFAULT_SCHEDULE
	}
	if cnf.Pipeline.Queue == "" {
		cnf.Pipeline.Queue = DEFAULT_PIPELINE_QUEUE
	}
	if cnf.Pipeline.MonitoringPort == "" {
		cnf.Pipeline.MonitoringPort = DEFAULT_MONITOR_PORT
	}
	defaultInt(&cnf.Pipeline.LeaseTTLSeconds, 600)
	defaultInt(&cnf.Pipeline.HealthCacheTTLSeconds, 60)
	defaultInt(&cnf.Pipeline.FleetProximityMinutes, 60)
	defaultInt(&cnf.Pipeline.DefaultFleetDurationMins, 240)
	defaultInt(&cnf.Pipeline.MailWorkers, 1)
	defaultInt(&cnf.Pipeline.DrainBatchSize, 50)
	defaultInt(&cnf.Pipeline.BackoffInitialSeconds, 60)
	defaultInt(&cnf.Pipeline.BackoffMaxSeconds, 3600)
	defaultInt(&cnf.Pipeline.ReconcileLookbackDays, 90)

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// LeaseTTL is how long a pipeline run may hold the single-flight lease.
func (p PipelineConfig) LeaseTTL() time.Duration {
	return time.Duration(p.LeaseTTLSeconds) * time.Second
}

func (p PipelineConfig) HealthCacheTTL() time.Duration {
	return time.Duration(p.HealthCacheTTLSeconds) * time.Second
}

func (p PipelineConfig) FleetProximity() time.Duration {
	return time.Duration(p.FleetProximityMinutes) * time.Minute
}

func (p PipelineConfig) DefaultFleetDuration() time.Duration {
	return time.Duration(p.DefaultFleetDurationMins) * time.Minute
}

func (p PipelineConfig) BackoffInitial() time.Duration {
	return time.Duration(p.BackoffInitialSeconds) * time.Second
}

func (p PipelineConfig) BackoffMax() time.Duration {
	return time.Duration(p.BackoffMaxSeconds) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
