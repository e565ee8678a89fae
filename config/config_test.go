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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		Redis: RedisConfig{Dns: "localhost:6379"},
		Esi:   EsiConfig{CharacterID: 90000001},
	}
	err := cnf.validateAndAddDefaults()
	assert.EqualError(t, err, "data source DNS is required")

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
		Esi:        EsiConfig{CharacterID: 90000001},
	}
	err = cnf.validateAndAddDefaults()
	assert.EqualError(t, err, "redis DNS is required")

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}
	err = cnf.validateAndAddDefaults()
	assert.EqualError(t, err, "esi character id is required")

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Esi:        EsiConfig{CharacterID: 90000001, BaseURL: "https://esi.example.com/latest/ "},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, "SRP Pipeline", cnf.ProjectName)
	assert.Equal(t, "https://esi.example.com/latest", cnf.Esi.BaseURL)
	assert.Equal(t, DEFAULT_SSO_URL, cnf.Esi.SSOURL)
	assert.Equal(t, DEFAULT_ZKILL_URL, cnf.Zkill.BaseURL)
	assert.Equal(t, 30, cnf.Esi.MailLookbackDays)
	assert.Equal(t, 1, cnf.Esi.WalletDivision)
	assert.Equal(t, 20, cnf.Esi.Burst)
	assert.Equal(t, DEFAULT_SCHEDULE, cnf.Pipeline.Schedule)
	assert.Equal(t, DEFAULT_MONITOR_PORT, cnf.Pipeline.MonitoringPort)
	assert.Equal(t, time.Minute, cnf.Pipeline.HealthCacheTTL())
	assert.Equal(t, 10*time.Minute, cnf.Pipeline.LeaseTTL())
	assert.Equal(t, time.Hour, cnf.Pipeline.FleetProximity())
	assert.Equal(t, 4*time.Hour, cnf.Pipeline.DefaultFleetDuration())
	assert.Equal(t, time.Minute, cnf.Pipeline.BackoffInitial())
	assert.Equal(t, time.Hour, cnf.Pipeline.BackoffMax())
	assert.Nil(t, cnf.RateLimit.RequestsPerSecond)
	assert.Nil(t, cnf.RateLimit.Burst)
}

func TestValidateAndAddDefaults_RateLimit(t *testing.T) {
	rps := 5.0
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Esi:        EsiConfig{CharacterID: 1},
		RateLimit:  RateLimitConfig{RequestsPerSecond: &rps},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	require.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 10, *cnf.RateLimit.Burst)
	assert.Equal(t, 10800, *cnf.RateLimit.CleanupIntervalSec)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "srp.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource:  DataSourceConfig{Dns: "temp-dns"},
		Redis:       RedisConfig{Dns: "temp-redis"},
		Esi:         EsiConfig{CharacterID: 90000001, CorporationID: 98000001},
	}
	require.NoError(t, json.NewEncoder(tmpFile).Encode(sampleConfig))
	tmpFile.Close()

	t.Setenv("SRP_PROJECT_NAME", "Env Project")
	t.Setenv("SRP_PIPELINE_MAIL_WORKERS", "4")

	require.NoError(t, loadConfigFromFile(tmpFile.Name()))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Env Project", loadedConfig.ProjectName)
	assert.Equal(t, "temp-dns", loadedConfig.DataSource.Dns)
	assert.Equal(t, int64(98000001), loadedConfig.Esi.CorporationID)
	assert.Equal(t, 4, loadedConfig.Pipeline.MailWorkers)
}

func TestInitConfig(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "srp.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "InitConfig Test",
		DataSource:  DataSourceConfig{Dns: "init-config-dns"},
		Redis:       RedisConfig{Dns: "localhost:6379"},
		Esi:         EsiConfig{CharacterID: 90000001},
	}
	require.NoError(t, json.NewEncoder(tmpFile).Encode(sampleConfig))
	tmpFile.Close()

	require.NoError(t, InitConfig(tmpFile.Name()))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "InitConfig Test", loadedConfig.ProjectName)
	assert.Equal(t, "init-config-dns", loadedConfig.DataSource.Dns)
}

func TestMockConfig(t *testing.T) {
	MockConfig(&Configuration{ProjectName: "mocked"})
	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "mocked", cnf.ProjectName)
}
