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

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jerry-enebeli/srp"
	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/database"
	"github.com/jerry-enebeli/srp/internal/cache"
	"github.com/jerry-enebeli/srp/internal/metrics"
	"github.com/jerry-enebeli/srp/internal/notification"
	redis_db "github.com/jerry-enebeli/srp/internal/redis-db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// SRPCli represents the CLI application, encapsulating the root Cobra command.
type SRPCli struct {
	cmd *cobra.Command
}

// srpInstance holds the pipeline service and the runtime configuration shared by all commands.
type srpInstance struct {
	srp     *srp.SRP
	cnf     *config.Configuration
	redis   *redis_db.Redis
	metrics *metrics.Metrics
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the pipeline before any command runs.
func preRun(app *srpInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		if err := setupSRP(app, cnf); err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.cnf = cnf

		return nil
	}
}

// setupSRP connects to Postgres and Redis and wires the pipeline onto them.
func setupSRP(app *srpInstance, cfg *config.Configuration) error {
	redisClient, err := redis_db.NewRedisClient(cfg.Redis.Dns)
	if err != nil {
		return fmt.Errorf("error connecting to redis: %v", err)
	}

	db, err := database.NewDataSource(cfg, cache.NewCache(redisClient.Client(), 0))
	if err != nil {
		return fmt.Errorf("error getting datasource: %v", err)
	}

	m := metrics.New(prometheus.NewRegistry())
	pipeline, err := srp.NewSRP(db, redisClient.Client(), m)
	if err != nil {
		return fmt.Errorf("error creating srp pipeline: %v", err)
	}

	app.srp = pipeline
	app.redis = redisClient
	app.metrics = m
	return nil
}

// NewCLI creates the command-line interface with the server, workers, run and migrate commands.
func NewCLI() *SRPCli {
	var configFile string
	b := &srpInstance{}

	var rootCmd = &cobra.Command{
		Use:   "srp",
		Short: "Ship replacement claim pipeline",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./srp.json", "Configuration file for the srp pipeline")
	rootCmd.PersistentPreRunE = preRun(b, &configFile)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(runCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(configCommands())

	return &SRPCli{cmd: rootCmd}
}

func (w SRPCli) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
