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
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/srp"
	"github.com/jerry-enebeli/srp/api"
	"github.com/jerry-enebeli/srp/config"
	trace "github.com/jerry-enebeli/srp/internal/traces"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

/*
serveTLS starts an HTTPS server with TLS enabled using CertMagic for automatic certificate management.
If no domain is specified, the server will default to running on localhost.
*/
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: "certmagic"}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start HTTPS server: %v", err)
	}

	return nil
}

func initializeRouter(b *srpInstance, queue *srp.Queue) *gin.Engine {
	var enqueuer api.RunEnqueuer
	if queue != nil {
		enqueuer = queue
	}
	return api.NewAPI(b.srp, enqueuer, b.metrics.Handler(), b.cnf).Router()
}

func initializeTracing(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName, cfg.OtelExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func initializeObservability(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}
	return initializeTracing(ctx, cfg)
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

/*
serverCommands returns the Cobra command responsible for starting the operator API.
The async run endpoint is only available when the task queue can be reached.
*/
func serverCommands(b *srpInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start srp server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			shutdown, err := initializeObservability(ctx, b.cnf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			queue, err := srp.NewQueue(b.cnf)
			if err != nil {
				logrus.WithError(err).Warn("task queue unavailable, async runs disabled")
			} else {
				defer queue.Close()
			}

			router := initializeRouter(b, queue)
			if err := startServer(router, b.cnf.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
