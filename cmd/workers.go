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
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/jerry-enebeli/srp"
	"github.com/jerry-enebeli/srp/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
	"go.opentelemetry.io/otel"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// processPipelineRun runs the pipeline for a task popped from the Redis queue.
func (b *srpInstance) processPipelineRun(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("srp.pipeline.worker").Start(ctx, "Process Pipeline Run From Redis Queue")
	defer span.End()

	return b.srp.HandlePipelineRun(ctx, t)
}

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	opt, err := srp.RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}

	return asynq.NewServer(opt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{conf.Pipeline.Queue: 1},
	}), nil
}

// initializeScheduler registers the periodic pipeline run. Tasks are unique for the
// lease TTL so a slow run never stacks up a backlog.
func initializeScheduler(conf *config.Configuration) (*asynq.Scheduler, error) {
	opt, err := srp.RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logrus.WithError(err).Debug("scheduled pipeline run not enqueued")
			}
		},
	})

	task, err := srp.NewPipelineRunTask("scheduler", conf.Pipeline.Queue, conf.Pipeline.LeaseTTL())
	if err != nil {
		return nil, err
	}
	entryID, err := scheduler.Register(conf.Pipeline.Schedule, task)
	if err != nil {
		return nil, fmt.Errorf("registering pipeline schedule %q: %w", conf.Pipeline.Schedule, err)
	}
	logrus.WithFields(logrus.Fields{"entry_id": entryID, "schedule": conf.Pipeline.Schedule}).Info("pipeline run scheduled")
	return scheduler, nil
}

func startMonitoring(conf *config.Configuration) {
	opt, err := srp.RedisClientOpt(conf)
	if err != nil {
		logrus.WithError(err).Warn("queue monitoring disabled")
		return
	}
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: opt,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Pipeline.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
}

// workerCommands defines the "workers" command. It runs the scheduler and the worker
// that executes pipeline runs.
func workerCommands(b *srpInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start srp workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := b.cnf

			shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			srv, err := initializeWorkerServer(conf)
			if err != nil {
				log.Fatal(err)
			}

			scheduler, err := initializeScheduler(conf)
			if err != nil {
				log.Fatal(err)
			}
			if err := scheduler.Start(); err != nil {
				log.Fatalf("could not start scheduler: %v", err)
			}
			defer scheduler.Shutdown()

			mux := asynq.NewServeMux()
			mux.HandleFunc(srp.TypePipelineRun, b.processPipelineRun)

			startMonitoring(conf)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}

// runCommands defines "run", a single pipeline invocation that prints its report.
// The exit status is zero even when stages failed; the report carries the failures.
func runCommands(b *srpInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the srp pipeline once and print the report",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			defer b.redis.Close()

			report := b.srp.RunOnce(ctx)
			data, err := json.MarshalIndent(report, "", "    ")
			if err != nil {
				log.Fatalf("Error printing report: %v\n", err)
			}
			fmt.Println(string(data))
		},
	}

	return cmd
}
