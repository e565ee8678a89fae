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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jerry-enebeli/srp/config"
	redis_db "github.com/jerry-enebeli/srp/internal/redis-db"
	"github.com/sirupsen/logrus"
)

// TypePipelineRun is the task type of a scheduled pipeline run.
const TypePipelineRun = "srp:pipeline_run"

// Queue represents the task queue used to schedule pipeline runs.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	queue     string
	unique    time.Duration
}

// PipelineRunPayload identifies who asked for a run.
type PipelineRunPayload struct {
	Trigger string `json:"trigger"`
}

// RedisClientOpt converts the configured Redis address into asynq connection options.
func RedisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parsing redis url: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Username:  redisOption.Username,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
// - error: An error if the Redis address cannot be parsed.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	opt, err := RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}
	return &Queue{
		Client:    asynq.NewClient(opt),
		Inspector: asynq.NewInspector(opt),
		queue:     conf.Pipeline.Queue,
		unique:    conf.Pipeline.LeaseTTL(),
	}, nil
}

// NewPipelineRunTask builds the task enqueued by the scheduler and by EnqueuePipelineRun.
// Runs are unique for the lease TTL so a slow run is not followed by a backlog.
func NewPipelineRunTask(trigger, queue string, unique time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(PipelineRunPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePipelineRun, payload,
		asynq.Queue(queue),
		asynq.Unique(unique),
		asynq.MaxRetry(0),
	), nil
}

// EnqueuePipelineRun asks the workers for a run. A run that is already queued is not
// duplicated; ok is false in that case.
func (q *Queue) EnqueuePipelineRun(ctx context.Context, trigger string) (bool, error) {
	task, err := NewPipelineRunTask(trigger, q.queue, q.unique)
	if err != nil {
		return false, err
	}
	info, err := q.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logrus.WithFields(logrus.Fields{"task_id": info.ID, "trigger": trigger}).Info("pipeline run enqueued")
	return true, nil
}

func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		return err
	}
	return q.Client.Close()
}

// HandlePipelineRun is the asynq handler of TypePipelineRun. Run failures live in the
// report, so the task itself always succeeds.
func (s *SRP) HandlePipelineRun(ctx context.Context, task *asynq.Task) error {
	var payload PipelineRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.WithError(err).Warn("malformed pipeline run payload")
	}

	report := s.RunOnce(ctx)
	logrus.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"trigger": payload.Trigger,
		"skipped": report.Skipped,
	}).Info("scheduled pipeline run done")
	return nil
}
