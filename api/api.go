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

package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/srp"
	"github.com/jerry-enebeli/srp/api/middleware"
	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/model"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Service is the part of the pipeline the API exposes to operators.
type Service interface {
	RunOnce(ctx context.Context) *model.RunReport
	CheckHealth(ctx context.Context) model.HealthStatus
	GetClaim(ctx context.Context, id int64) (*model.Claim, error)
	ListClaims(ctx context.Context, status model.ClaimStatus, limit, offset int) ([]model.Claim, error)
	DecideClaim(ctx context.Context, id int64, action srp.ManualAction, processor, reason string, payout decimal.NullDecimal) (*model.Claim, error)
	ListNotifications(ctx context.Context, limit, offset int) ([]model.NotificationQueueEntry, error)
	ClearNotification(ctx context.Context, id string) error
	ReprocessMail(ctx context.Context, mailID int64) error
}

// RunEnqueuer hands a pipeline run to the workers.
type RunEnqueuer interface {
	EnqueuePipelineRun(ctx context.Context, trigger string) (bool, error)
}

type Api struct {
	srp     Service
	queue   RunEnqueuer
	metrics http.Handler
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/pipeline/run", a.RunPipeline)
	router.GET("/health", a.GetHealth)

	router.GET("/claims", a.ListClaims)
	router.GET("/claims/:id", a.GetClaim)
	router.POST("/claims/:id/approve", a.decide(srp.ActionApprove))
	router.POST("/claims/:id/deny", a.decide(srp.ActionDeny))
	router.POST("/claims/:id/cancel", a.decide(srp.ActionCancel))

	router.GET("/notifications", a.ListNotifications)
	router.DELETE("/notifications/:id", a.ClearNotification)

	router.DELETE("/processed-mails/:id", a.ReprocessMail)

	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics))
	}
	return a.router
}

// NewAPI builds the operator API. queue may be nil, in which case asynchronous runs are
// refused; metrics may be nil to leave /metrics unrouted.
func NewAPI(s Service, queue RunEnqueuer, metrics http.Handler, conf *config.Configuration) *Api {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware(conf.Server.SecretKey))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{srp: s, queue: queue, metrics: metrics, router: r}
}
