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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RunPipeline runs the pipeline once and answers with the run report. Stage failures are
// part of the report, so the status is always 200. With ?async=true the run is handed to
// the workers instead.
func (a Api) RunPipeline(c *gin.Context) {
	if c.Query("async") == "true" {
		if a.queue == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "background workers are not configured"})
			return
		}
		enqueued, err := a.queue.EnqueuePipelineRun(c.Request.Context(), "api")
		if err != nil {
			logrus.WithError(err).Error("enqueueing pipeline run")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"enqueued": enqueued})
		return
	}

	report := a.srp.RunOnce(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

// GetHealth reports the upstream health gate. Unhealthy upstreams answer 503.
func (a Api) GetHealth(c *gin.Context) {
	status := a.srp.CheckHealth(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
