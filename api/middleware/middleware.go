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

package middleware

import (
	"crypto/subtle"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/srp/config"
)

// SecretKeyHeader carries the operator secret on every request.
const SecretKeyHeader = "X-SRP-Key"

// Health checks and metric scrapes never count against a client budget.
var unthrottledPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

func newOperatorLimiter(limits config.RateLimitConfig) *limiter.Limiter {
	bucketTTL := time.Hour
	if limits.CleanupIntervalSec != nil {
		bucketTTL = time.Duration(*limits.CleanupIntervalSec) * time.Second
	}
	lmt := tollbooth.NewLimiter(*limits.RequestsPerSecond, &limiter.ExpirableOptions{DefaultExpirationTTL: bucketTTL})
	lmt.SetBurst(*limits.Burst)
	lmt.SetMessage("too many requests, slow down")
	return lmt
}

// RateLimitMiddleware throttles each client address with its own token bucket. It is a
// no-op when no limits are configured.
func RateLimitMiddleware(conf *config.Configuration) gin.HandlerFunc {
	limits := conf.RateLimit
	if limits.RequestsPerSecond == nil || limits.Burst == nil {
		return func(c *gin.Context) { c.Next() }
	}

	lmt := newOperatorLimiter(limits)
	rps := *limits.RequestsPerSecond
	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(1/rps))))

	return func(c *gin.Context) {
		if unthrottledPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		limitErr, remaining := tollbooth.LimitByKeysAndReturn(lmt, []string{c.ClientIP()})
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%.2f", lmt.GetMax()))
		if limitErr != nil {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(limitErr.StatusCode, gin.H{"error": limitErr.Message})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}

// SecretKeyAuthMiddleware rejects requests whose X-SRP-Key does not match the configured secret.
func SecretKeyAuthMiddleware(secretKey string) gin.HandlerFunc {
	expected := []byte(secretKey)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "operator secret is not configured"})
			return
		}

		presented := c.GetHeader(SecretKeyHeader)
		switch {
		case presented == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("missing %s header", SecretKeyHeader)})
		case subtle.ConstantTimeCompare(expected, []byte(presented)) != 1:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator secret does not match"})
		default:
			c.Next()
		}
	}
}
