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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/srp/config"
	"github.com/stretchr/testify/assert"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/claims", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"healthy": true})
	})
	return r
}

func TestSecretKeyAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		header     string
		wantStatus int
	}{
		{name: "valid key", secret: "s3cret", header: "s3cret", wantStatus: http.StatusOK},
		{name: "missing key", secret: "s3cret", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong key", secret: "s3cret", header: "guess", wantStatus: http.StatusUnauthorized},
		{name: "not configured", secret: "", header: "anything", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(SecretKeyAuthMiddleware(tt.secret))
			req := httptest.NewRequest(http.MethodGet, "/claims", nil)
			if tt.header != "" {
				req.Header.Set(SecretKeyHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rps := 1.0
	burst := 1
	cleanup := 60
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{
		RequestsPerSecond:  &rps,
		Burst:              &burst,
		CleanupIntervalSec: &cleanup,
	}}
	r := newRouter(RateLimitMiddleware(conf))

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/claims", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/claims", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	r := newRouter(RateLimitMiddleware(&config.Configuration{}))
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/claims", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func fromClient(path, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimitMiddleware_PerClientBuckets(t *testing.T) {
	rps := 0.5
	burst := 1
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{RequestsPerSecond: &rps, Burst: &burst}}
	r := newRouter(RateLimitMiddleware(conf))

	first := httptest.NewRecorder()
	r.ServeHTTP(first, fromClient("/claims", "10.0.0.1:4000"))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	throttled := httptest.NewRecorder()
	r.ServeHTTP(throttled, fromClient("/claims", "10.0.0.1:4001"))
	assert.Equal(t, http.StatusTooManyRequests, throttled.Code)
	assert.Equal(t, "2", throttled.Header().Get("Retry-After"))
	assert.Contains(t, throttled.Body.String(), "too many requests")

	other := httptest.NewRecorder()
	r.ServeHTTP(other, fromClient("/claims", "10.0.0.2:4000"))
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimitMiddleware_HealthNotThrottled(t *testing.T) {
	rps := 1.0
	burst := 1
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{RequestsPerSecond: &rps, Burst: &burst}}
	r := newRouter(RateLimitMiddleware(conf))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, fromClient("/health", "10.0.0.1:4000"))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
