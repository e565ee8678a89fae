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
	"fmt"
	"strings"
	"time"

	"github.com/jerry-enebeli/srp/internal/esi"
	"github.com/jerry-enebeli/srp/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const (
	healthCacheKey     = "srp:health:status"
	healthLastKnownKey = "srp:health:last_known"
	healthLastKnownTTL = 24 * time.Hour
)

// criticalRoute is a status feed route the pipeline cannot run without.
type criticalRoute struct {
	method string
	route  string
}

var criticalRoutes = []criticalRoute{
	{method: "get", route: "/characters/{character_id}/mail/"},
	{method: "get", route: "/characters/{character_id}/mail/{mail_id}/"},
	{method: "post", route: "/characters/{character_id}/mail/"},
	{method: "post", route: "/universe/ids/"},
	{method: "get", route: "/corporations/{corporation_id}/wallets/{division}/journal/"},
}

func (r criticalRoute) String() string {
	return strings.ToUpper(r.method) + " " + r.route
}

// CheckHealth reports whether the game API is healthy enough to run the pipeline.
// Results are cached for the configured TTL; when the status feed cannot be read the
// last known result is used, and without one the gate is closed.
func (s *SRP) CheckHealth(ctx context.Context) model.HealthStatus {
	ctx, span := otel.Tracer("Health").Start(ctx, "Checking upstream health")
	defer span.End()

	now := s.now()
	ttl := s.config.Pipeline.HealthCacheTTL()

	var cached model.HealthStatus
	if s.getHealth(ctx, healthCacheKey, &cached) && now.Sub(cached.CheckedAt) < ttl {
		cached.FromCache = true
		return cached
	}

	routes, err := s.esi.Status(ctx)
	if err != nil {
		logrus.WithError(err).Warn("status feed unavailable")
		var lastKnown model.HealthStatus
		if s.getHealth(ctx, healthLastKnownKey, &lastKnown) && now.Sub(lastKnown.CheckedAt) < healthLastKnownTTL {
			lastKnown.FromCache = true
			lastKnown.Warnings = append(lastKnown.Warnings,
				fmt.Sprintf("status feed unavailable, using result from %s", lastKnown.CheckedAt.UTC().Format(time.RFC3339)))
			return lastKnown
		}
		return model.HealthStatus{
			Healthy:   false,
			Issues:    []string{"status feed unavailable"},
			Warnings:  []string{},
			CheckedAt: now,
		}
	}

	status := evaluateRoutes(routes)
	status.CheckedAt = now
	s.setHealth(ctx, healthCacheKey, status, ttl)
	s.setHealth(ctx, healthLastKnownKey, status, healthLastKnownTTL)
	return status
}

// evaluateRoutes applies the gate rules to a status feed snapshot.
func evaluateRoutes(routes []esi.RouteStatus) model.HealthStatus {
	byRoute := make(map[string]string, len(routes))
	for _, r := range routes {
		byRoute[strings.ToLower(r.Method)+" "+r.Route] = strings.ToLower(r.Status)
	}

	status := model.HealthStatus{Issues: []string{}, Warnings: []string{}}
	for _, cr := range criticalRoutes {
		state, ok := byRoute[cr.method+" "+cr.route]
		switch {
		case !ok:
			status.Warnings = append(status.Warnings, fmt.Sprintf("%s missing from status feed", cr))
		case state == "red" || state == "down" || state == "recovering":
			status.Issues = append(status.Issues, fmt.Sprintf("%s is %s", cr, state))
		case state == "yellow" || state == "degraded":
			status.Warnings = append(status.Warnings, fmt.Sprintf("%s is %s", cr, state))
		}
	}
	status.Healthy = len(status.Issues) == 0
	return status
}

func (s *SRP) getHealth(ctx context.Context, key string, out *model.HealthStatus) bool {
	if s.cache == nil {
		return false
	}
	return s.cache.Get(ctx, key, out) == nil
}

func (s *SRP) setHealth(ctx context.Context, key string, status model.HealthStatus, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, status, ttl); err != nil {
		logrus.WithError(err).Warn("failed to cache health status")
	}
}
