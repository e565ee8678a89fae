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
	"errors"
	"testing"
	"time"

	"github.com/jerry-enebeli/srp/internal/esi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestEvaluateRoutes(t *testing.T) {
	routes := healthyRoutes()
	routes[0].Status = "red"
	routes[2].Status = "yellow"
	routes = routes[:len(routes)-1]

	status := evaluateRoutes(routes)
	assert.False(t, status.Healthy)
	assert.Equal(t, []string{"GET /characters/{character_id}/mail/ is red"}, status.Issues)
	assert.Contains(t, status.Warnings, "POST /characters/{character_id}/mail/ is yellow")
	assert.Contains(t, status.Warnings, "GET /corporations/{corporation_id}/wallets/{division}/journal/ missing from status feed")
}

func TestEvaluateRoutes_Recovering(t *testing.T) {
	routes := healthyRoutes()
	routes[3].Status = "recovering"
	status := evaluateRoutes(routes)
	assert.False(t, status.Healthy)
	assert.Len(t, status.Issues, 1)
}

func TestCheckHealth_Healthy(t *testing.T) {
	ts := newTestSRP(t)
	ts.api.On("Status", mock.Anything).Return(healthyRoutes(), nil).Once()

	status := ts.CheckHealth(context.Background())
	assert.True(t, status.Healthy)
	assert.False(t, status.FromCache)
	assert.Empty(t, status.Issues)
	ts.api.AssertExpectations(t)
}

func TestCheckHealth_CachedWithinTTL(t *testing.T) {
	ts := newTestSRP(t)
	ts.api.On("Status", mock.Anything).Return(healthyRoutes(), nil).Twice()

	first := ts.CheckHealth(context.Background())
	assert.False(t, first.FromCache)

	ts.advance(30 * time.Second)
	second := ts.CheckHealth(context.Background())
	assert.True(t, second.FromCache)
	assert.True(t, second.Healthy)
	ts.api.AssertNumberOfCalls(t, "Status", 1)

	ts.advance(time.Minute)
	third := ts.CheckHealth(context.Background())
	assert.False(t, third.FromCache)
	ts.api.AssertNumberOfCalls(t, "Status", 2)
}

func TestCheckHealth_FeedDownUsesLastKnown(t *testing.T) {
	ts := newTestSRP(t)
	ts.api.On("Status", mock.Anything).Return(healthyRoutes(), nil).Once()
	ts.api.On("Status", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	ts.CheckHealth(context.Background())
	ts.advance(5 * time.Minute)

	status := ts.CheckHealth(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.FromCache)
	assert.Len(t, status.Warnings, 1)
	assert.Contains(t, status.Warnings[0], "status feed unavailable")
}

func TestCheckHealth_FeedDownWithoutHistory(t *testing.T) {
	ts := newTestSRP(t)
	ts.api.On("Status", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	status := ts.CheckHealth(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, []string{"status feed unavailable"}, status.Issues)
}

func TestCheckHealth_UnhealthyIsCached(t *testing.T) {
	ts := newTestSRP(t)
	routes := healthyRoutes()
	routes[1].Status = "down"
	ts.api.On("Status", mock.Anything).Return(routes, nil).Once()

	first := ts.CheckHealth(context.Background())
	assert.False(t, first.Healthy)

	second := ts.CheckHealth(context.Background())
	assert.False(t, second.Healthy)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Issues, second.Issues)
	ts.api.AssertNumberOfCalls(t, "Status", 1)
}

var _ GameAPI = (*esi.Client)(nil)
