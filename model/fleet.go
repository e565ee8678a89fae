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

package model

import "time"

type FleetStatus string

const (
	FleetScheduled FleetStatus = "scheduled"
	FleetActive    FleetStatus = "active"
	FleetCompleted FleetStatus = "completed"
	FleetCancelled FleetStatus = "cancelled"
)

// Fleet is a scheduled or running fleet op, used only as decision context.
type Fleet struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      FleetStatus `json:"status"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
}

// Window returns the activity interval of the fleet widened by the proximity window on
// both sides. Fleets without an end time are assumed to last defaultDuration.
func (f Fleet) Window(proximity, defaultDuration time.Duration) (time.Time, time.Time) {
	start := f.ScheduledAt
	if f.StartedAt != nil {
		start = *f.StartedAt
	}
	end := start.Add(defaultDuration)
	if f.EndedAt != nil && f.EndedAt.After(start) {
		end = *f.EndedAt
	}
	return start.Add(-proximity), end.Add(proximity)
}
