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

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"go.opentelemetry.io/otel"
)

// GetFleetsBetween returns fleets whose start (actual, else scheduled) falls in [from, to].
// Callers widen the range by the fleet duration and proximity window they need.
func (d Datasource) GetFleetsBetween(ctx context.Context, from, to time.Time) ([]model.Fleet, error) {
	ctx, span := otel.Tracer("Fleets").Start(ctx, "Fetching fleets in range")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, name, status, scheduled_at, started_at, ended_at
		FROM srp.fleets
		WHERE COALESCE(started_at, scheduled_at) BETWEEN $1 AND $2
		ORDER BY COALESCE(started_at, scheduled_at)
	`, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve fleets", err)
	}
	defer rows.Close()

	fleets := []model.Fleet{}
	for rows.Next() {
		var (
			fleet     model.Fleet
			startedAt sql.NullTime
			endedAt   sql.NullTime
		)
		if err := rows.Scan(&fleet.ID, &fleet.Name, &fleet.Status, &fleet.ScheduledAt, &startedAt, &endedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan fleet", err)
		}
		fleet.StartedAt = timePtr(startedAt)
		fleet.EndedAt = timePtr(endedAt)
		fleets = append(fleets, fleet)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over fleets", err)
	}
	return fleets, nil
}
