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
	"time"

	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const (
	shipTypeConfigsCacheKey = "srp:ship_type_configs"
	shipTypeConfigsCacheTTL = 5 * time.Minute
)

// GetShipTypeConfigs returns all ship type configs, active or not. The list is cached
// when the datasource has a cache.
func (d Datasource) GetShipTypeConfigs(ctx context.Context) ([]model.ShipTypeConfig, error) {
	ctx, span := otel.Tracer("Ship types").Start(ctx, "Fetching ship type configs")
	defer span.End()

	configs := []model.ShipTypeConfig{}
	if d.Cache != nil {
		if err := d.Cache.Get(ctx, shipTypeConfigsCacheKey, &configs); err == nil {
			return configs, nil
		}
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT type_id, type_name, group_name, base_payout, polarized_payout, fc_discretion, active
		FROM srp.ship_type_configs
		ORDER BY type_id
	`)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ship type configs", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cfg model.ShipTypeConfig
		err = rows.Scan(&cfg.TypeID, &cfg.TypeName, &cfg.GroupName, &cfg.BasePayout, &cfg.PolarizedPayout,
			&cfg.FCDiscretion, &cfg.Active)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ship type config", err)
		}
		configs = append(configs, cfg)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ship type configs", err)
	}

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, shipTypeConfigsCacheKey, configs, shipTypeConfigsCacheTTL); err != nil {
			logrus.WithError(err).Warn("failed to cache ship type configs")
		}
	}
	return configs, nil
}
