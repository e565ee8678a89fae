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

package esi

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type Victim struct {
	CharacterID   int64 `json:"character_id"`
	CorporationID int64 `json:"corporation_id"`
	ShipTypeID    int32 `json:"ship_type_id"`
	DamageTaken   int64 `json:"damage_taken"`
}

type Attacker struct {
	CharacterID    int64   `json:"character_id"`
	ShipTypeID     int32   `json:"ship_type_id"`
	FinalBlow      bool    `json:"final_blow"`
	DamageDone     int64   `json:"damage_done"`
	SecurityStatus float64 `json:"security_status"`
}

// Killmail is the authoritative record of a loss.
type Killmail struct {
	KillmailID    int64      `json:"killmail_id"`
	KillmailTime  time.Time  `json:"killmail_time"`
	SolarSystemID int32      `json:"solar_system_id"`
	Victim        Victim     `json:"victim"`
	Attackers     []Attacker `json:"attackers"`
}

// GetKillmail fetches a killmail by id and hash. A wrong hash yields an error from the API.
func (c *Client) GetKillmail(ctx context.Context, killmailID int64, hash string) (*Killmail, error) {
	var km Killmail
	_, err := c.do(ctx, call{
		method: http.MethodGet,
		url:    c.endpoint(fmt.Sprintf("/killmails/%d/%s/", killmailID, hash), nil),
		out:    &km,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching killmail %d: %w", killmailID, err)
	}
	return &km, nil
}
