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

import (
	"time"

	"github.com/shopspring/decimal"
)

// KillmailRef identifies a killmail. Hash may be empty when the claimant only
// pasted a killboard link.
type KillmailRef struct {
	ID   int64  `json:"killmail_id"`
	Hash string `json:"killmail_hash"`
}

// EnrichedKillmail is a killmail reference augmented with killboard and game data.
// Fields that could not be obtained are left zero and EnrichmentError explains why.
type EnrichedKillmail struct {
	KillmailID        int64           `json:"killmail_id"`
	KillmailHash      string          `json:"killmail_hash"`
	KillmailTime      time.Time       `json:"killmail_time"`
	SolarSystemID     int32           `json:"solar_system_id"`
	VictimCharacterID int64           `json:"victim_character_id"`
	ShipTypeID        int32           `json:"ship_type_id"`
	ShipTypeName      string          `json:"ship_type_name"`
	TotalValue        decimal.Decimal `json:"total_value"`
	FittedValue       decimal.Decimal `json:"fitted_value"`
	NPC               bool            `json:"npc"`
	Solo              bool            `json:"solo"`
	Warnings          []string        `json:"warnings"`
	EnrichmentError   string          `json:"enrichment_error,omitempty"`
}

// HasGameData reports whether the authoritative game-data lookup succeeded.
func (k *EnrichedKillmail) HasGameData() bool {
	return !k.KillmailTime.IsZero()
}
