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

// ServiceToken is the persisted credential of the mailbox identity.
type ServiceToken struct {
	CharacterID   int64     `json:"character_id"`
	CharacterName string    `json:"character_name"`
	CorporationID int64     `json:"corporation_id"`
	RefreshToken  string    `json:"-"`
	AccessToken   string    `json:"-"`
	ExpiresAt     time.Time `json:"expires_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Valid reports whether the access token can still be used at the given time,
// keeping a one minute safety margin.
func (t *ServiceToken) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Add(time.Minute).Before(t.ExpiresAt)
}
