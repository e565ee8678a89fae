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

	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/model"
	"go.opentelemetry.io/otel"
)

func (d Datasource) GetServiceToken(ctx context.Context, characterID int64) (*model.ServiceToken, error) {
	ctx, span := otel.Tracer("Tokens").Start(ctx, "Fetching service token")
	defer span.End()

	token := model.ServiceToken{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT character_id, character_name, corporation_id, refresh_token, access_token, expires_at, updated_at
		FROM srp.service_tokens
		WHERE character_id = $1
	`, characterID).Scan(&token.CharacterID, &token.CharacterName, &token.CorporationID, &token.RefreshToken,
		&token.AccessToken, &token.ExpiresAt, &token.UpdatedAt)
	if err != nil {
		return nil, mapError(err, "service token")
	}
	return &token, nil
}

// SaveServiceToken upserts the token of the service identity.
func (d Datasource) SaveServiceToken(ctx context.Context, token *model.ServiceToken) error {
	ctx, span := otel.Tracer("Tokens").Start(ctx, "Saving service token")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO srp.service_tokens (
			character_id, character_name, corporation_id, refresh_token, access_token, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (character_id) DO UPDATE SET
			character_name = EXCLUDED.character_name,
			corporation_id = EXCLUDED.corporation_id,
			refresh_token = EXCLUDED.refresh_token,
			access_token = EXCLUDED.access_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`, token.CharacterID, token.CharacterName, token.CorporationID, token.RefreshToken, token.AccessToken, token.ExpiresAt)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save service token", err)
	}
	return nil
}
