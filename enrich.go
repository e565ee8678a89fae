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
	"fmt"
	"net/http"
	"strings"

	"github.com/jerry-enebeli/srp/internal/esi"
	"github.com/jerry-enebeli/srp/internal/request"
	"github.com/jerry-enebeli/srp/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// ErrEnrichment is returned when a killmail cannot be looked up at all.
var ErrEnrichment = errors.New("killmail enrichment failed")

// Enrich resolves a killmail reference through the killboard aggregator and then the game
// API. The result is never nil: when only part of the data could be obtained it carries
// EnrichmentError. An error is returned only when no hash is known, since the game API
// cannot be queried without one.
func (s *SRP) Enrich(ctx context.Context, ref model.KillmailRef) (*model.EnrichedKillmail, error) {
	ctx, span := otel.Tracer("Enricher").Start(ctx, "Enriching killmail")
	defer span.End()

	result := &model.EnrichedKillmail{
		KillmailID:   ref.ID,
		KillmailHash: ref.Hash,
		Warnings:     []string{},
	}
	var problems []string

	kill, zkErr := s.zkill.GetKill(ctx, ref.ID)
	if zkErr != nil {
		s.noteRateLimit("zkill", zkErr)
		logrus.WithField("killmail_id", ref.ID).WithError(zkErr).Warn("killboard lookup failed")
		problems = append(problems, fmt.Sprintf("killboard lookup failed: %v", zkErr))
	} else {
		zkb := kill.Zkb
		switch {
		case result.KillmailHash == "":
			result.KillmailHash = strings.ToLower(zkb.Hash)
		case zkb.Hash != "" && !strings.EqualFold(zkb.Hash, result.KillmailHash):
			result.Warnings = model.AppendWarning(result.Warnings, "killmail hash in mail does not match killboard")
		}
		result.TotalValue = zkb.TotalValue
		result.FittedValue = zkb.FittedValue
		result.NPC = zkb.NPC
		result.Solo = zkb.Solo
	}

	if result.KillmailHash == "" {
		result.EnrichmentError = strings.Join(append(problems, "no killmail hash available"), "; ")
		span.RecordError(ErrEnrichment)
		return result, fmt.Errorf("%w: killmail %d has no hash", ErrEnrichment, ref.ID)
	}

	km, esiErr := s.esi.GetKillmail(ctx, ref.ID, result.KillmailHash)
	if esiErr != nil {
		s.noteRateLimit("esi", esiErr)
		logrus.WithField("killmail_id", ref.ID).WithError(esiErr).Warn("game data lookup failed")
		result.EnrichmentError = strings.Join(append(problems, fmt.Sprintf("game data lookup failed: %v", esiErr)), "; ")
		return result, nil
	}

	result.KillmailTime = km.KillmailTime
	result.SolarSystemID = km.SolarSystemID
	result.VictimCharacterID = km.Victim.CharacterID
	result.ShipTypeID = km.Victim.ShipTypeID
	// with game data present a failed killboard lookup only costs the value estimate
	for _, p := range problems {
		result.Warnings = model.AppendWarning(result.Warnings, p)
	}
	return result, nil
}

func (s *SRP) noteRateLimit(upstream string, err error) {
	var statusErr *request.StatusError
	if errors.Is(err, esi.ErrRateLimited) || (errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests) {
		s.metrics.RateLimited(upstream)
	}
}
