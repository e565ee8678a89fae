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
	"sort"
	"strings"
	"time"

	"github.com/jerry-enebeli/srp/database"
	"github.com/jerry-enebeli/srp/internal/esi"
	"github.com/jerry-enebeli/srp/model"
	"github.com/sirupsen/logrus"
	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const (
	skipUnparseable       = "unparseable"
	skipDuplicateKillmail = "duplicate killmail"
	errMailNotFound       = "mail not found"

	// maxShipNameDistance is the largest edit distance accepted when matching a claimed
	// ship name against configured hulls.
	maxShipNameDistance = 2

	// maxHeaderPages bounds the mailbox walk in case the API keeps returning old pages.
	maxHeaderPages = 50
)

// mailRun holds what every worker of one mailbox pass shares.
type mailRun struct {
	token   *model.ServiceToken
	report  *model.RunReport
	configs []model.ShipTypeConfig
}

// ProcessMailbox examines every recent mail not yet processed and records one outcome
// per mail. Per-mail failures go to the report; only failures that stop the whole pass
// are returned.
func (s *SRP) ProcessMailbox(ctx context.Context, token *model.ServiceToken, report *model.RunReport) error {
	ctx, span := otel.Tracer("Mail fetcher").Start(ctx, "Processing mailbox")
	defer span.End()

	headers, err := s.fetchRecentMailHeaders(ctx, token)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(headers))
	for _, h := range headers {
		ids = append(ids, h.MailID)
	}
	processed, err := s.datasource.GetProcessedMailIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading processed mails: %w", err)
	}

	pending := headers[:0]
	for _, h := range headers {
		if !processed[h.MailID] {
			pending = append(pending, h)
		}
	}
	report.MailsSeen = len(pending)
	if len(pending) == 0 {
		return nil
	}

	s.resolveSenderNames(ctx, pending)

	configs, err := s.datasource.GetShipTypeConfigs(ctx)
	if err != nil {
		return fmt.Errorf("loading ship type configs: %w", err)
	}

	run := &mailRun{token: token, report: report, configs: configs}

	workers := s.config.Pipeline.MailWorkers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range pending {
		header := pending[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			s.processMail(gctx, run, header)
			return nil
		})
	}
	return g.Wait()
}

// fetchRecentMailHeaders walks the mailbox newest to oldest until mails fall outside the
// lookback window. Mails sent by the service identity are dropped.
func (s *SRP) fetchRecentMailHeaders(ctx context.Context, token *model.ServiceToken) ([]model.MailHeader, error) {
	cutoff := s.now().AddDate(0, 0, -s.config.Esi.MailLookbackDays)

	var (
		headers    []model.MailHeader
		lastMailID int64
	)
	for page := 0; page < maxHeaderPages; page++ {
		batch, err := s.esi.GetMailHeaders(ctx, token.AccessToken, token.CharacterID, lastMailID)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		reachedCutoff := false
		for _, h := range batch {
			if lastMailID == 0 || h.MailID < lastMailID {
				lastMailID = h.MailID
			}
			if h.Timestamp.Before(cutoff) {
				reachedCutoff = true
				continue
			}
			if h.From == token.CharacterID {
				continue
			}
			headers = append(headers, h)
		}
		if reachedCutoff {
			break
		}
	}

	sort.Slice(headers, func(i, j int) bool { return headers[i].MailID < headers[j].MailID })
	return headers, nil
}

// resolveSenderNames fills SenderName on the headers. Lookup failures leave names empty.
func (s *SRP) resolveSenderNames(ctx context.Context, headers []model.MailHeader) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, h := range headers {
		if !seen[h.From] {
			seen[h.From] = true
			ids = append(ids, h.From)
		}
	}

	names, err := s.esi.ResolveIDs(ctx, ids)
	if err != nil {
		logrus.WithError(err).Warn("resolving mail sender names")
		return
	}
	byID := make(map[int64]string, len(names))
	for _, n := range names {
		byID[n.ID] = n.Name
	}
	for i := range headers {
		headers[i].SenderName = byID[headers[i].From]
	}
}

// processMail runs one mail through parse, enrich, decide and record.
func (s *SRP) processMail(ctx context.Context, run *mailRun, header model.MailHeader) {
	logger := logrus.WithFields(logrus.Fields{"mail_id": header.MailID, "from": header.From})

	outcome := &model.MailOutcome{
		Mail: model.ProcessedMail{
			MailID:     header.MailID,
			SenderID:   header.From,
			SenderName: header.SenderName,
			Subject:    header.Subject,
			ReceivedAt: header.Timestamp,
		},
	}

	mail, err := s.esi.GetMail(ctx, run.token.AccessToken, run.token.CharacterID, header.MailID)
	switch {
	case errors.Is(err, esi.ErrNotFound):
		outcome.Mail.Status = model.MailError
		outcome.Mail.ErrorDetail = errMailNotFound
		s.recordOutcome(ctx, run, outcome)
		return
	case err != nil:
		s.noteRateLimit("esi", err)
		logger.WithError(err).Warn("fetching mail body")
		run.report.AddMailError(header.MailID, "fetch", err)
		return
	}

	parsed, err := ParseLossMail(header.Subject, mail.Body)
	if err != nil {
		logger.WithError(err).Info("skipping mail without loss reference")
		outcome.Mail.Status = model.MailSkipped
		outcome.Mail.ErrorDetail = skipUnparseable
		s.recordOutcome(ctx, run, outcome)
		return
	}

	exists, err := s.datasource.ClaimExistsForKillmail(ctx, parsed.Killmail.ID)
	if err != nil {
		run.report.AddMailError(header.MailID, "store", err)
		return
	}
	if exists {
		outcome.Mail.Status = model.MailSkipped
		outcome.Mail.ErrorDetail = skipDuplicateKillmail
		s.recordOutcome(ctx, run, outcome)
		return
	}

	enriched, err := s.Enrich(ctx, parsed.Killmail)
	if err != nil && !errors.Is(err, ErrEnrichment) {
		run.report.AddMailError(header.MailID, "enrich", err)
		return
	}

	claim := s.buildClaim(ctx, run, header, parsed, enriched)

	var fleets []model.Fleet
	if !claim.LossTime.IsZero() {
		window := s.config.Pipeline.FleetProximity()
		fleets, err = s.datasource.GetFleetsBetween(ctx,
			claim.LossTime.Add(-window-s.config.Pipeline.DefaultFleetDuration()-24*time.Hour),
			claim.LossTime.Add(window))
		if err != nil {
			run.report.AddMailError(header.MailID, "store", err)
			return
		}
	}

	config := findConfigByID(run.configs, claim.ShipTypeID)
	decision := Decide(DecisionInput{
		ShipTypeID:   claim.ShipTypeID,
		ShipTypeName: claim.ShipTypeName,
		LossTime:     claim.LossTime,
		Polarized:    claim.IsPolarized,
		Config:       config,
		Fleets:       fleets,
		Policy:       s.decisionPolicy(),
	})
	now := s.now()
	ApplyDecision(claim, decision, PipelineProcessor, now)

	outcome.Mail.Status = model.MailCreated
	outcome.Claim = claim
	if decision.Notify != "" {
		outcome.Notification = model.NewNotification(decision.Notify, claim, decision.Reason, now)
	}

	if s.recordOutcome(ctx, run, outcome) {
		s.metrics.Decision(string(claim.Status), decision.Auto)
		logger.WithFields(logrus.Fields{
			"claim_id":    claim.ID,
			"killmail_id": parsed.Killmail.ID,
			"status":      claim.Status,
		}).Info("claim created from mail")
	}
}

// buildClaim assembles a claim from the parsed mail and the enrichment result, resolving
// the ship type and collecting validation warnings.
func (s *SRP) buildClaim(ctx context.Context, run *mailRun, header model.MailHeader, parsed *ParsedMail, enriched *model.EnrichedKillmail) *model.Claim {
	killmailID := parsed.Killmail.ID
	mailID := header.MailID
	claim := &model.Claim{
		CharacterID:        header.From,
		CharacterName:      header.SenderName,
		KillmailID:         &killmailID,
		KillmailHash:       enriched.KillmailHash,
		ShipTypeID:         enriched.ShipTypeID,
		SolarSystemID:      enriched.SolarSystemID,
		LossTime:           enriched.KillmailTime,
		IsPolarized:        parsed.Polarized,
		KillmailValue:      enriched.TotalValue,
		Status:             model.ClaimPending,
		SourceMailID:       &mailID,
		ClaimantNotes:      parsed.Notes,
		ValidationWarnings: append([]string{}, enriched.Warnings...),
		EnrichmentError:    enriched.EnrichmentError,
	}

	claimed := s.resolveShipName(ctx, run.configs, parsed.ShipName)
	switch {
	case claim.ShipTypeID == 0 && claimed != nil:
		claim.ShipTypeID = claimed.TypeID
		claim.ShipTypeName = claimed.TypeName
	case claim.ShipTypeID != 0 && claimed != nil && claimed.TypeID != claim.ShipTypeID:
		claim.ValidationWarnings = model.AppendWarning(claim.ValidationWarnings,
			fmt.Sprintf("claimed ship %q does not match the killmail", parsed.ShipName))
	}

	if config := findConfigByID(run.configs, claim.ShipTypeID); config != nil {
		claim.ShipTypeName = config.TypeName
		claim.ShipGroup = config.GroupName
	} else if claim.ShipTypeID != 0 && claim.ShipTypeName == "" {
		info, err := s.esi.GetType(ctx, claim.ShipTypeID)
		if err != nil {
			s.noteRateLimit("esi", err)
			claim.ValidationWarnings = model.AppendWarning(claim.ValidationWarnings, "ship type name lookup failed")
		} else {
			claim.ShipTypeName = info.Name
		}
	}
	if claim.ShipTypeName == "" {
		claim.ShipTypeName = parsed.ShipName
	}

	if enriched.VictimCharacterID != 0 && enriched.VictimCharacterID != header.From {
		claim.ValidationWarnings = model.AppendWarning(claim.ValidationWarnings,
			"killmail victim does not match the mail sender")
	}
	return claim
}

// shipTypeRef is a resolved hull.
type shipTypeRef struct {
	TypeID   int32
	TypeName string
}

// resolveShipName maps a free text ship name to a type. Configured hulls are tried by
// exact name, then by closest edit distance; the game API name lookup comes last.
func (s *SRP) resolveShipName(ctx context.Context, configs []model.ShipTypeConfig, name string) *shipTypeRef {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	for _, c := range configs {
		if strings.EqualFold(c.TypeName, name) {
			return &shipTypeRef{TypeID: c.TypeID, TypeName: c.TypeName}
		}
	}

	var (
		best     *model.ShipTypeConfig
		bestDist = maxShipNameDistance + 1
	)
	lower := []rune(strings.ToLower(name))
	for i := range configs {
		d := levenshtein.DistanceForStrings(lower, []rune(strings.ToLower(configs[i].TypeName)), levenshtein.DefaultOptionsWithSub)
		if d < bestDist {
			best, bestDist = &configs[i], d
		}
	}
	if best != nil {
		return &shipTypeRef{TypeID: best.TypeID, TypeName: best.TypeName}
	}

	resolved, err := s.esi.ResolveNames(ctx, []string{name})
	if err != nil {
		s.noteRateLimit("esi", err)
		logrus.WithField("ship_name", name).WithError(err).Warn("resolving ship name")
		return nil
	}
	if len(resolved.InventoryTypes) == 0 {
		return nil
	}
	t := resolved.InventoryTypes[0]
	return &shipTypeRef{TypeID: int32(t.ID), TypeName: t.Name}
}

func findConfigByID(configs []model.ShipTypeConfig, typeID int32) *model.ShipTypeConfig {
	if typeID == 0 {
		return nil
	}
	for i := range configs {
		if configs[i].TypeID == typeID {
			return &configs[i]
		}
	}
	return nil
}

func (s *SRP) decisionPolicy() DecisionPolicy {
	return DecisionPolicy{
		ProximityWindow:      s.config.Pipeline.FleetProximity(),
		DefaultFleetDuration: s.config.Pipeline.DefaultFleetDuration(),
	}
}

// recordOutcome persists the outcome and counts it. A claim for the same killmail created
// by a concurrent worker turns the outcome into a duplicate skip.
func (s *SRP) recordOutcome(ctx context.Context, run *mailRun, outcome *model.MailOutcome) bool {
	outcome.Mail.ProcessedAt = s.now()

	err := s.datasource.RecordMailOutcome(ctx, outcome)
	if errors.Is(err, database.ErrDuplicateKillmail) {
		outcome.Claim = nil
		outcome.Notification = nil
		outcome.Mail.Status = model.MailSkipped
		outcome.Mail.ErrorDetail = skipDuplicateKillmail
		err = s.datasource.RecordMailOutcome(ctx, outcome)
	}
	switch {
	case errors.Is(err, database.ErrAlreadyProcessed):
		return false
	case err != nil:
		logrus.WithField("mail_id", outcome.Mail.MailID).WithError(err).Error("recording mail outcome")
		run.report.AddMailError(outcome.Mail.MailID, "store", err)
		return false
	}

	run.report.AddOutcome(outcome)
	s.metrics.MailRecorded(string(outcome.Mail.Status))
	return outcome.Claim != nil
}
