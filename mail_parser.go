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
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jerry-enebeli/srp/model"
)

// ErrUnparseableMail is returned when a mail carries no loss reference.
var ErrUnparseableMail = errors.New("unparseable mail")

const maxClaimantNotes = 1000

var (
	killReportPattern  = regexp.MustCompile(`killReport:(\d+):([0-9a-fA-F]+)`)
	esiKillmailPattern = regexp.MustCompile(`/killmails/(\d+)/([0-9a-fA-F]+)/?`)
	zkillPattern       = regexp.MustCompile(`zkillboard\.com/kill/(\d+)/?`)
	shipLinePattern    = regexp.MustCompile(`(?im)^\s*ship\s*[:=\-]\s*(.+?)\s*$`)
	killLinkPattern    = regexp.MustCompile(`(?i)kill:\s*[^()\n]+\(([^()\n]+)\)`)
	polarizedPattern   = regexp.MustCompile(`(?i)\bpolari[sz]ed\b`)
	lineBreakPattern   = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>`)
	tagPattern         = regexp.MustCompile(`<[^>]*>`)
	subjectNoise       = regexp.MustCompile(`(?i)\b(srp|ship replacement|request|loss|lost|claim|reimbursement|polari[sz]ed)\b|[\[\]():#\-]`)
	spacePattern       = regexp.MustCompile(`[ \t]+`)
)

// ParsedMail is the structured content of a loss report mail.
type ParsedMail struct {
	Killmail  model.KillmailRef
	ShipName  string
	Polarized bool
	Notes     string
}

func (p ParsedMail) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Killmail, validation.By(func(value interface{}) error {
			ref, _ := value.(model.KillmailRef)
			if ref.ID <= 0 {
				return errors.New("no killmail reference found")
			}
			return nil
		})),
	)
}

// ParseLossMail extracts the loss reference, the claimed ship and the claimant's notes
// from a mail. In-game kill report links, API killmail URLs and killboard links are
// recognised; killboard links carry no hash.
func ParseLossMail(subject, body string) (*ParsedMail, error) {
	text := stripHTML(body)

	parsed := &ParsedMail{}
	parsed.Killmail = findKillmailRef(body, text)
	parsed.Polarized = polarizedPattern.MatchString(subject) || polarizedPattern.MatchString(text)

	switch {
	case shipLinePattern.MatchString(text):
		parsed.ShipName = shipLinePattern.FindStringSubmatch(text)[1]
	case killLinkPattern.MatchString(text):
		parsed.ShipName = strings.TrimSpace(killLinkPattern.FindStringSubmatch(text)[1])
	default:
		parsed.ShipName = shipFromSubject(subject)
	}

	parsed.Notes = claimantNotes(text)

	if err := parsed.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableMail, err)
	}
	return parsed, nil
}

func findKillmailRef(raw, text string) model.KillmailRef {
	for _, src := range []string{raw, text} {
		if m := killReportPattern.FindStringSubmatch(src); m != nil {
			return newRef(m[1], m[2])
		}
		if m := esiKillmailPattern.FindStringSubmatch(src); m != nil {
			return newRef(m[1], m[2])
		}
	}
	for _, src := range []string{raw, text} {
		if m := zkillPattern.FindStringSubmatch(src); m != nil {
			return newRef(m[1], "")
		}
	}
	return model.KillmailRef{}
}

func newRef(id, hash string) model.KillmailRef {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return model.KillmailRef{}
	}
	return model.KillmailRef{ID: n, Hash: strings.ToLower(hash)}
}

// stripHTML turns a mail body into plain text, keeping line breaks.
func stripHTML(body string) string {
	text := lineBreakPattern.ReplaceAllString(body, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(spacePattern.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func shipFromSubject(subject string) string {
	name := subjectNoise.ReplaceAllString(subject, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(name, " "))
}

// claimantNotes is the mail text without reference lines, truncated.
func claimantNotes(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		switch {
		case killReportPattern.MatchString(line), esiKillmailPattern.MatchString(line),
			zkillPattern.MatchString(line), shipLinePattern.MatchString(line), killLinkPattern.MatchString(line):
			continue
		}
		kept = append(kept, line)
	}
	notes := strings.TrimSpace(strings.Join(kept, "\n"))
	if utf8.RuneCountInString(notes) > maxClaimantNotes {
		notes = string([]rune(notes)[:maxClaimantNotes])
	}
	return notes
}
