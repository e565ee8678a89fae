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
	"net/url"
	"strconv"
	"time"

	"github.com/jerry-enebeli/srp/model"
	"github.com/shopspring/decimal"
)

type journalEntryResponse struct {
	ID            int64           `json:"id"`
	Date          time.Time       `json:"date"`
	RefType       string          `json:"ref_type"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	FirstPartyID  int64           `json:"first_party_id"`
	SecondPartyID int64           `json:"second_party_id"`
	Reason        string          `json:"reason"`
	Description   string          `json:"description"`
}

// GetWalletJournal fetches one page (1-based) of a corporation wallet division journal,
// newest first. It also returns the total page count advertised by the API.
func (c *Client) GetWalletJournal(ctx context.Context, token string, corporationID int64, division, page int) ([]model.WalletJournalEntry, int, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	var rows []journalEntryResponse
	resp, err := c.do(ctx, call{
		method: http.MethodGet,
		url:    c.endpoint(fmt.Sprintf("/corporations/%d/wallets/%d/journal/", corporationID, division), query),
		token:  token,
		out:    &rows,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fetching wallet journal page %d: %w", page, err)
	}

	pages := 1
	if resp != nil {
		if n, convErr := strconv.Atoi(resp.Header.Get("X-Pages")); convErr == nil && n > 0 {
			pages = n
		}
	}

	entries := make([]model.WalletJournalEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, model.WalletJournalEntry{
			ID:            r.ID,
			Date:          r.Date,
			RefType:       r.RefType,
			Amount:        r.Amount,
			Balance:       r.Balance,
			FirstPartyID:  r.FirstPartyID,
			SecondPartyID: r.SecondPartyID,
			Reason:        r.Reason,
			Description:   r.Description,
		})
	}
	return entries, pages, nil
}
