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

// Package zkill reads kill summaries from the zKillboard aggregator.
package zkill

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/internal/request"
	"github.com/shopspring/decimal"
)

// ErrKillNotFound is returned when the aggregator does not know the kill.
var ErrKillNotFound = errors.New("zkill: kill not found")

// Summary is the aggregator's metadata for a kill.
type Summary struct {
	LocationID     int64           `json:"locationID"`
	Hash           string          `json:"hash"`
	FittedValue    decimal.Decimal `json:"fittedValue"`
	DroppedValue   decimal.Decimal `json:"droppedValue"`
	DestroyedValue decimal.Decimal `json:"destroyedValue"`
	TotalValue     decimal.Decimal `json:"totalValue"`
	Points         int             `json:"points"`
	NPC            bool            `json:"npc"`
	Solo           bool            `json:"solo"`
	Awox           bool            `json:"awox"`
}

// Kill pairs a killmail id with its summary.
type Kill struct {
	KillmailID int64   `json:"killmail_id"`
	Zkb        Summary `json:"zkb"`
}

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

func NewClient(cnf config.ZkillConfig, userAgent string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cnf.TimeoutSeconds) * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cnf.BaseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return backoff.WithMaxRetries(b, 2)
		},
	}
}

// GetKill fetches the summary of a single kill.
func (c *Client) GetKill(ctx context.Context, killmailID int64) (*Kill, error) {
	url := fmt.Sprintf("%s/killID/%d/", c.baseURL, killmailID)

	var kills []Kill
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		kills = nil
		_, err = request.Call(c.httpClient, req, &kills)
		var statusErr *request.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return nil, fmt.Errorf("fetching zkill %d: %w", killmailID, err)
	}

	for i := range kills {
		if kills[i].KillmailID == killmailID {
			return &kills[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrKillNotFound, killmailID)
}
