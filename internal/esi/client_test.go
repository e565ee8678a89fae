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
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBase      = "https://esi.test/latest"
	testCharacter = int64(90000001)
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewClient(Options{
		BaseURL:    testBase,
		UserAgent:  "srp-test",
		HTTPClient: httpClient,
	}).WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	})
}

func TestNewClient_StatusURL(t *testing.T) {
	c := NewClient(Options{BaseURL: "https://esi.evetech.net/latest/"})
	assert.Equal(t, "https://esi.evetech.net/latest", c.baseURL)
	assert.Equal(t, "https://esi.evetech.net/status.json?version=latest", c.statusURL)
}

func TestStatus(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, "https://esi.test/status.json",
		httpmock.NewStringResponder(http.StatusOK, `[
			{"endpoint":"mail","method":"get","route":"/characters/{character_id}/mail/","status":"green","tags":["Mail"]},
			{"endpoint":"universe","method":"post","route":"/universe/ids/","status":"yellow","tags":["Universe"]}
		]`))

	routes, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "get", routes[0].Method)
	assert.Equal(t, "yellow", routes[1].Status)
}

func TestGetMailHeaders_Paging(t *testing.T) {
	c := newTestClient(t)
	url := testBase + "/characters/90000001/mail/"

	httpmock.RegisterResponderWithQuery(http.MethodGet, url, "last_mail_id=500",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer access", req.Header.Get("Authorization"))
			assert.Equal(t, "srp-test", req.Header.Get("User-Agent"))
			return httpmock.NewStringResponse(http.StatusOK,
				`[{"mail_id":499,"from":95000001,"subject":"SRP Guardian","timestamp":"2024-05-01T18:30:00Z","is_read":false,"labels":[1]}]`), nil
		})

	headers, err := c.GetMailHeaders(context.Background(), "access", testCharacter, 500)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, int64(499), headers[0].MailID)
	assert.Equal(t, int64(95000001), headers[0].From)
	assert.Equal(t, time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC), headers[0].Timestamp)
}

func TestGetMail_NotFound(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBase+"/characters/90000001/mail/7/",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":"Mail not found"}`))

	_, err := c.GetMail(context.Background(), "access", testCharacter, 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestGetMail_RetriesServerErrors(t *testing.T) {
	c := newTestClient(t)
	calls := 0
	httpmock.RegisterResponder(http.MethodGet, testBase+"/characters/90000001/mail/8/",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(http.StatusBadGateway, "bad gateway"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK,
				`{"from":95000001,"subject":"loss","body":"killReport:1:abc","timestamp":"2024-05-01T18:30:00Z","read":true}`), nil
		})

	mail, err := c.GetMail(context.Background(), "access", testCharacter, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(8), mail.MailID)
	assert.Equal(t, "killReport:1:abc", mail.Body)
	assert.True(t, mail.IsRead)
}

func TestSendMail(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBase+"/characters/90000001/mail/",
		func(req *http.Request) (*http.Response, error) {
			var body OutgoingMail
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "character", body.Recipients[0].RecipientType)
			return httpmock.NewStringResponse(http.StatusCreated, `1234`), nil
		})

	id, err := c.SendMail(context.Background(), "access", testCharacter, OutgoingMail{
		Recipients: []Recipient{{RecipientID: 95000001, RecipientType: "character"}},
		Subject:    "SRP approved",
		Body:       "paid soon",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), id)
}

func TestSendMail_StopSpamming(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBase+"/characters/90000001/mail/",
		httpmock.NewStringResponder(520, `{"error":"MailStopSpamming, details: {\"remainingTime\": 12}"}`))

	_, err := c.SendMail(context.Background(), "access", testCharacter, OutgoingMail{Subject: "x"})
	require.ErrorIs(t, err, ErrRateLimited)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, "MailStopSpamming", rl.Reason)
	assert.Equal(t, defaultRateLimitWait, rl.RetryAfter)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestErrorLimited_RetryAfterHeader(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBase+"/universe/types/11987/",
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(420, `{"error":"This software has exceeded the error limit for ESI."}`)
			resp.Header.Set("X-Esi-Error-Limit-Reset", "42")
			return resp, nil
		})

	_, err := c.GetType(context.Background(), 11987)
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 42*time.Second, rl.RetryAfter)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "rate limited calls are not retried")
}

func TestResolveNames(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBase+"/universe/ids/",
		func(req *http.Request) (*http.Response, error) {
			var names []string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&names))
			assert.Equal(t, []string{"Guardian"}, names)
			return httpmock.NewStringResponse(http.StatusOK, `{"inventory_types":[{"id":11987,"name":"Guardian"}]}`), nil
		})

	ids, err := c.ResolveNames(context.Background(), []string{"Guardian"})
	require.NoError(t, err)
	require.Len(t, ids.InventoryTypes, 1)
	assert.Equal(t, int64(11987), ids.InventoryTypes[0].ID)

	empty, err := c.ResolveNames(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty.InventoryTypes)
}

func TestResolveIDs(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBase+"/universe/names/",
		httpmock.NewStringResponder(http.StatusOK, `[{"id":95000001,"name":"Pilot One","category":"character"}]`))

	names, err := c.ResolveIDs(context.Background(), []int64{95000001})
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "Pilot One", names[0].Name)
}

func TestGetWalletJournal(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponderWithQuery(http.MethodGet, testBase+"/corporations/98000001/wallets/1/journal/", "page=1",
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusOK, `[
				{"id":9001,"date":"2024-05-02T10:00:00Z","ref_type":"corporation_account_withdrawal","amount":-250000000.00,"balance":1000000000,"first_party_id":98000001,"second_party_id":95000001,"reason":"SRP-42"}
			]`)
			resp.Header.Set("X-Pages", "3")
			return resp, nil
		})

	entries, pages, err := c.GetWalletJournal(context.Background(), "access", 98000001, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(-250000000)))
	assert.Equal(t, "SRP-42", entries[0].Reason)
	assert.True(t, entries[0].IsOutgoing())
}

func TestGetKillmail(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBase+"/killmails/115000000/abcdef/",
		httpmock.NewStringResponder(http.StatusOK, `{
			"killmail_id":115000000,"killmail_time":"2024-05-01T18:20:00Z","solar_system_id":30000142,
			"victim":{"character_id":95000001,"ship_type_id":11987,"damage_taken":12000},
			"attackers":[{"character_id":96000001,"final_blow":true,"damage_done":12000}]
		}`))

	km, err := c.GetKillmail(context.Background(), 115000000, "abcdef")
	require.NoError(t, err)
	assert.Equal(t, int32(11987), km.Victim.ShipTypeID)
	assert.Equal(t, int32(30000142), km.SolarSystemID)
	assert.Len(t, km.Attackers, 1)
}
