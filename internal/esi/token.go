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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/internal/apierror"
	"github.com/jerry-enebeli/srp/internal/request"
	"github.com/jerry-enebeli/srp/model"
	"github.com/sirupsen/logrus"
)

// ErrNoServiceToken is returned when no refresh token has been stored for the mailbox identity.
var ErrNoServiceToken = errors.New("esi: no service token stored for character")

// TokenStore persists the mailbox identity's credentials.
type TokenStore interface {
	GetServiceToken(ctx context.Context, characterID int64) (*model.ServiceToken, error)
	SaveServiceToken(ctx context.Context, token *model.ServiceToken) error
}

type ssoResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

// TokenSource hands out a valid access token for the mailbox identity,
// refreshing it through SSO when it is about to expire.
type TokenSource struct {
	store        TokenStore
	characterID  int64
	ssoURL       string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time

	mu sync.Mutex
}

func NewTokenSource(store TokenStore, cnf config.EsiConfig, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cnf.TimeoutSeconds) * time.Second}
	}
	return &TokenSource{
		store:        store,
		characterID:  cnf.CharacterID,
		ssoURL:       cnf.SSOURL,
		clientID:     cnf.ClientID,
		clientSecret: cnf.ClientSecret,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// CharacterID is the identity whose mailbox and wallet are used.
func (ts *TokenSource) CharacterID() int64 {
	return ts.characterID
}

// Token returns the stored service token, refreshed if needed.
func (ts *TokenSource) Token(ctx context.Context) (*model.ServiceToken, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	token, err := ts.store.GetServiceToken(ctx, ts.characterID)
	if err != nil && !apierror.IsNotFound(err) {
		return nil, fmt.Errorf("loading service token: %w", err)
	}
	if token == nil || token.RefreshToken == "" {
		return nil, fmt.Errorf("%w %d", ErrNoServiceToken, ts.characterID)
	}
	if token.Valid(ts.now()) {
		return token, nil
	}

	refreshed, err := ts.refresh(ctx, token.RefreshToken)
	if err != nil {
		return nil, err
	}

	token.AccessToken = refreshed.AccessToken
	token.ExpiresAt = ts.now().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
	if refreshed.RefreshToken != "" {
		token.RefreshToken = refreshed.RefreshToken
	}
	token.UpdatedAt = ts.now()

	if err := ts.store.SaveServiceToken(ctx, token); err != nil {
		// The fresh access token is still usable for this run.
		logrus.WithField("character_id", ts.characterID).Errorf("persisting refreshed token: %v", err)
	}
	return token, nil
}

func (ts *TokenSource) refresh(ctx context.Context, refreshToken string) (*ssoResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.ssoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+request.BasicAuth(ts.clientID, ts.clientSecret))

	var out ssoResponse
	if _, err := request.Call(ts.httpClient, req, &out); err != nil {
		return nil, fmt.Errorf("refreshing service token: %w", classify(err))
	}
	if out.AccessToken == "" {
		return nil, errors.New("refreshing service token: empty access token")
	}
	return &out, nil
}
