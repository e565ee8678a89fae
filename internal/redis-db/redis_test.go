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

package redis_db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		wantErr  bool
	}{
		{name: "simple docker style", url: "redis:6379", addr: "redis:6379"},
		{name: "redis url with password", url: "redis://:password123@localhost:6379", addr: "localhost:6379", password: "password123"},
		{name: "redis url with bare password", url: "redis://password123@localhost:6379", addr: "localhost:6379", password: "password123"},
		{name: "empty", url: " ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRedisURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, got.Addr)
			assert.Equal(t, tt.password, got.Password)
		})
	}
}

func TestSplitAddresses(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, SplitAddresses(" a:1, ,b:2 "))
	assert.Empty(t, SplitAddresses(""))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := NewRedisClient("")
	assert.Error(t, err)

	client, err := NewRedisClient(mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Client().Set(ctx, "srp:test", "value", time.Minute).Err())
	got, err := client.Client().Get(ctx, "srp:test").Result()
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}
