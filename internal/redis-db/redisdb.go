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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the universal client shared by the lease lock, the health cache and asynq.
type Redis struct {
	addresses []string
	client    redis.UniversalClient
}

// ParseRedisURL accepts either a bare host:port (docker style) or a redis:// URL.
// A redis:// URL holding only a password before '@' is normalised to the ":password@" form.
func ParseRedisURL(rawURL string) (*redis.Options, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("redis address is empty")
	}

	if !strings.Contains(rawURL, "//") && !strings.Contains(rawURL, "@") {
		return &redis.Options{Addr: rawURL}, nil
	}

	if strings.HasPrefix(rawURL, "redis://") && strings.Contains(rawURL, "@") {
		parts := strings.SplitN(strings.TrimPrefix(rawURL, "redis://"), "@", 2)
		if !strings.Contains(parts[0], ":") {
			rawURL = fmt.Sprintf("redis://:%s@%s", parts[0], parts[1])
		}
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opts, nil
}

// SplitAddresses splits a comma separated redis DNS into its addresses.
func SplitAddresses(dns string) []string {
	var out []string
	for _, a := range strings.Split(dns, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// NewRedisClient creates a client from a redis DNS. One address yields a standalone
// client; several comma separated addresses yield a cluster client.
//
// Parameters:
// - dns string: A single address/URL or a comma separated list of them.
//
// Returns:
// - *Redis: A new Redis client wrapper, already pinged.
// - error: An error if the address is invalid or the server is unreachable.
func NewRedisClient(dns string) (*Redis, error) {
	addresses := SplitAddresses(dns)
	if len(addresses) == 0 {
		return nil, errors.New("redis addresses list cannot be empty")
	}

	var client redis.UniversalClient
	if len(addresses) == 1 {
		opts, err := ParseRedisURL(addresses[0])
		if err != nil {
			return nil, err
		}
		client = redis.NewClient(opts)
	} else {
		var clusterAddrs []string
		var password string
		for _, addr := range addresses {
			opts, err := ParseRedisURL(addr)
			if err != nil {
				return nil, err
			}
			clusterAddrs = append(clusterAddrs, opts.Addr)
			if password == "" {
				password = opts.Password
			}
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: clusterAddrs, Password: password})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{addresses: addresses, client: client}, nil
}

// Client returns the Redis universal client.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// Close releases the underlying connections.
func (r *Redis) Close() error {
	return r.client.Close()
}
