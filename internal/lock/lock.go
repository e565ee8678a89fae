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

package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by Lock when another holder owns the key.
var ErrLockHeld = errors.New("lock is already held")

const (
	unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	extendScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
)

// Locker is a single-key lease. Only the holder of value can release or extend it.
type Locker struct {
	client redis.UniversalClient
	key    string
	value  string
}

func NewLocker(client redis.UniversalClient, key, value string) *Locker {
	return &Locker{
		client: client,
		key:    key,
		value:  value,
	}
}

// Lock acquires the lease for ttl. It returns ErrLockHeld without waiting when
// someone else holds it.
func (l *Locker) Lock(ctx context.Context, ttl time.Duration) error {
	success, err := l.client.SetNX(ctx, l.key, l.value, ttl).Result()
	if err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("%w: %s", ErrLockHeld, l.key)
	}
	return nil
}

func (l *Locker) Unlock(ctx context.Context) error {
	result, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("unlock failed, either lock expired or you're not the lock holder for key %s", l.key)
	}
	return nil
}

func (l *Locker) ExtendLock(ctx context.Context, extension time.Duration) error {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, fmt.Sprintf("%d", extension.Milliseconds())).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("lock extension failed for key %s, either lock expired or you're not the holder", l.key)
	}
	return nil
}

// KeepAlive extends the lease to ttl every interval until the returned stop func is
// called. stop waits for the refresher to exit. Failed extensions go to onError.
func (l *Locker) KeepAlive(ctx context.Context, ttl, interval time.Duration, onError func(error)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := l.ExtendLock(ctx, ttl)
				if err != nil && ctx.Err() == nil && onError != nil {
					onError(err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Holder returns the value currently stored under the key, or "" when the lease is free.
func (l *Locker) Holder(ctx context.Context) (string, error) {
	v, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}
