/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:build unix

package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"

	"github.com/srediag/shm-pool/internal/shm"
)

var errBusy = errors.New("token busy")

// Token is a handle on a named binary semaphore.
type Token struct {
	name string
	path string

	mu     sync.Mutex // guards fd against Close racing an in-flight flock
	fd     int
	closed atomic.Bool
	held   atomic.Bool
}

// Create creates the named token in dir, initially free. It fails with
// ErrExist if the name is already in use.
func Create(dir, name string) (*Token, error) {
	return open(dir, name, unix.O_CREAT|unix.O_EXCL)
}

// Open opens an existing named token in dir. It never creates one.
func Open(dir, name string) (*Token, error) {
	return open(dir, name, 0)
}

func open(dir, name string, extra int) (*Token, error) {
	path, err := filePath(dir, name)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|extra, 0600)
	if err != nil {
		switch {
		case errors.Is(err, unix.EEXIST):
			return nil, fmt.Errorf("%w: %s", ErrExist, path)
		case errors.Is(err, unix.ENOENT):
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Token{name: name, path: path, fd: fd}, nil
}

// Name returns the name the token was created or opened with.
func (t *Token) Name() string { return t.name }

// Path returns the file backing the token.
func (t *Token) Path() string { return t.path }

// TryWait takes the token if it is free and reports whether it did.
func (t *Token) TryWait() (bool, error) {
	if t.closed.Load() {
		return false, ErrClosed
	}
	if !t.held.CompareAndSwap(false, true) {
		return false, nil
	}
	t.mu.Lock()
	err := unix.Flock(t.fd, unix.LOCK_EX|unix.LOCK_NB)
	t.mu.Unlock()
	if err != nil {
		t.held.Store(false)
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, fmt.Errorf("flock %s: %w", t.path, err)
	}
	return true, nil
}

// Wait blocks until the token is taken or ctx ends. An ended context yields
// ErrInterrupted; any other failure means the token can no longer be trusted.
func (t *Token) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInterrupted, err)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialPollInterval
	b.MaxInterval = maxPollInterval
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		ok, err := t.TryWait()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errBusy
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInterrupted, err)
	}
	return err
}

// Post gives the token back.
func (t *Token) Post() error {
	if t.closed.Load() {
		return ErrClosed
	}
	if !t.held.Load() {
		return ErrNotHeld
	}
	t.mu.Lock()
	err := unix.Flock(t.fd, unix.LOCK_UN)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("funlock %s: %w", t.path, err)
	}
	t.held.Store(false)
	return nil
}

// Held reports whether this handle currently holds the token.
func (t *Token) Held() bool { return t.held.Load() }

// Close releases the handle. Closing the descriptor also drops the lock if
// it is held, which is what lets a cancelled process exit from inside its
// critical section. Close is idempotent and never waits for the token.
func (t *Token) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	err := unix.Close(t.fd)
	t.fd = -1
	t.held.Store(false)
	if err != nil {
		return fmt.Errorf("close %s: %w", t.path, err)
	}
	return nil
}

// Unlink removes the token's name from dir. Handles that are still open keep
// working; a missing name is not an error.
func Unlink(dir, name string) error {
	path, err := filePath(dir, name)
	if err != nil {
		return err
	}
	if err := unix.Unlink(path); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlink %s: %w", path, err)
	}
	return nil
}

func filePath(dir, name string) (string, error) {
	if _, err := shm.Path(dir, name); err != nil {
		return "", err
	}
	return shm.Path(dir, FileName(name))
}
