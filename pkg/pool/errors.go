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


// Package pool arbitrates a fixed pool of tickets between one owner process
// and any number of consumer processes.
//
// The owner creates a named shared memory segment holding four counters and
// a named token that serializes every access to them. Consumers attach by
// name, take the token for each purchase, and detach when the pool is sold
// out or their input ends. Only the owner ever removes the names.
//
// A crashed owner leaves both names behind; nothing removes them silently.
// The ticket-office command's clean subcommand removes them on request.
package pool

import (
	"errors"
	"fmt"

	internalshm "github.com/srediag/shm-pool/internal/shm"
	"github.com/srediag/shm-pool/internal/token"
)

var (
	// ErrAlreadyExists means another owner's segment or token holds the name.
	ErrAlreadyExists = errors.New("shared resource already exists")
	// ErrResourceLimit means the pool could not be created within limits.
	ErrResourceLimit = errors.New("resource limit reached")
	// ErrNotFound means a consumer could not attach; the owner must run first.
	ErrNotFound = errors.New("shared resources not found (start the ticket office first)")
	// ErrInvalidRequest marks a non-positive request.
	ErrInvalidRequest = errors.New("invalid number of tickets")
	// ErrInterrupted marks a token wait cut short by cancellation.
	ErrInterrupted = errors.New("token wait interrupted")
	// ErrExhausted marks an empty pool. It is a terminal condition, not a failure.
	ErrExhausted = errors.New("sold out")
	// ErrSyncFailure means a token operation failed for a reason other than
	// interruption; mutual exclusion can no longer be trusted.
	ErrSyncFailure = errors.New("token failure")
	// ErrCorrupted means a snapshot broke the pool invariants.
	ErrCorrupted = errors.New("shared state corrupted")
)

// IsTerminal reports whether err is a clean stop condition.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrExhausted)
}

// IsFatal reports whether err must end the process with a non-zero status.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSyncFailure) ||
		errors.Is(err, ErrCorrupted) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrResourceLimit)
}

func classifyCreate(err error) error {
	switch {
	case errors.Is(err, internalshm.ErrExist), errors.Is(err, token.ErrExist):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case errors.Is(err, internalshm.ErrNoSpace):
		return fmt.Errorf("%w: %w", ErrResourceLimit, err)
	}
	return err
}
