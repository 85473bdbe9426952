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

// Package token implements a named binary semaphore shared between processes.
//
// The token is a file next to the shared memory regions, named the way glibc
// names sem_open(3) semaphores ("sem.<name>"). Holding the token means holding
// an exclusive flock(2) on that file through this handle's descriptor. The
// kernel drops the lock when the holder exits, so a process that dies inside
// its critical section cannot leave the token taken forever.
//
// A Token value is a binary semaphore for goroutines as well: while one
// goroutine holds it through a handle, other goroutines waiting on the same
// handle block until Post.
package token

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrExist is returned by Create when the name is taken.
	ErrExist = errors.New("token: already exists")
	// ErrNotExist is returned by Open when nobody created the name.
	ErrNotExist = errors.New("token: does not exist")
	// ErrInterrupted is returned by Wait when its context ends before the
	// token was acquired.
	ErrInterrupted = errors.New("token: wait interrupted")
	// ErrNotHeld is returned by Post on a handle that does not hold the token.
	ErrNotHeld = errors.New("token: not held")
	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("token: closed")
)

const (
	filePrefix = "sem."

	initialPollInterval = 200 * time.Microsecond
	maxPollInterval     = 20 * time.Millisecond
)

// FileName maps a token name to the file name backing it.
func FileName(name string) string {
	return filePrefix + strings.TrimPrefix(name, "/")
}
