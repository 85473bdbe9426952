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

package pool

import "fmt"

// OutcomeKind classifies a purchase.
type OutcomeKind int

const (
	// OutcomeGranted: one or more tickets were granted. Every other kind
	// carries a non-nil Outcome.Err.
	OutcomeGranted OutcomeKind = iota
	// OutcomeInvalid: the request was not positive; the token was not taken.
	// Err is ErrInvalidRequest.
	OutcomeInvalid
	// OutcomeExhausted: the pool was empty; nothing was counted. Err is
	// ErrExhausted.
	OutcomeExhausted
	// OutcomeInterrupted: the token wait was cancelled; nothing happened.
	OutcomeInterrupted
	// OutcomeFailed: the token failed; see Outcome.Err.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeGranted:
		return "granted"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of one purchase.
type Outcome struct {
	Kind      OutcomeKind
	Requested int64
	Granted   int64
	// Available is the pool's available count right after the purchase.
	// Invalid and interrupted purchases never read the pool, so for them it
	// is the last value this consumer observed (-1 if none).
	Available int64
	Err       error
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s: requested %d, granted %d, available %d", o.Kind, o.Requested, o.Granted, o.Available)
}
