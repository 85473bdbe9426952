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

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/srediag/shm-pool/internal/token"
	"github.com/srediag/shm-pool/pkg/shm"
)

// Guard is the only way to reach a segment's counters: Do holds the token
// for the duration of fn and gives it back on every path, panics included.
type Guard struct {
	seg     *shm.Segment
	tok     *token.Token
	metrics *Metrics
}

// Do runs fn under the token. A cancelled wait returns ErrInterrupted
// without running fn; any other token failure returns ErrSyncFailure.
func (g *Guard) Do(ctx context.Context, fn func(seg *shm.Segment)) (err error) {
	start := time.Now()
	if werr := g.tok.Wait(ctx); werr != nil {
		if errors.Is(werr, token.ErrInterrupted) {
			return fmt.Errorf("%w: %w", ErrInterrupted, werr)
		}
		return fmt.Errorf("%w: wait: %w", ErrSyncFailure, werr)
	}
	g.metrics.observeWait(time.Since(start))
	defer func() {
		if perr := g.tok.Post(); perr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: post: %w", ErrSyncFailure, perr))
		}
	}()
	fn(g.seg)
	return nil
}
