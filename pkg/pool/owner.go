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
	"io"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/srediag/shm-pool/internal/logging"
	"github.com/srediag/shm-pool/internal/token"
	"github.com/srediag/shm-pool/pkg/lifecycle"
	"github.com/srediag/shm-pool/pkg/shm"
)

// OwnerConfig configures Create.
type OwnerConfig struct {
	Names
	Total int64
}

// Owner is the single process that creates, reports on and destroys a pool.
type Owner struct {
	names Names
	seg   *shm.Segment
	tok   *token.Token
	guard *Guard

	state lifecycle.Tracker
	torn  atomic.Bool
	last  atomic.Pointer[State]

	log     *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Create creates the segment and the token, both exclusively, and
// initializes the counters. If either name is taken it fails with
// ErrAlreadyExists and leaves the existing resource alone.
func Create(ctx context.Context, cfg OwnerConfig, opts ...Option) (*Owner, error) {
	o := buildOptions(logging.Owner, opts)
	if cfg.Total < 0 || cfg.Total > MaxTotal {
		return nil, fmt.Errorf("%w: total %d out of range [0, %d]", ErrResourceLimit, cfg.Total, MaxTotal)
	}

	seg, err := shm.Create(ctx, cfg.segmentOptions())
	if err != nil {
		return nil, fmt.Errorf("create segment %s: %w", cfg.Segment, classifyCreate(err))
	}
	tok, err := token.Create(cfg.Dir, cfg.Token)
	if err != nil {
		// the segment is ours; the token, if it exists, is not
		_ = seg.Close()
		_ = seg.Unlink()
		return nil, fmt.Errorf("create token %s: %w", cfg.Token, classifyCreate(err))
	}

	owner := &Owner{
		names:   cfg.Names,
		seg:     seg,
		tok:     tok,
		guard:   &Guard{seg: seg, tok: tok, metrics: o.metrics},
		log:     o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
	}
	if err := owner.guard.Do(ctx, func(s *shm.Segment) { s.Init(cfg.Total, os.Getpid()) }); err != nil {
		_ = owner.Teardown()
		return nil, fmt.Errorf("initialize pool: %w", err)
	}
	seg.Publish()
	owner.state.Transition(lifecycle.Active)
	owner.log.Info("pool created",
		zap.String("segment", seg.Path()),
		zap.String("token", tok.Path()),
		zap.Int64("total", cfg.Total))
	return owner, nil
}

// Names returns the names the pool was created with.
func (o *Owner) Names() Names { return o.names }

// State returns the lifecycle state.
func (o *Owner) State() lifecycle.State { return o.state.Load() }

// LastSnapshot returns the most recent snapshot, if any.
func (o *Owner) LastSnapshot() (State, bool) {
	st := o.last.Load()
	if st == nil {
		return State{}, false
	}
	return *st, true
}

// Snapshot reads all four counters under the token. A snapshot that breaks
// the invariants is returned together with ErrCorrupted.
func (o *Owner) Snapshot(ctx context.Context) (State, error) {
	ctx, span := o.tracer.Start(ctx, "pool.Snapshot")
	defer span.End()

	if o.torn.Load() {
		return State{}, fmt.Errorf("%w: pool removed", ErrInterrupted)
	}
	var st State
	if err := o.guard.Do(ctx, func(s *shm.Segment) { st = s.Snapshot() }); err != nil {
		span.RecordError(err)
		return State{}, err
	}
	o.last.Store(&st)
	if err := st.Check(); err != nil {
		span.SetStatus(codes.Error, "corrupted")
		return st, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return st, nil
}

// ReportLoop writes a report record every period until the pool is sold
// out or ctx ends; both return nil. Interrupted waits are retried while ctx
// is alive. Any other failure moves the owner to Failed and is returned.
func (o *Owner) ReportLoop(ctx context.Context, period time.Duration, out io.Writer) error {
	if period <= 0 {
		period = DefaultReportPeriod
	}
	for {
		st, err := o.Snapshot(ctx)
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				if ctx.Err() != nil || o.torn.Load() {
					o.terminate()
					return nil
				}
				continue
			}
			o.state.Transition(lifecycle.Failed)
			o.log.Error("report loop stopped", zap.Error(err))
			return err
		}
		o.metrics.observeState(st)
		if err := WriteReport(out, st); err != nil {
			o.state.Transition(lifecycle.Failed)
			return fmt.Errorf("write report: %w", err)
		}
		if st.Available <= 0 {
			if err := WriteSoldOut(out); err != nil {
				o.state.Transition(lifecycle.Failed)
				return fmt.Errorf("write report: %w", err)
			}
			o.state.Transition(lifecycle.Exhausted)
			o.log.Info("pool sold out", zap.Int64("transactions", st.Transactions))
			return nil
		}
		if !sleepCtx(ctx, period) {
			o.terminate()
			return nil
		}
	}
}

func (o *Owner) terminate() {
	if o.state.Transition(lifecycle.Terminated) {
		o.log.Info("report loop cancelled")
	}
}

// Live reports whether the owner can still be trusted: it has not failed
// and its last snapshot was consistent.
func (o *Owner) Live() error {
	if s := o.State(); s == lifecycle.Failed {
		return fmt.Errorf("owner is %s", s)
	}
	if st, ok := o.LastSnapshot(); ok {
		if err := st.Check(); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
	}
	return nil
}

// Ready reports whether consumers can still buy tickets.
func (o *Owner) Ready() error {
	if s := o.State(); s != lifecycle.Active {
		return fmt.Errorf("owner is %s", s)
	}
	if st, ok := o.LastSnapshot(); ok && st.Available <= 0 {
		return ErrExhausted
	}
	return nil
}

// Teardown unmaps the segment, closes the token and removes both names.
// It is idempotent and never takes the token. Closing the handle drops the
// lock if it is held. Stop the report loop before calling it.
func (o *Owner) Teardown() error {
	if !o.torn.CompareAndSwap(false, true) {
		return nil
	}
	o.terminate()
	var err error
	if o.seg != nil {
		err = multierr.Append(err, o.seg.Close())
		err = multierr.Append(err, o.seg.Unlink())
	}
	if o.tok != nil {
		err = multierr.Append(err, o.tok.Close())
		err = multierr.Append(err, token.Unlink(o.names.Dir, o.names.Token))
	}
	if err != nil {
		o.log.Warn("teardown incomplete", zap.Error(err))
	} else {
		o.log.Info("pool removed", zap.String("segment", o.names.Segment), zap.String("token", o.names.Token))
	}
	return err
}

// sleepCtx sleeps for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
