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
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/srediag/shm-pool/internal/logging"
	"github.com/srediag/shm-pool/internal/token"
	"github.com/srediag/shm-pool/pkg/shm"
)

const (
	attachRetryInterval = 10 * time.Millisecond
	attachRetries       = 5
)

// ConsumerConfig configures Attach.
type ConsumerConfig struct {
	Names
	// Pacing is the pause between purchases in Run. Zero means no pause.
	Pacing time.Duration
	// ID identifies the consumer in logs and traces. A random one is used
	// when empty.
	ID string
}

// Consumer buys tickets from a pool created by an Owner.
type Consumer struct {
	id     string
	names  Names
	pacing time.Duration

	seg   *shm.Segment
	tok   *token.Token
	guard *Guard

	detached atomic.Bool
	last     atomic.Int64

	log      *zap.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	requests metric.Int64Counter
	granted  metric.Int64Counter
}

// Attach opens an existing pool. It never creates anything: a missing,
// foreign or unpublished segment, or a missing token, yields ErrNotFound.
// A segment that is still being initialized is retried briefly.
func Attach(ctx context.Context, cfg ConsumerConfig, opts ...Option) (*Consumer, error) {
	o := buildOptions(logging.Consumer, opts)
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	var seg *shm.Segment
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(attachRetryInterval), attachRetries), ctx)
	err := backoff.Retry(func() error {
		s, err := shm.Open(ctx, cfg.segmentOptions())
		if err != nil {
			if errors.Is(err, shm.ErrNotReady) {
				return err
			}
			return backoff.Permanent(err)
		}
		seg = s
		return nil
	}, b)
	if err != nil {
		return nil, fmt.Errorf("%w: segment %s: %w", ErrNotFound, cfg.Segment, err)
	}
	tok, err := token.Open(cfg.Dir, cfg.Token)
	if err != nil {
		_ = seg.Close()
		return nil, fmt.Errorf("%w: token %s: %w", ErrNotFound, cfg.Token, err)
	}

	c := &Consumer{
		id:      id,
		names:   cfg.Names,
		pacing:  cfg.Pacing,
		seg:     seg,
		tok:     tok,
		guard:   &Guard{seg: seg, tok: tok, metrics: o.metrics},
		log:     o.logger.With(zap.String("consumer", id)),
		metrics: o.metrics,
		tracer:  o.tracer,
	}
	c.last.Store(-1)
	if c.requests, err = o.meter.Int64Counter("shmpool.consumer.requests",
		metric.WithDescription("Purchase requests by outcome.")); err != nil {
		c.log.Warn("request counter unavailable", zap.Error(err))
	}
	if c.granted, err = o.meter.Int64Counter("shmpool.consumer.granted",
		metric.WithDescription("Tickets granted."), metric.WithUnit("{ticket}")); err != nil {
		c.log.Warn("granted counter unavailable", zap.Error(err))
	}
	c.log.Debug("attached", zap.String("segment", seg.Path()), zap.String("token", tok.Path()),
		zap.Int64("owner_pid", seg.OwnerPID()))
	return c, nil
}

// ID returns the consumer identifier.
func (c *Consumer) ID() string { return c.id }

// Names returns the names the consumer attached to.
func (c *Consumer) Names() Names { return c.names }

// RequestAllocation buys up to requested tickets, capped at MaxPerRequest.
// Non-positive requests are rejected without taking the token.
func (c *Consumer) RequestAllocation(ctx context.Context, requested int64) Outcome {
	ctx, span := c.tracer.Start(ctx, "pool.RequestAllocation",
		trace.WithAttributes(attribute.String("consumer.id", c.id), attribute.Int64("tickets.requested", requested)))
	defer span.End()

	out := c.request(ctx, requested)

	span.SetAttributes(
		attribute.String("outcome", out.Kind.String()),
		attribute.Int64("tickets.granted", out.Granted),
		attribute.Int64("tickets.available", out.Available))
	if out.Kind == OutcomeFailed || out.Kind == OutcomeInterrupted {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Kind.String())
	}
	c.metrics.observeOutcome(out)
	kind := metric.WithAttributes(attribute.String("outcome", out.Kind.String()))
	if c.requests != nil {
		c.requests.Add(ctx, 1, kind)
	}
	if c.granted != nil && out.Granted > 0 {
		c.granted.Add(ctx, out.Granted)
	}
	c.log.Debug("purchase", zap.Stringer("outcome", out))
	return out
}

func (c *Consumer) request(ctx context.Context, requested int64) Outcome {
	out := Outcome{Requested: requested, Available: c.last.Load()}
	if requested <= 0 {
		out.Kind = OutcomeInvalid
		out.Err = ErrInvalidRequest
		return out
	}
	if c.detached.Load() {
		out.Kind = OutcomeFailed
		out.Err = fmt.Errorf("%w: consumer detached", ErrSyncFailure)
		return out
	}
	want := min(requested, MaxPerRequest)

	err := c.guard.Do(ctx, func(s *shm.Segment) {
		avail := s.Available()
		if avail <= 0 {
			out.Kind = OutcomeExhausted
			out.Err = ErrExhausted
			out.Available = avail
			return
		}
		st := s.Withdraw(min(want, avail))
		out.Kind = OutcomeGranted
		out.Granted = min(want, avail)
		out.Available = st.Available
	})
	switch {
	case errors.Is(err, ErrInterrupted):
		out.Kind = OutcomeInterrupted
		out.Err = err
	case err != nil:
		out.Kind = OutcomeFailed
		out.Err = err
	}
	if out.Kind == OutcomeGranted || out.Kind == OutcomeExhausted {
		c.last.Store(out.Available)
	}
	return out
}

// Peek reads the available count under the token.
func (c *Consumer) Peek(ctx context.Context) (int64, error) {
	if c.detached.Load() {
		return 0, fmt.Errorf("%w: consumer detached", ErrSyncFailure)
	}
	var avail int64
	if err := c.guard.Do(ctx, func(s *shm.Segment) { avail = s.Available() }); err != nil {
		return 0, err
	}
	c.last.Store(avail)
	return avail, nil
}

// Run reads one request per line from in and reports every purchase to
// out, pausing for the configured pacing in between. It stops with nil
// when the pool is sold out, when in ends, or when ctx is cancelled. Token
// failures are returned.
func (c *Consumer) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := readLines(ctx, in)
	defer lines.close()

	for {
		avail, err := c.Peek(ctx)
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				return nil
			}
			return err
		}
		if avail <= 0 {
			c.log.Info("pool sold out")
			return nil
		}

		line, err := lines.next()
		switch {
		case errors.Is(err, io.EOF):
			_, werr := io.WriteString(out, "\n")
			return werr
		case errors.Is(err, ErrInterrupted):
			return nil
		case err != nil:
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		requested, parsed := parseRequest(line)
		if err := WriteEcho(out, requested, parsed, line); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		res := c.RequestAllocation(ctx, requested)
		if res.Kind == OutcomeFailed {
			c.log.Error("purchase failed", zap.Error(res.Err))
			return res.Err
		}
		if err := WriteOutcome(out, res); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if res.Kind == OutcomeInterrupted {
			return nil
		}
		if !sleepCtx(ctx, c.pacing) {
			return nil
		}
	}
}

// Detach unmaps the segment and closes the token. It never removes either
// name and is idempotent.
func (c *Consumer) Detach() error {
	if !c.detached.CompareAndSwap(false, true) {
		return nil
	}
	err := multierr.Append(c.seg.Close(), c.tok.Close())
	c.log.Debug("detached", zap.Error(err))
	return err
}
