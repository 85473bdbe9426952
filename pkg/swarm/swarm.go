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

// Package swarm drives many consumers against one pool from a single
// process. Every simulated consumer attaches with its own handle, so the
// token serializes them exactly as it serializes separate processes.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/srediag/shm-pool/internal/logging"
	"github.com/srediag/shm-pool/pkg/pool"
)

// ErrInvalidConfig is returned for a swarm without clients or requests.
var ErrInvalidConfig = errors.New("swarm: invalid configuration")

// Config describes a swarm.
type Config struct {
	pool.Names
	// Clients is the number of simulated consumers.
	Clients int
	// Requests is the number of purchases each client attempts.
	Requests int
	// MaxAmount bounds the random amount of a purchase, drawn from
	// [1, MaxAmount]. Zero means pool.MaxPerRequest.
	MaxAmount int64
	// Rate limits purchases per second across the whole swarm. Zero
	// means no limit.
	Rate float64
	// Seed makes the drawn amounts reproducible.
	Seed uint64

	Logger *zap.Logger
}

// ClientStats is what one simulated consumer did.
type ClientStats struct {
	ID           string
	Attempts     int
	Transactions int64
	Granted      int64
	SoldOut      bool
}

// Summary aggregates a finished swarm.
type Summary struct {
	Clients      []ClientStats
	Granted      int64
	Transactions int64
}

// Run starts cfg.Clients consumers, each attaching on its own, and waits
// for all of them. A client stops early when the pool is sold out or ctx
// ends. Client failures are combined into the returned error; the summary
// still covers every client that attached.
func Run(ctx context.Context, cfg Config, opts ...pool.Option) (Summary, error) {
	if cfg.Clients <= 0 || cfg.Requests <= 0 {
		return Summary{}, fmt.Errorf("%w: %d clients, %d requests", ErrInvalidConfig, cfg.Clients, cfg.Requests)
	}
	if cfg.MaxAmount <= 0 {
		cfg.MaxAmount = pool.MaxPerRequest
	}
	log := logging.OrNop(cfg.Logger).Named(logging.Swarm)

	workers, err := ants.NewPool(cfg.Clients, ants.WithPanicHandler(func(v any) {
		log.Error("client panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return Summary{}, fmt.Errorf("worker pool: %w", err)
	}
	defer workers.Release()

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	stats := cmap.New[ClientStats]()
	failures := cmap.New[error]()
	var wg sync.WaitGroup
	for i := range cfg.Clients {
		id := fmt.Sprintf("client-%03d", i)
		wg.Add(1)
		err := workers.Submit(func() {
			defer wg.Done()
			st, err := runClient(ctx, cfg, id, uint64(i), limiter, opts)
			stats.Set(id, st)
			if err != nil {
				failures.Set(id, err)
			}
		})
		if err != nil {
			wg.Done()
			failures.Set(id, fmt.Errorf("submit: %w", err))
		}
	}
	wg.Wait()

	var sum Summary
	for _, st := range stats.Items() {
		sum.Clients = append(sum.Clients, st)
		sum.Granted += st.Granted
		sum.Transactions += st.Transactions
	}
	sort.Slice(sum.Clients, func(i, j int) bool { return sum.Clients[i].ID < sum.Clients[j].ID })

	ids := failures.Keys()
	sort.Strings(ids)
	var errs error
	for _, id := range ids {
		ferr, _ := failures.Get(id)
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", id, ferr))
	}
	log.Info("swarm finished",
		zap.Int("clients", len(sum.Clients)),
		zap.Int64("granted", sum.Granted),
		zap.Int64("transactions", sum.Transactions),
		zap.Int("failures", len(ids)))
	return sum, errs
}

func runClient(ctx context.Context, cfg Config, id string, stream uint64, limiter *rate.Limiter, opts []pool.Option) (ClientStats, error) {
	st := ClientStats{ID: id}
	c, err := pool.Attach(ctx, pool.ConsumerConfig{Names: cfg.Names, ID: id}, opts...)
	if err != nil {
		return st, err
	}
	defer c.Detach()

	rng := rand.New(rand.NewPCG(cfg.Seed, stream))
	for range cfg.Requests {
		if err := limiter.Wait(ctx); err != nil {
			return st, nil
		}
		st.Attempts++
		out := c.RequestAllocation(ctx, 1+rng.Int64N(cfg.MaxAmount))
		switch out.Kind {
		case pool.OutcomeGranted:
			st.Transactions++
			st.Granted += out.Granted
		case pool.OutcomeExhausted:
			st.SoldOut = true
			return st, nil
		case pool.OutcomeInterrupted:
			return st, nil
		case pool.OutcomeFailed:
			return st, out.Err
		}
	}
	return st, nil
}
