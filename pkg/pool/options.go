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
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/srediag/shm-pool/internal/logging"
	"github.com/srediag/shm-pool/pkg/shm"
)

const (
	// MaxPerRequest caps a single purchase.
	MaxPerRequest = 5
	// MaxTotal bounds the pool capacity.
	MaxTotal = 100000000

	// DefaultReportPeriod is the owner's report interval.
	DefaultReportPeriod = time.Second
	// DefaultPacing is the consumer's pause between purchases.
	DefaultPacing = 2 * time.Second

	instrumentationName = "github.com/srediag/shm-pool/pkg/pool"
)

// State is a copy of the pool counters.
type State = shm.State

// Names are the rendezvous names shared by the owner and its consumers.
// A consumer configured with different names fails to attach with
// ErrNotFound; it never silently watches an unrelated pool.
type Names struct {
	Segment string
	Token   string
	// Dir overrides the shared memory directory (default /dev/shm).
	Dir string
}

func (n Names) segmentOptions() shm.Options {
	return shm.Options{Name: n.Segment, Dir: n.Dir}
}

type options struct {
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
	meter   metric.Meter
}

// Option configures an Owner or a Consumer.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the Prometheus collectors to update.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the OpenTelemetry tracer. The default is a no-op tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMeter sets the OpenTelemetry meter. The default is a no-op meter.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

func buildOptions(name string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNop(o.logger).Named(name)
	if o.tracer == nil {
		o.tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	if o.meter == nil {
		o.meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	return o
}
