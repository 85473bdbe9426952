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

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const metricsNamespace = "shmpool"

// Metrics holds the Prometheus collectors a pool participant updates.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Available    prometheus.Gauge
	Allocated    prometheus.Gauge
	Transactions prometheus.Gauge
	Requests     *prometheus.CounterVec
	Granted      prometheus.Counter
	TokenWait    prometheus.Histogram
}

// NewOwnerMetrics creates the collectors an owner updates: the reported
// pool state and the token wait. Requests and Granted stay nil. The
// collectors are registered with reg when reg is not nil.
func NewOwnerMetrics(reg prometheus.Registerer) *Metrics {
	m := newStateMetrics()
	if reg != nil {
		reg.MustRegister(m.Available, m.Allocated, m.Transactions, m.TokenWait)
	}
	return m
}

// NewMetrics creates the full set of collectors, including the per-purchase
// counters, and registers them with reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newStateMetrics()
	m.Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "requests_total",
		Help:      "Purchase requests by outcome.",
	}, []string{"outcome"})
	m.Granted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "granted_tickets_total",
		Help:      "Tickets granted by this process.",
	})
	if reg != nil {
		reg.MustRegister(m.Available, m.Allocated, m.Transactions, m.Requests, m.Granted, m.TokenWait)
	}
	return m
}

func newStateMetrics() *Metrics {
	return &Metrics{
		Available: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "available_tickets",
			Help:      "Tickets not yet purchased, as of the last report.",
		}),
		Allocated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "purchased_tickets",
			Help:      "Tickets purchased so far, as of the last report.",
		}),
		Transactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "transactions",
			Help:      "Successful purchases so far, as of the last report.",
		}),
		TokenWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "token_wait_seconds",
			Help:      "Time spent waiting for the pool token.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

func (m *Metrics) observeState(st State) {
	if m == nil {
		return
	}
	m.Available.Set(float64(st.Available))
	m.Allocated.Set(float64(st.Allocated))
	m.Transactions.Set(float64(st.Transactions))
}

func (m *Metrics) observeOutcome(o Outcome) {
	if m == nil {
		return
	}
	if m.Requests != nil {
		m.Requests.WithLabelValues(o.Kind.String()).Inc()
	}
	if m.Granted != nil && o.Granted > 0 {
		m.Granted.Add(float64(o.Granted))
	}
}

func (m *Metrics) observeWait(d time.Duration) {
	if m == nil {
		return
	}
	m.TokenWait.Observe(d.Seconds())
}

// RequestCounts returns how many purchases ended with each outcome kind.
// Kinds never seen are omitted. It is empty for owner metrics.
func (m *Metrics) RequestCounts() map[OutcomeKind]int64 {
	counts := make(map[OutcomeKind]int64)
	if m == nil || m.Requests == nil {
		return counts
	}
	for k := OutcomeGranted; k <= OutcomeFailed; k++ {
		var pb dto.Metric
		c, err := m.Requests.GetMetricWithLabelValues(k.String())
		if err != nil || c.Write(&pb) != nil {
			continue
		}
		if v := int64(pb.GetCounter().GetValue()); v > 0 {
			counts[k] = v
		}
	}
	return counts
}
