// Package health exposes an owner's liveness, readiness and metrics over
// HTTP for supervisors and scrapers.
package health

import (
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/shm-pool/pkg/pool"
)

const (
	namespace    = "shmpool"
	checkTimeout = time.Second
)

// Probe is what the admin endpoints ask about. *pool.Owner implements it.
// None of its methods may take the pool token.
type Probe interface {
	// Live fails once the owner can no longer be trusted.
	Live() error
	// Ready fails once consumers can no longer buy tickets.
	Ready() error
	// LastSnapshot returns the counters of the latest report.
	LastSnapshot() (pool.State, bool)
}

// NewHandler returns a handler serving /live and /ready for probe. The
// result of every check is also exported to reg as a gauge.
func NewHandler(probe Probe, reg prometheus.Registerer) healthcheck.Handler {
	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, namespace)
	} else {
		h = healthcheck.NewHandler()
	}
	h.AddLivenessCheck("pool-consistent", healthcheck.Timeout(probe.Live, checkTimeout))
	h.AddReadinessCheck("tickets-available", healthcheck.Timeout(probe.Ready, checkTimeout))
	return h
}
