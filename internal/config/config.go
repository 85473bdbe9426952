// Package config loads shm-pool settings from SHMPOOL_* environment
// variables. Command-line arguments are applied on top by the commands.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/srediag/shm-pool/internal/shm"
	"github.com/srediag/shm-pool/pkg/pool"
)

// Prefix is the environment variable prefix.
const Prefix = "SHMPOOL"

const (
	// DefaultSegment and DefaultToken are the well-known rendezvous names.
	DefaultSegment = "/ticket_shm"
	DefaultToken   = "/ticket_sem"
	// DefaultTotal is the pool capacity when none is given.
	DefaultTotal = 20
)

// Names holds the rendezvous names both sides must agree on.
type Names struct {
	Segment string `envconfig:"SEGMENT" default:"/ticket_shm"`
	Token   string `envconfig:"TOKEN" default:"/ticket_sem"`
	Dir     string `envconfig:"SHM_DIR" default:"/dev/shm"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	LogLevel    string `envconfig:"LOG_LEVEL" default:"warn"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// OwnerConfig configures the ticket office.
type OwnerConfig struct {
	Names
	LogConfig
	Total        int64         `envconfig:"TOTAL" default:"20"`
	ReportPeriod time.Duration `envconfig:"REPORT_PERIOD" default:"1s"`
	AdminAddr    string        `envconfig:"ADMIN_ADDR"`
}

// ConsumerConfig configures a buyer.
type ConsumerConfig struct {
	Names
	LogConfig
	Pacing time.Duration `envconfig:"PACING" default:"2s"`
}

// SwarmConfig configures the in-process load driver.
type SwarmConfig struct {
	ConsumerConfig
	Clients   int     `envconfig:"SWARM_CLIENTS" default:"4"`
	Requests  int     `envconfig:"SWARM_REQUESTS" default:"10"`
	MaxAmount int64   `envconfig:"SWARM_MAX_AMOUNT" default:"7"`
	Rate      float64 `envconfig:"SWARM_RATE" default:"0"`
}

// DefaultNames returns the well-known names.
func DefaultNames() Names {
	return Names{Segment: DefaultSegment, Token: DefaultToken, Dir: shm.DefaultDir}
}

// DefaultOwner returns the owner defaults.
func DefaultOwner() *OwnerConfig {
	return &OwnerConfig{
		Names:        DefaultNames(),
		LogConfig:    LogConfig{LogLevel: "warn"},
		Total:        DefaultTotal,
		ReportPeriod: pool.DefaultReportPeriod,
	}
}

// DefaultConsumer returns the consumer defaults.
func DefaultConsumer() *ConsumerConfig {
	return &ConsumerConfig{
		Names:     DefaultNames(),
		LogConfig: LogConfig{LogLevel: "warn"},
		Pacing:    pool.DefaultPacing,
	}
}

// DefaultSwarm returns the swarm defaults.
func DefaultSwarm() *SwarmConfig {
	return &SwarmConfig{
		ConsumerConfig: *DefaultConsumer(),
		Clients:        4,
		Requests:       10,
		MaxAmount:      7,
	}
}

// LoadOwner loads the owner configuration from the environment.
func LoadOwner() (*OwnerConfig, error) {
	var cfg OwnerConfig
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadConsumer loads the consumer configuration from the environment.
func LoadConsumer() (*ConsumerConfig, error) {
	var cfg ConsumerConfig
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadSwarm loads the swarm configuration from the environment.
func LoadSwarm() (*SwarmConfig, error) {
	var cfg SwarmConfig
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Verify checks the names. A segment and token with the same name are fine:
// they live in different files.
func (n Names) Verify() error {
	if _, err := shm.Path(n.Dir, n.Segment); err != nil {
		return fmt.Errorf("segment name: %w", err)
	}
	if _, err := shm.Path(n.Dir, n.Token); err != nil {
		return fmt.Errorf("token name: %w", err)
	}
	return nil
}

// Verify checks an owner configuration.
func (c *OwnerConfig) Verify() error {
	if err := c.Names.Verify(); err != nil {
		return err
	}
	if c.Total < 0 || c.Total > pool.MaxTotal {
		return fmt.Errorf("total %d out of range [0, %d]", c.Total, pool.MaxTotal)
	}
	if c.ReportPeriod <= 0 {
		return errors.New("report period must be positive")
	}
	return nil
}

// Verify checks a consumer configuration.
func (c *ConsumerConfig) Verify() error {
	if err := c.Names.Verify(); err != nil {
		return err
	}
	if c.Pacing < 0 {
		return errors.New("pacing must not be negative")
	}
	return nil
}

// Verify checks a swarm configuration.
func (c *SwarmConfig) Verify() error {
	if err := c.ConsumerConfig.Verify(); err != nil {
		return err
	}
	if c.Clients <= 0 {
		return errors.New("swarm needs at least one client")
	}
	if c.Requests <= 0 {
		return errors.New("swarm needs at least one request per client")
	}
	if c.MaxAmount < 0 {
		return errors.New("max amount must not be negative")
	}
	if c.Rate < 0 {
		return errors.New("rate must not be negative")
	}
	return nil
}

// ParseTotal parses a capacity argument. The whole string must be a
// decimal integer within [0, pool.MaxTotal].
func ParseTotal(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 || v > pool.MaxTotal {
		return 0, fmt.Errorf("invalid <total_tickets>: %s", s)
	}
	return v, nil
}
