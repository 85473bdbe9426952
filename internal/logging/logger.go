/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
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

// Package logging provides the leveled, named loggers used by every shm-pool
// component. Diagnostics always go to stderr: stdout carries the report and
// outcome lines other tools parse.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLogLevel overrides the configured level.
const EnvLogLevel = "SHMPOOL_LOG_LEVEL"

// Component logger names.
const (
	Owner    = "owner"
	Consumer = "consumer"
	Swarm    = "swarm"
	Admin    = "admin"
)

// level is shared by every logger built here so SetLogLevel takes effect
// on loggers that already exist.
var level = zap.NewAtomicLevelAt(zapcore.WarnLevel)

func init() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		_ = SetLogLevel(v)
	}
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{Level: "warn"}
}

// SetLogLevel changes the level of all loggers. The default level is warn.
func SetLogLevel(l string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(l))); err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// New builds a logger. An explicit EnvLogLevel wins over cfg.Level.
func New(cfg Config) (*zap.Logger, error) {
	if os.Getenv(EnvLogLevel) == "" && cfg.Level != "" {
		if err := SetLogLevel(cfg.Level); err != nil {
			return nil, err
		}
	}
	zapCfg := zap.Config{
		Level:             level,
		Development:       cfg.Development,
		Encoding:          encodingFormat(cfg.Development),
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}
	return zapCfg.Build()
}

// NewDefault builds a logger from DefaultConfig, falling back to a no-op
// logger if zap cannot open stderr.
func NewDefault() *zap.Logger {
	l, err := New(DefaultConfig())
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func encodingFormat(development bool) string {
	if development {
		return "console"
	}
	return "json"
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
