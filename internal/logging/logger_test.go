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

package logging

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerTestSuite struct {
	suite.Suite
	saved zapcore.Level
}

func (s *LoggerTestSuite) SetupTest() {
	s.saved = level.Level()
}

func (s *LoggerTestSuite) TearDownTest() {
	level.SetLevel(s.saved)
}

func (s *LoggerTestSuite) TestSetLogLevel() {
	s.Require().NoError(SetLogLevel("DEBUG"))
	s.Require().Equal(zapcore.DebugLevel, level.Level())
	s.Require().Error(SetLogLevel("loud"))
	s.Require().Equal(zapcore.DebugLevel, level.Level())
}

func (s *LoggerTestSuite) TestNewSharesLevel() {
	s.T().Setenv(EnvLogLevel, "")
	l, err := New(Config{Level: "error"})
	s.Require().NoError(err)
	s.Require().False(l.Core().Enabled(zapcore.WarnLevel))

	s.Require().NoError(SetLogLevel("info"))
	s.Require().True(l.Core().Enabled(zapcore.InfoLevel))

	l.Named(Owner).Info("this is info", zap.String("k", "v"))
}

func (s *LoggerTestSuite) TestEnvWins() {
	s.T().Setenv(EnvLogLevel, "debug")
	s.Require().NoError(SetLogLevel("debug"))
	_, err := New(Config{Level: "error"})
	s.Require().NoError(err)
	s.Require().Equal(zapcore.DebugLevel, level.Level())
}

func (s *LoggerTestSuite) TestBadLevel() {
	s.T().Setenv(EnvLogLevel, "")
	_, err := New(Config{Level: "loud"})
	s.Require().Error(err)
}

func (s *LoggerTestSuite) TestOrNop() {
	s.Require().NotNil(OrNop(nil))
	l := NewDefault()
	s.Require().Same(l, OrNop(l))
}

func TestLoggerTestSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
