package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/shm-pool/pkg/pool"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) TestLoadOwnerDefaults() {
	cfg, err := LoadOwner()
	s.Require().NoError(err)
	s.Require().Equal(DefaultOwner(), cfg)
	s.Require().NoError(cfg.Verify())
}

func (s *ConfigTestSuite) TestLoadConsumerDefaults() {
	cfg, err := LoadConsumer()
	s.Require().NoError(err)
	s.Require().Equal(DefaultConsumer(), cfg)
	s.Require().Equal(pool.DefaultPacing, cfg.Pacing)
	s.Require().Equal(pool.DefaultReportPeriod, DefaultOwner().ReportPeriod)
}

func (s *ConfigTestSuite) TestLoadOwnerFromEnv() {
	s.T().Setenv("SHMPOOL_TOTAL", "50")
	s.T().Setenv("SHMPOOL_SEGMENT", "/other_shm")
	s.T().Setenv("SHMPOOL_REPORT_PERIOD", "250ms")
	s.T().Setenv("SHMPOOL_LOG_LEVEL", "debug")

	cfg, err := LoadOwner()
	s.Require().NoError(err)
	s.Require().EqualValues(50, cfg.Total)
	s.Require().Equal("/other_shm", cfg.Segment)
	s.Require().Equal(DefaultToken, cfg.Token)
	s.Require().Equal(250*time.Millisecond, cfg.ReportPeriod)
	s.Require().Equal("debug", cfg.LogLevel)
}

func (s *ConfigTestSuite) TestLoadRejectsGarbage() {
	s.T().Setenv("SHMPOOL_PACING", "soon")
	_, err := LoadConsumer()
	s.Require().Error(err)
}

func (s *ConfigTestSuite) TestLoadSwarm() {
	s.T().Setenv("SHMPOOL_SWARM_CLIENTS", "9")
	s.T().Setenv("SHMPOOL_PACING", "0s")
	cfg, err := LoadSwarm()
	s.Require().NoError(err)
	s.Require().Equal(9, cfg.Clients)
	s.Require().Equal(time.Duration(0), cfg.Pacing)
	s.Require().NoError(cfg.Verify())
}

func (s *ConfigTestSuite) TestVerifyOwner() {
	cfg := DefaultOwner()
	cfg.Total = -1
	s.Require().Error(cfg.Verify())
	cfg.Total = pool.MaxTotal + 1
	s.Require().Error(cfg.Verify())
	cfg.Total = pool.MaxTotal
	s.Require().NoError(cfg.Verify())

	cfg.ReportPeriod = 0
	s.Require().Error(cfg.Verify())
	cfg.ReportPeriod = time.Second

	cfg.Segment = "/a/b"
	s.Require().Error(cfg.Verify())
	cfg.Segment = DefaultSegment
	cfg.Token = ""
	s.Require().Error(cfg.Verify())
}

func (s *ConfigTestSuite) TestVerifySwarm() {
	cfg := DefaultSwarm()
	s.Require().NoError(cfg.Verify())
	cfg.Clients = 0
	s.Require().Error(cfg.Verify())
	cfg.Clients = 1
	cfg.Requests = 0
	s.Require().Error(cfg.Verify())
	cfg.Requests = 1
	cfg.Rate = -1
	s.Require().Error(cfg.Verify())
	cfg.Rate = 0
	cfg.Pacing = -time.Second
	s.Require().Error(cfg.Verify())
}

func (s *ConfigTestSuite) TestParseTotal() {
	for in, want := range map[string]int64{"0": 0, "20": 20, " 7": 7, "100000000": pool.MaxTotal} {
		got, err := ParseTotal(in)
		s.Require().NoError(err, in)
		s.Require().Equal(want, got, in)
	}
	for _, in := range []string{"", "-1", "100000001", "12abc", "abc"} {
		_, err := ParseTotal(in)
		s.Require().Error(err, in)
	}
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
