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

//go:build linux

package pool

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/srediag/shm-pool/pkg/shm"
)

func (s *PoolTestSuite) TestRunScript() {
	owner := s.newOwner(20)
	c := s.attach()

	var out bytes.Buffer
	err := c.Run(s.ctx, strings.NewReader("7\nabc\n0\n 3 tickets\r\n"), &out)
	s.Require().NoError(err)
	s.Equal("7\nCompany purchased 5 tickets. Available: 15\n\n"+
		"abc\nTry again, invalid number of tickets\nCompany purchased 0 tickets. Available: 15\n\n"+
		"0\nTry again, invalid number of tickets\nCompany purchased 0 tickets. Available: 15\n\n"+
		"3\nCompany purchased 3 tickets. Available: 12\n\n"+
		"\n", out.String())

	st, err := owner.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal(State{Total: 20, Available: 12, Allocated: 8, Transactions: 2}, st)
}

func (s *PoolTestSuite) TestRunLongLine() {
	owner := s.newOwner(20)
	c := s.attach()

	var out bytes.Buffer
	in := strings.Repeat("x", 70000) + "\n3\n"
	s.Require().NoError(c.Run(s.ctx, strings.NewReader(in), &out))
	s.Equal(strings.Repeat("x", maxInputLine)+"\nTry again, invalid number of tickets\nCompany purchased 0 tickets. Available: 20\n\n"+
		"3\nCompany purchased 3 tickets. Available: 17\n\n"+
		"\n", out.String())

	st, err := owner.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal(State{Total: 20, Available: 17, Allocated: 3, Transactions: 1}, st)
}

func (s *PoolTestSuite) TestRunStopsWhenSoldOut() {
	s.newOwner(5)
	c := s.attach()

	var out bytes.Buffer
	s.Require().NoError(c.Run(s.ctx, strings.NewReader("5\n5\n"), &out))
	s.Equal("5\nCompany purchased 5 tickets. Available: 0\n\n", out.String())
}

func (s *PoolTestSuite) TestRunEmptyPool() {
	s.newOwner(0)
	c := s.attach()

	var out bytes.Buffer
	s.Require().NoError(c.Run(s.ctx, strings.NewReader("1\n"), &out))
	s.Empty(out.String())
}

func (s *PoolTestSuite) TestRunCancelledWhileReading() {
	s.newOwner(20)
	c := s.attach()
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	s.Require().NoError(c.Run(ctx, r, &out))
	s.Empty(out.String())
}

func (s *PoolTestSuite) TestRunCancelledWhilePacing() {
	s.newOwner(20)
	c, err := Attach(s.ctx, ConsumerConfig{Names: s.names, Pacing: time.Hour})
	s.Require().NoError(err)
	defer c.Detach()

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	s.Require().NoError(c.Run(ctx, strings.NewReader("1\n2\n"), &out))
	s.Equal("1\nCompany purchased 1 tickets. Available: 19\n\n", out.String())
}

// lockedBuffer lets a test read Run's output while Run is still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (s *PoolTestSuite) TestRunInterruptedWhileWaiting() {
	owner := s.newOwner(20)
	c := s.attach()
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	var out lockedBuffer
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, r, &out) }()

	s.Require().Eventually(func() bool { return c.last.Load() == 20 }, time.Second, time.Millisecond)
	tok := s.holdToken()
	_, err := io.WriteString(w, "2\n")
	s.Require().NoError(err)
	s.Require().Eventually(func() bool { return out.String() == "2\n" }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("Run did not return after cancellation")
	}
	s.Equal("2\nPurchase interrupted\nCompany purchased 0 tickets. Available: 20\n\n", out.String())

	s.Require().NoError(tok.Post())
	st, err := owner.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Zero(st.Transactions)
}

func (s *PoolTestSuite) TestRunTokenFailure() {
	s.newOwner(20)
	c := s.attach()
	s.Require().NoError(c.tok.Close())

	var out bytes.Buffer
	err := c.Run(s.ctx, strings.NewReader("1\n"), &out)
	s.Require().ErrorIs(err, ErrSyncFailure)
	s.True(IsFatal(err))
}

func (s *PoolTestSuite) TestGuardReleasesOnPanic() {
	owner := s.newOwner(20)

	s.Panics(func() {
		_ = owner.guard.Do(s.ctx, func(*shm.Segment) { panic("boom") })
	})
	s.False(owner.tok.Held())

	c := s.attach()
	s.Equal(OutcomeGranted, c.RequestAllocation(s.ctx, 1).Kind)
}
