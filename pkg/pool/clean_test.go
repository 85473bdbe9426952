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
	"os"
	"path/filepath"

	"github.com/srediag/shm-pool/internal/token"
)

func (s *PoolTestSuite) TestInspect() {
	s.newOwner(20)
	c := s.attach()
	c.RequestAllocation(s.ctx, 4)

	st, pid, err := Inspect(s.ctx, s.names)
	s.Require().NoError(err)
	s.Equal(State{Total: 20, Available: 16, Allocated: 4, Transactions: 1}, st)
	s.EqualValues(os.Getpid(), pid)
}

func (s *PoolTestSuite) TestInspectMissing() {
	_, _, err := Inspect(s.ctx, s.names)
	s.ErrorIs(err, ErrNotFound)
}

func (s *PoolTestSuite) TestRemoveLeftovers() {
	owner, err := Create(s.ctx, OwnerConfig{Names: s.names, Total: 20})
	s.Require().NoError(err)
	// simulate a crash: drop the handles but keep the names
	s.Require().NoError(owner.seg.Close())
	s.Require().NoError(owner.tok.Close())

	res, err := Resources(s.names)
	s.Require().NoError(err)
	s.Len(res, 2)
	s.True(res[0].Present)
	s.True(res[1].Present)

	removed, err := Remove(s.names)
	s.Require().NoError(err)
	s.Len(removed, 2)
	s.Equal(filepath.Join(s.names.Dir, "ticket_shm"), removed[0].Path)
	s.Equal(filepath.Join(s.names.Dir, token.FileName(s.names.Token)), removed[1].Path)

	removed, err = Remove(s.names)
	s.Require().NoError(err)
	s.Empty(removed)

	fresh := s.newOwner(5)
	s.Equal(s.names, fresh.Names())
}

func (s *PoolTestSuite) TestResourcesInvalidName() {
	names := s.names
	names.Segment = "/a/b"
	_, err := Resources(names)
	s.Error(err)
}
