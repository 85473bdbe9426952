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
	"context"
	"fmt"

	"go.uber.org/multierr"

	internalshm "github.com/srediag/shm-pool/internal/shm"
	"github.com/srediag/shm-pool/internal/token"
	"github.com/srediag/shm-pool/pkg/shm"
)

// Resource is one of the two names of a pool.
type Resource struct {
	Kind    string
	Path    string
	Present bool
}

// Resources reports where the segment and the token of names live and
// whether they exist.
func Resources(names Names) ([]Resource, error) {
	segPath, err := internalshm.Path(names.Dir, names.Segment)
	if err != nil {
		return nil, err
	}
	tokPath, err := internalshm.Path(names.Dir, token.FileName(names.Token))
	if err != nil {
		return nil, err
	}
	if _, err := internalshm.Path(names.Dir, names.Token); err != nil {
		return nil, err
	}
	return []Resource{
		{Kind: "segment", Path: segPath, Present: internalshm.Exists(segPath)},
		{Kind: "token", Path: tokPath, Present: internalshm.Exists(tokPath)},
	}, nil
}

// Remove deletes both names without attaching to them and returns the
// ones that existed. It recovers from an owner that died before its
// teardown; running it under a live owner cuts that owner's consumers off
// from new attaches.
func Remove(names Names) ([]Resource, error) {
	res, err := Resources(names)
	if err != nil {
		return nil, err
	}
	err = multierr.Append(
		shm.Unlink(names.segmentOptions()),
		token.Unlink(names.Dir, names.Token))
	var removed []Resource
	for _, r := range res {
		if r.Present && !internalshm.Exists(r.Path) {
			removed = append(removed, r)
		}
	}
	return removed, err
}

// Inspect attaches to the pool of names, takes one snapshot and detaches.
// It returns the snapshot and the pid of the owner that created the pool.
func Inspect(ctx context.Context, names Names, opts ...Option) (State, int64, error) {
	c, err := Attach(ctx, ConsumerConfig{Names: names, ID: "inspect"}, opts...)
	if err != nil {
		return State{}, 0, err
	}
	defer c.Detach()

	var st State
	if err := c.guard.Do(ctx, func(s *shm.Segment) { st = s.Snapshot() }); err != nil {
		return State{}, 0, err
	}
	if err := st.Check(); err != nil {
		return st, c.seg.OwnerPID(), fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return st, c.seg.OwnerPID(), nil
}
