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

package pool_test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/srediag/shm-pool/pkg/pool"
)

func Example() {
	dir, err := os.MkdirTemp("", "shmpool")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	names := pool.Names{Segment: "/ticket_shm", Token: "/ticket_sem", Dir: dir}

	office, err := pool.Create(ctx, pool.OwnerConfig{Names: names, Total: 8})
	if err != nil {
		panic(err)
	}
	defer office.Teardown()

	buyer, err := pool.Attach(ctx, pool.ConsumerConfig{Names: names})
	if err != nil {
		panic(err)
	}
	defer buyer.Detach()

	for _, n := range []int64{7, 0, 9} {
		fmt.Println(buyer.RequestAllocation(ctx, n))
	}
	_ = office.ReportLoop(ctx, time.Second, os.Stdout)

	// Output:
	// granted: requested 7, granted 5, available 3
	// invalid: requested 0, granted 0, available 3
	// granted: requested 9, granted 3, available 0
	// TICKET REPORT:
	// Purchased tickets: 8
	// Available tickets: 0
	// Transactions: 2
	// SOLD OUT...
}
