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
	"bufio"
	"bytes"
	"context"
	"io"
	"math"
	"strings"

	"github.com/Workiva/go-datastructures/queue"
)

const (
	inputQueueHint = 16
	// maxInputLine bounds one request line; the rest of a longer line is
	// dropped so it still counts as a single attempt.
	maxInputLine = 4096
)

type inputItem struct {
	line string
	err  error
}

// lineQueue decouples reading the input stream from the purchase loop so
// that cancellation never waits on a blocked read.
type lineQueue struct {
	q    *queue.Queue
	stop func() bool
}

func readLines(ctx context.Context, r io.Reader) *lineQueue {
	lq := &lineQueue{q: queue.New(inputQueueHint)}
	lq.stop = context.AfterFunc(ctx, func() { lq.q.Dispose() })
	go func() {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, maxInputLine), maxInputLine)
		sc.Split(scanRequestLines(maxInputLine))
		for sc.Scan() {
			if err := lq.q.Put(inputItem{line: sc.Text()}); err != nil {
				return
			}
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		_ = lq.q.Put(inputItem{err: err})
	}()
	return lq
}

// scanRequestLines splits like bufio.ScanLines but never fails on a long
// line: the first limit bytes are returned and the remainder, up to and
// including its newline, is skipped.
func scanRequestLines(limit int) bufio.SplitFunc {
	skipping := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			if skipping {
				skipping = false
				return i + 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
		switch {
		case len(data) >= limit && skipping:
			return len(data), nil, nil
		case len(data) >= limit:
			skipping = true
			return len(data), data[:limit], nil
		case atEOF && len(data) > 0:
			if skipping {
				return len(data), nil, nil
			}
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// next returns the next line, io.EOF at the end of input, or ErrInterrupted
// once the queue was disposed.
func (lq *lineQueue) next() (string, error) {
	items, err := lq.q.Get(1)
	if err != nil || len(items) == 0 {
		return "", ErrInterrupted
	}
	it := items[0].(inputItem)
	return it.line, it.err
}

func (lq *lineQueue) close() {
	lq.stop()
	lq.q.Dispose()
}

// parseRequest reads a leading decimal integer the way strtol does: leading
// whitespace and a sign are accepted, trailing text is ignored, and values
// out of range saturate.
func parseRequest(line string) (int64, bool) {
	s := strings.TrimLeft(line, " \t\n\v\f\r")
	i, neg := 0, false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	start := i
	var v int64
	overflow := false
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		d := int64(s[i] - '0')
		if overflow {
			continue
		}
		if v > (math.MaxInt64-d)/10 {
			overflow = true
			continue
		}
		v = v*10 + d
	}
	if i == start {
		return 0, false
	}
	switch {
	case overflow && neg:
		return math.MinInt64, true
	case overflow:
		return math.MaxInt64, true
	case neg:
		return -v, true
	}
	return v, true
}
