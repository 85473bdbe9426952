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
	"io"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// WriteReport writes one owner report record.
func WriteReport(w io.Writer, st State) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.B = append(buf.B, "TICKET REPORT:\nPurchased tickets: "...)
	buf.B = strconv.AppendInt(buf.B, st.Allocated, 10)
	buf.B = append(buf.B, "\nAvailable tickets: "...)
	buf.B = strconv.AppendInt(buf.B, st.Available, 10)
	buf.B = append(buf.B, "\nTransactions: "...)
	buf.B = strconv.AppendInt(buf.B, st.Transactions, 10)
	buf.B = append(buf.B, '\n')
	_, err := w.Write(buf.B)
	return err
}

// WriteSoldOut writes the terminal exhaustion marker.
func WriteSoldOut(w io.Writer) error {
	_, err := io.WriteString(w, "SOLD OUT...\n")
	return err
}

// WriteEcho echoes what a consumer read: the parsed amount, or the raw line
// when it held no number.
func WriteEcho(w io.Writer, requested int64, parsed bool, raw string) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if parsed {
		buf.B = strconv.AppendInt(buf.B, requested, 10)
	} else {
		buf.B = append(buf.B, raw...)
	}
	buf.B = append(buf.B, '\n')
	_, err := w.Write(buf.B)
	return err
}

// WriteOutcome writes the status line for a purchase. Failed outcomes have
// no status line; the caller reports the error.
func WriteOutcome(w io.Writer, o Outcome) error {
	if o.Kind == OutcomeFailed {
		return nil
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	switch o.Kind {
	case OutcomeInvalid:
		buf.B = append(buf.B, "Try again, invalid number of tickets\n"...)
	case OutcomeInterrupted:
		buf.B = append(buf.B, "Purchase interrupted\n"...)
	}
	buf.B = append(buf.B, "Company purchased "...)
	buf.B = strconv.AppendInt(buf.B, o.Granted, 10)
	buf.B = append(buf.B, " tickets. Available: "...)
	buf.B = strconv.AppendInt(buf.B, o.Available, 10)
	buf.B = append(buf.B, "\n\n"...)
	_, err := w.Write(buf.B)
	return err
}
