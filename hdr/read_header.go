/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"bytes"
	"fmt"
)

// ReadHeader reads header lines (key: value, with RFC 822 folding)
// up to and including the blank line that terminates them, and
// returns the parsed Header.
func (r *HeaderReader) ReadHeader() (Header, error) {
	h := make(Header, 4)
	for {
		kv, err := r.readContinuedLineSlice()
		if len(kv) == 0 {
			return h, err
		}

		i := bytes.IndexByte(kv, ':')
		if i < 0 {
			return h, fmt.Errorf("hdr: malformed header line: %q", string(kv))
		}
		key := CanonicalHeaderKey(string(trim(kv[:i])))
		if key == "" {
			continue
		}
		i++
		for i < len(kv) && isLWS(kv[i]) {
			i++
		}
		value := string(trim(kv[i:]))
		h[key] = append(h[key], value)

		if err != nil {
			return h, err
		}
	}
}

// readContinuedLineSlice reads a line and its continuation lines (lines
// beginning with a space or tab) and returns the joined, trimmed bytes.
func (r *HeaderReader) readContinuedLineSlice() ([]byte, error) {
	line, err := r.readLineSlice()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, err
	}

	if r.R.Buffered() > 0 {
		peek, _ := r.R.Peek(1)
		if len(peek) > 0 && isLWS(peek[0]) {
			r.buf = append(r.buf[:0], trim(line)...)
			for len(peek) > 0 && isLWS(peek[0]) {
				cont, cerr := r.readLineSlice()
				r.buf = append(r.buf, ' ')
				r.buf = append(r.buf, trim(cont)...)
				if cerr != nil {
					return r.buf, cerr
				}
				if r.R.Buffered() == 0 {
					break
				}
				peek, _ = r.R.Peek(1)
			}
			return r.buf, nil
		}
	}
	return line, nil
}

// readLineSlice reads a single \r\n or \n terminated line, excluding the
// terminator, bounded to the reader's current buffering.
func (r *HeaderReader) readLineSlice() ([]byte, error) {
	var line []byte
	for {
		l, more, err := r.R.ReadLine()
		if err != nil {
			return nil, err
		}
		if line == nil && !more {
			return l, nil
		}
		line = append(line, l...)
		if !more {
			break
		}
	}
	return line, nil
}
