/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"github.com/badu/originserv/hdr"
)

// Request is a fully parsed HTTP/1.1 request head, with the body sliced out
// of the Accumulator's buffer once the Accumulator is Done.
type Request struct {
	Method  string
	Path    string
	Query   string
	Version string
	Header  hdr.Header
	Body    []byte
}

// ContentLength returns the request's declared body length, or 0 if absent.
func (r *Request) ContentLength() int64 {
	if r.Body == nil {
		return 0
	}
	return int64(len(r.Body))
}
