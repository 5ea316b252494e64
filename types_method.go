/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

// HTTP methods recognized by the Method Dispatch component. Any other
// token parses fine (the Accumulator never rejects an unknown method) but
// falls through to the dispatcher's default case, which responds 405.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodDelete = "DELETE"
)
