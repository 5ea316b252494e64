/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import "strconv"

// statusText maps the status codes this server actually emits to their
// reason phrase. Unlike a general-purpose HTTP library this does not
// attempt to cover the full IANA registry.
var statusText = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	415: "Unsupported Media Type",
	500: "Internal Server Error",
	502: "Bad Gateway",
	504: "Gateway Timeout",
}

// statusTextFor returns the reason phrase for code, or "status code N" if
// the code is not one this server emits.
func statusTextFor(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "status code " + strconv.Itoa(code)
}
