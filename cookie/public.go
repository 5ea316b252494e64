/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package cookie

import (
	"github.com/badu/originserv/hdr"
)

// Parse parses and returns the cookies sent in a request's Cookie header.
func Parse(h hdr.Header) []*Cookie {
	return readCookies(h, "")
}

// ParseSetCookies parses and returns the cookies set in a response's
// Set-Cookie headers.
func ParseSetCookies(h hdr.Header) []*Cookie {
	return readSetCookies(h)
}

// Get returns the named cookie provided in the header, or ErrNoCookie
// if not found. If multiple cookies match the given name, only the
// first is returned.
func Get(h hdr.Header, name string) (*Cookie, error) {
	for _, c := range readCookies(h, name) {
		return c, nil
	}
	return nil, ErrNoCookie
}

// Add attaches a cookie to an outgoing request's header. Per RFC 6265
// section 5.4, Add does not attach more than one Cookie header field;
// all cookies are written into the same line, separated by semicolons.
func Add(h hdr.Header, c *Cookie) {
	s := sanitizeCookieName(c.Name) + "=" + sanitizeCookieValue(c.Value)
	if existing := h.Get(hdr.CookieHeader); existing != "" {
		h.Set(hdr.CookieHeader, existing+"; "+s)
	} else {
		h.Set(hdr.CookieHeader, s)
	}
}

// SetHeader adds a Set-Cookie header entry to h. The cookie must have a
// valid Name; invalid cookies are silently dropped.
func SetHeader(h hdr.Header, c *Cookie) {
	if v := c.String(); v != "" {
		h.Add(hdr.SetCookieHeader, v)
	}
}
