/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package session implements the opaque-id session store described by the
// Session & Cookie component: a process-wide map from session id to record,
// addressed by a cookie, with idle-based garbage collection.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/badu/originserv/cookie"
	"github.com/badu/originserv/hdr"
)

const (
	// CookieName is the name of the session-identifying cookie.
	CookieName = "session_id"

	// DefaultTTL is how long a session survives without activity.
	DefaultTTL = 30 * time.Minute
)

// Record is a server-side session record.
type Record struct {
	ID       string
	CreatedAt time.Time
	LastSeen  time.Time
	Data      map[string]string
}

// Store is the process-wide session table. It is not safe for concurrent
// use by multiple goroutines; the engine is single-threaded by design (see
// the concurrency model), so no locking is used here.
type Store struct {
	ttl      time.Duration
	sessions map[string]*Record
}

// NewStore creates an empty session store with the given idle TTL. A zero
// ttl selects DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*Record),
	}
}

// Resolve inspects the request headers for a recognizable session cookie.
// If it maps to a live record, that record is reused and its LastSeen
// refreshed and the returned cookie is nil. Otherwise a fresh record is
// minted and returned alongside the cookie to attach to the response as
// Set-Cookie.
func (s *Store) Resolve(h hdr.Header, now time.Time) (*Record, *cookie.Cookie) {
	if c, err := cookie.Get(h, CookieName); err == nil {
		if rec, ok := s.sessions[c.Value]; ok {
			rec.LastSeen = now
			return rec, nil
		}
	}

	id := uuid.New().String()
	rec := &Record{
		ID:        id,
		CreatedAt: now,
		LastSeen:  now,
		Data:      make(map[string]string),
	}
	s.sessions[id] = rec

	return rec, &cookie.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
	}
}

// GC drops every record whose LastSeen is older than the store's TTL.
func (s *Store) GC(now time.Time) {
	for id, rec := range s.sessions {
		if now.Sub(rec.LastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

// Len reports the number of live sessions. Exposed for tests.
func (s *Store) Len() int {
	return len(s.sessions)
}
