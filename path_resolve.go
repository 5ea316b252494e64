/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"path/filepath"
	"strings"

	"github.com/badu/originserv/internal/config"
)

// ResolveFilePath maps a request path to a filesystem path under
// server.Root/route.Root, refusing to escape that base directory via ".."
// or a symlink. It returns ("", false) when the target cannot be proven to
// lie under the base.
//
// The target itself need not exist: if it doesn't, the target's parent is
// canonicalized instead and accepted as long as the parent is a descendant
// of base, which lets PUT-style uploads name a file that doesn't exist yet.
func ResolveFilePath(srv *config.Server, route *config.Route, requestPath string) (string, bool) {
	base := filepath.Join(srv.Root, route.Root)
	basePath, err := filepath.EvalSymlinks(base)
	if err != nil {
		return "", false
	}

	relative := strings.TrimPrefix(requestPath, route.Path)
	relative = strings.TrimPrefix(relative, "/")

	full := filepath.Join(basePath, relative)
	if canonical, err := filepath.EvalSymlinks(full); err == nil {
		if !isDescendant(basePath, canonical) {
			return "", false
		}
		return canonical, true
	}

	parent := filepath.Dir(full)
	canonicalParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return "", false
	}
	if !isDescendant(basePath, canonicalParent) {
		return "", false
	}
	return full, true
}

func isDescendant(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
