/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import "strings"

// contentTypeByExtension maps a file extension (lowercase, with the dot) to
// the Content-Type this server serves it with. Detection is by extension
// only, never by sniffing file contents.
var contentTypeByExtension = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
}

// detectContentType returns the Content-Type for path based on its
// extension, defaulting to application/octet-stream.
func detectContentType(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		if ct, ok := contentTypeByExtension[strings.ToLower(path[i:])]; ok {
			return ct
		}
	}
	return "application/octet-stream"
}
