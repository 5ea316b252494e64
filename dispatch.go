/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/badu/originserv/hdr"
	"github.com/badu/originserv/internal/config"
	"github.com/badu/originserv/mime"
)

const maxMultipartMemory = 10 << 20 // 10 MiB spooled to memory before overflowing to temp files

// Dispatch selects the route for req.Path, checks the method is allowed by
// that route, and hands off to the GET/POST/DELETE handler. extraHeader, if
// non-empty, is a single "Name: value\r\n" line appended to the response
// (used to attach Set-Cookie on the first request of a session).
func Dispatch(srv *config.Server, req *Request, extraHeader string) Producer {
	route := FindMatchingRoute(srv, req.Path)
	if route == nil {
		return errorResponse(srv, 404)
	}
	if route.Redirect != "" {
		return redirectResponse(route.Redirect, extraHeader)
	}
	if !route.AllowsMethod(req.Method) {
		return methodNotAllowedResponse(route)
	}

	switch req.Method {
	case MethodGet:
		return handleGet(srv, route, req, extraHeader)
	case MethodPost:
		return handlePost(srv, route, req, extraHeader)
	case MethodDelete:
		return handleDelete(srv, route, req)
	default:
		return methodNotAllowedResponse(route)
	}
}

func handleGet(srv *config.Server, route *config.Route, req *Request, extraHeader string) Producer {
	if route.ListDirectory {
		dirPath, ok := ResolveFilePath(srv, route, req.Path)
		if !ok {
			return errorResponse(srv, 404)
		}
		if info, err := os.Stat(dirPath); err == nil && info.IsDir() {
			body, err := renderDirectoryListing(dirPath, route.Path)
			if err != nil {
				return errorResponse(srv, 404)
			}
			return simpleResponse(200, "text/html", body, extraHeader)
		}
	}

	if route.DefaultFile != "" && strings.Trim(req.Path, "/") == strings.Trim(route.Path, "/") {
		fullPath, ok := ResolveFilePath(srv, route, route.Path+"/"+route.DefaultFile)
		if ok {
			if p, err := serveFile(fullPath, extraHeader); err == nil {
				return p
			}
		}
		return errorResponse(srv, 404)
	}

	fullPath, ok := ResolveFilePath(srv, route, req.Path)
	if !ok {
		return errorResponse(srv, 404)
	}
	p, err := serveFile(fullPath, extraHeader)
	if err != nil {
		return errorResponse(srv, 404)
	}
	return p
}

func handleDelete(srv *config.Server, route *config.Route, req *Request) Producer {
	fullPath, ok := ResolveFilePath(srv, route, req.Path)
	if !ok {
		return errorResponse(srv, 404)
	}
	if err := os.Remove(fullPath); err != nil {
		return errorResponse(srv, 404)
	}
	return simpleResponse(204, "", nil, "")
}

func handlePost(srv *config.Server, route *config.Route, req *Request, extraHeader string) Producer {
	if len(req.Body) == 0 {
		return simpleResponse(400, "text/plain", []byte("Empty body"), "")
	}

	contentType := req.Header.Get(hdr.ContentType)
	if contentType == "" {
		return simpleResponse(400, "text/plain", []byte("Missing Content-Type"), "")
	}

	saveDir, ok := ResolveFilePath(srv, route, req.Path)
	if !ok {
		return errorResponse(srv, 404)
	}

	switch {
	case isDirectUploadType(contentType):
		filename := directUploadFilename(req.Path, contentType)
		dir := saveDir
		if info, err := os.Stat(saveDir); err != nil || !info.IsDir() {
			dir = filepath.Dir(saveDir)
		}
		if err := os.WriteFile(joinUploadPath(dir, filename), req.Body, 0o644); err != nil {
			return simpleResponse(500, "text/plain", []byte("Failed to save file"), "")
		}
		return simpleResponse(201, "text/plain", []byte("Created"), extraHeader)

	case strings.HasPrefix(contentType, "multipart/form-data"):
		_, params, err := mime.MIMEParseMediaType(contentType)
		if err != nil || params["boundary"] == "" {
			return simpleResponse(400, "text/plain", []byte("Missing multipart boundary"), "")
		}
		return handleMultipartUpload(saveDir, req.Body, params["boundary"], extraHeader)

	default:
		return simpleResponse(415, "text/plain", []byte("Unsupported Content-Type"), "")
	}
}

func handleMultipartUpload(saveDir string, body []byte, boundary string, extraHeader string) Producer {
	form, err := mime.NewMultipartReader(bytes.NewReader(body), boundary).ReadForm(maxMultipartMemory)
	if err != nil {
		return simpleResponse(400, "text/plain", []byte("Invalid multipart body"), "")
	}
	defer form.RemoveAll()

	var saved []string
	for _, headers := range form.File {
		for _, fh := range headers {
			src, err := fh.Open()
			if err != nil {
				return simpleResponse(500, "text/plain", []byte("Failed to read upload"), "")
			}
			dst, err := os.Create(joinUploadPath(saveDir, fh.Filename))
			if err != nil {
				src.Close()
				return simpleResponse(500, "text/plain", []byte("Failed to save file"), "")
			}
			_, copyErr := io.Copy(dst, src)
			src.Close()
			dst.Close()
			if copyErr != nil {
				return simpleResponse(500, "text/plain", []byte("Failed to save file"), "")
			}
			saved = append(saved, fh.Filename)
		}
	}

	if len(saved) == 0 {
		return simpleResponse(400, "text/plain", []byte("Invalid multipart body or no files found"), "")
	}
	msg := fmt.Sprintf("Successfully uploaded %d file(s): %s", len(saved), strings.Join(saved, ", "))
	return simpleResponse(201, "text/plain", []byte(msg), extraHeader)
}

func isDirectUploadType(contentType string) bool {
	for _, prefix := range []string{"application/", "image/", "audio/", "video/", "font/", "text/"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// directUploadFilename picks the file's on-disk name for a direct (non-
// multipart) upload: the request path's last segment if it looks like a
// filename, otherwise a generated upload_<uuid>.<ext> name derived from the
// Content-Type's subtype.
func directUploadFilename(requestPath, contentType string) string {
	segments := strings.Split(requestPath, "/")
	last := segments[len(segments)-1]
	if last != "" && strings.Contains(last, ".") {
		return last
	}
	ext := "dat"
	if _, sub, found := strings.Cut(contentType, "/"); found {
		if i := strings.IndexByte(sub, ';'); i >= 0 {
			sub = sub[:i]
		}
		ext = sub
	}
	return "upload_" + uuid.New().String() + "." + ext
}

func joinUploadPath(dir, filename string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + filename
	}
	return dir + "/" + filename
}

func serveFile(path string, extraHeader string) (Producer, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, os.ErrNotExist
	}
	return NewFileResponse(path, info.Size(), detectContentType(path), extraHeader)
}

func simpleResponse(status int, contentType string, body []byte, extraHeader string) *SimpleResponse {
	var head bytes.Buffer
	_ = hdr.WriteStatusLine(&head, status, statusTextFor(status))
	fmt.Fprintf(&head, "Content-Length: %d\r\n", len(body))
	if contentType != "" {
		fmt.Fprintf(&head, "Content-Type: %s\r\n", contentType)
	}
	head.WriteString(extraHeader)
	head.WriteString("\r\n")
	head.Write(body)
	return NewSimpleResponse(head.Bytes())
}

func redirectResponse(location, extraHeader string) *SimpleResponse {
	var head bytes.Buffer
	_ = hdr.WriteStatusLine(&head, 301, statusTextFor(301))
	fmt.Fprintf(&head, "Location: %s\r\nContent-Length: 0\r\n", location)
	head.WriteString(extraHeader)
	head.WriteString("\r\n")
	return NewSimpleResponse(head.Bytes())
}

func methodNotAllowedResponse(route *config.Route) *SimpleResponse {
	var head bytes.Buffer
	_ = hdr.WriteStatusLine(&head, 405, statusTextFor(405))
	fmt.Fprintf(&head, "Allow: %s\r\nContent-Length: 0\r\n\r\n", strings.Join(route.Methods, ", "))
	return NewSimpleResponse(head.Bytes())
}

// errorResponse serves the error page ErrorPagePath names for status (the
// server's configured page, else ./error_pages/<code>.html), or a minimal
// generated body if that file cannot be read.
func errorResponse(srv *config.Server, status int) *SimpleResponse {
	path := ErrorPagePath(srv, status)
	if content, err := os.ReadFile(path); err == nil {
		return simpleResponse(status, "text/html", content, "")
	}
	return simpleResponse(status, "text/plain", []byte(statusTextFor(status)), "")
}

// renderDirectoryListing produces a minimal HTML index of fsPath's entries,
// sorted by name, with a trailing "/" on subdirectory links.
func renderDirectoryListing(fsPath, routePath string) ([]byte, error) {
	entries, err := os.ReadDir(fsPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	isDir := make(map[string]bool, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		isDir[e.Name()] = e.IsDir()
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteString("<html><head><title>Index of " + html.EscapeString(routePath) + "</title></head><body>\n")
	buf.WriteString("<h1>Index of " + html.EscapeString(routePath) + "</h1>\n<ul>\n")
	for _, name := range names {
		display := name
		if isDir[name] {
			display += "/"
		}
		buf.WriteString("<li><a href=\"" + html.EscapeString(display) + "\">" + html.EscapeString(display) + "</a></li>\n")
	}
	buf.WriteString("</ul>\n</body></html>\n")
	return buf.Bytes(), nil
}
