/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package originserv

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/badu/originserv/hdr"
)

const fileBufferSize = 8192

// FileResponse is a Producer that streams a status line, headers and then
// a file's contents in fixed-size chunks, opening the file lazily so that
// a Dispatch decision never blocks on disk I/O before the connection is
// known to be write-ready.
type FileResponse struct {
	path string
	file *os.File

	headers      []byte
	headersIndex int
	headersSent  bool

	buffer   [fileBufferSize]byte
	bufLen   int
	bufIndex int
	finished bool
}

// NewFileResponse prepares a 200 OK response of the given size and content
// type, with any extra response headers (such as Set-Cookie) appended
// verbatim. The file itself is opened lazily, on the first FillIfNeeded
// call after the headers have been written, so that selecting a File
// response never blocks on disk I/O before the connection is known to be
// write-ready.
func NewFileResponse(path string, size int64, contentType string, extraHeaders string) (*FileResponse, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	var head bytes.Buffer
	_ = hdr.WriteStatusLine(&head, 200, statusTextFor(200))
	fmt.Fprintf(&head, "Content-Length: %d\r\nContent-Type: %s\r\n%s\r\n", size, contentType, extraHeaders)
	return &FileResponse{
		path:    path,
		headers: head.Bytes(),
	}, nil
}

func (f *FileResponse) Peek() []byte {
	if !f.headersSent {
		return f.headers[f.headersIndex:]
	}
	return f.buffer[f.bufIndex:f.bufLen]
}

func (f *FileResponse) Advance(n int) {
	if !f.headersSent {
		f.headersIndex += n
		if f.headersIndex >= len(f.headers) {
			f.headersSent = true
		}
		return
	}
	f.bufIndex += n
}

func (f *FileResponse) IsFinished() bool {
	return f.headersSent && f.finished && f.bufIndex >= f.bufLen
}

func (f *FileResponse) FillIfNeeded() error {
	if !f.headersSent || f.finished || f.bufIndex < f.bufLen {
		return nil
	}
	if f.file == nil {
		file, err := os.Open(f.path)
		if err != nil {
			f.finished = true
			return err
		}
		f.file = file
	}
	n, err := f.file.Read(f.buffer[:])
	f.bufIndex = 0
	f.bufLen = n
	if err == io.EOF || n == 0 {
		f.finished = true
		return nil
	}
	if err != nil {
		f.finished = true
		return err
	}
	return nil
}

func (f *FileResponse) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
