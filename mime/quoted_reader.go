package mime

import (
	"bytes"
	"io"
)

func (r *stickyErrorReader) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	n, r.err = r.r.Read(p)
	return n, r.err
}

// Read decodes quoted-printable data from the underlying reader.
func (q *QuotedReader) Read(p []byte) (n int, err error) {
	for len(p) > 0 {
		if len(q.line) == 0 {
			if q.rerr != nil {
				return n, q.rerr
			}
			q.line, q.rerr = q.br.ReadSlice('\n')
			if len(q.line) > 0 && q.rerr == io.EOF {
				q.rerr = nil
			}

			if bytes.HasSuffix(q.line, softSuffix) {
				q.line = q.line[:len(q.line)-1]
			} else {
				q.line = bytes.TrimRightFunc(q.line, isQPDiscardWhitespace)
				q.line = append(q.line, '\n')
			}
			continue
		}
		b := q.line[0]

		switch {
		case b == '=':
			if len(q.line) < 2 {
				return n, io.ErrUnexpectedEOF
			}
			if q.line[1] == '\n' {
				q.line = q.line[2:]
				continue
			}
			decoded, err := readHexByte(q.line[1:])
			if err != nil {
				return n, err
			}
			p[0] = decoded
			p = p[1:]
			n++
			q.line = q.line[3:]
		case b >= 0x80:
			return n, errInvalidQuotedPrintable
		default:
			p[0] = b
			p = p[1:]
			n++
			q.line = q.line[1:]
		}
	}
	return n, nil
}

var errInvalidQuotedPrintable = errQuotedPrintableByte("quotedprintable: invalid unescaped byte in body")

type errQuotedPrintableByte string

func (e errQuotedPrintableByte) Error() string { return string(e) }
