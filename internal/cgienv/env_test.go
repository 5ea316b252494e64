package cgienv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/badu/originserv/hdr"
)

func TestBuildSetsStandardVariables(t *testing.T) {
	req := Request{
		Method:        "GET",
		Path:          "/cgi-bin/hello.py",
		Query:         "a=1",
		Version:       "HTTP/1.1",
		ContentLength: 0,
		Headers: hdr.Header{
			hdr.UserAgent: {"curl/8.0"},
			hdr.Host:      {"example.com"},
		},
	}

	env := Build(nil, req, "/var/www/cgi-bin/hello.py")

	assert.Contains(t, env, "REQUEST_METHOD=GET")
	assert.Contains(t, env, "SCRIPT_FILENAME=/var/www/cgi-bin/hello.py")
	assert.Contains(t, env, "QUERY_STRING=a=1")
	assert.Contains(t, env, "HTTP_USER_AGENT=curl/8.0")
	assert.Contains(t, env, "HTTP_HOST=example.com")
}

func TestBuildIncludesContentLengthAndType(t *testing.T) {
	req := Request{
		Method:        "POST",
		ContentLength: 42,
		Headers: hdr.Header{
			hdr.ContentType: {"application/json"},
		},
	}

	env := Build(nil, req, "/x.py")
	assert.Contains(t, env, "CONTENT_LENGTH=42")
	assert.Contains(t, env, "CONTENT_TYPE=application/json")
}
