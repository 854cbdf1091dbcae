// Package handshake validates HTTP Upgrade requests and builds the
// responses that promote a TCP connection to WebSocket (RFC 6455 §4).
//
// The package is pure: it parses and validates accumulated request bytes
// and renders response bytes. Reading the request off the socket, with its
// bounded retry budget, is the transport's job.
package handshake

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"
)

// acceptGUID is the protocol-mandated constant appended to the client key
// before hashing (RFC 6455 §4.2.2). Not an implementation choice.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// MaxRequestSize caps the aggregate bytes accepted for one Upgrade request.
const MaxRequestSize = 8192

// headerTerminator marks the end of the HTTP header section.
const headerTerminator = "\r\n\r\n"

// Validation errors. All of them resolve to the same 400 response; they are
// distinct only for logging.
var (
	ErrNotGet            = errors.New("handshake: request is not a GET")
	ErrMissingUpgrade    = errors.New("handshake: missing Upgrade: websocket header")
	ErrMissingConnection = errors.New("handshake: Connection header does not mention upgrade")
	ErrMissingKey        = errors.New("handshake: missing Sec-WebSocket-Key header")
	ErrBadVersion        = errors.New("handshake: unsupported Sec-WebSocket-Version")
)

// Request holds the validated pieces of an Upgrade request needed to build
// the 101 response.
type Request struct {
	// Key is the client's Sec-WebSocket-Key value, whitespace-trimmed.
	Key string
	// HasVersion records whether the request carried a
	// Sec-WebSocket-Version header; the response echoes it back if so.
	HasVersion bool
}

// Complete reports whether buf contains a full HTTP header section.
func Complete(buf []byte) bool {
	return strings.Contains(string(buf), headerTerminator)
}

// Parse validates a raw Upgrade request. Header matching is
// case-insensitive unless noted; all checks are required.
func Parse(raw []byte) (*Request, error) {
	request := string(raw)
	lower := strings.ToLower(request)

	if !strings.HasPrefix(request, "GET") {
		return nil, ErrNotGet
	}

	if !strings.Contains(lower, "upgrade: websocket") {
		return nil, ErrMissingUpgrade
	}

	// Tolerant Connection check: the canonical form is "Connection:
	// Upgrade", but some clients send token lists ("keep-alive, Upgrade"),
	// so any Connection header mentioning upgrade is accepted.
	if !strings.Contains(lower, "connection: upgrade") {
		if !strings.Contains(lower, "connection:") || !strings.Contains(lower, "upgrade") {
			return nil, ErrMissingConnection
		}
	}

	key, err := headerValue(request, lower, "sec-websocket-key")
	if err != nil {
		return nil, ErrMissingKey
	}

	hasVersion := strings.Contains(lower, "sec-websocket-version:")
	if hasVersion {
		version, err := headerValue(request, lower, "sec-websocket-version")
		if err == nil && version != "13" {
			return nil, ErrBadVersion
		}
	}

	return &Request{Key: key, HasVersion: hasVersion}, nil
}

// headerValue extracts a trimmed header value. The case-insensitive search
// runs first, with a case-sensitive fallback on the canonical spelling.
func headerValue(request, lower, name string) (string, error) {
	marker := name + ": "
	start := strings.Index(lower, marker)
	if start < 0 {
		canonical := canonicalHeader(name) + ": "
		start = strings.Index(request, canonical)
		if start < 0 {
			return "", errors.New("header not found: " + name)
		}
		marker = canonical
	}

	rest := request[start+len(marker):]
	end := strings.Index(rest, "\r\n")
	if end < 0 {
		end = strings.Index(rest, "\n")
		if end < 0 {
			return "", errors.New("header not terminated: " + name)
		}
	}

	return strings.TrimSpace(rest[:end]), nil
}

// canonicalHeader maps a lowercase header name to the Sec-WebSocket-*
// capitalization used by mainstream clients, for the case-sensitive
// fallback lookup.
func canonicalHeader(name string) string {
	switch name {
	case "sec-websocket-key":
		return "Sec-WebSocket-Key"
	case "sec-websocket-version":
		return "Sec-WebSocket-Version"
	}
	return name
}

// AcceptKey computes base64(SHA1(key + acceptGUID)) per RFC 6455 §4.2.2.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Response renders the 101 Switching Protocols response for a validated
// request. The version header is echoed only when the request carried one.
func Response(req *Request) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Accept: " + AcceptKey(req.Key) + "\r\n")
	if req.HasVersion {
		b.WriteString("Sec-WebSocket-Version: 13\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// BadRequest renders the 400 response sent when validation fails.
func BadRequest() []byte {
	const body = "Invalid WebSocket request"
	var b strings.Builder
	b.WriteString("HTTP/1.1 400 Bad Request\r\n")
	b.WriteString("Content-Type: text/plain\r\n")
	b.WriteString("Content-Length: 25\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
