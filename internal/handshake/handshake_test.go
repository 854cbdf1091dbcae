package handshake

import (
	"errors"
	"strings"
	"testing"
)

const sampleRequest = "GET /ws HTTP/1.1\r\n" +
	"Host: localhost:9000\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n" +
	"\r\n"

// TestAcceptKeyRFCVector checks the key derivation against the vector
// published in RFC 6455 §1.3.
func TestAcceptKeyRFCVector(t *testing.T) {
	t.Parallel()

	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="

	if got != want {
		t.Errorf("AcceptKey() = %q, want %q", got, want)
	}
}

// TestParseValidRequest parses a canonical browser Upgrade request.
func TestParseValidRequest(t *testing.T) {
	t.Parallel()

	req, err := Parse([]byte(sampleRequest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if req.Key != "dGhlIHNhbXBsZSBub25jZQ==" {
		t.Errorf("Key = %q, want the sample nonce", req.Key)
	}
	if !req.HasVersion {
		t.Error("HasVersion = false, want true")
	}
}

// TestParseRejections covers each required validation step.
func TestParseRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request string
		wantErr error
	}{
		{
			name:    "not a GET",
			request: strings.Replace(sampleRequest, "GET", "POST", 1),
			wantErr: ErrNotGet,
		},
		{
			name:    "missing upgrade header",
			request: strings.Replace(sampleRequest, "Upgrade: websocket\r\n", "", 1),
			wantErr: ErrMissingUpgrade,
		},
		{
			name: "connection header without upgrade token",
			request: "GET /ws HTTP/1.1\r\n" +
				"Upgrade: websocket\r\n" +
				"Sec-WebSocket-Key: abc\r\n" +
				"\r\n",
			wantErr: ErrMissingConnection,
		},
		{
			name:    "missing key",
			request: strings.Replace(sampleRequest, "Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n", "", 1),
			wantErr: ErrMissingKey,
		},
		{
			name:    "wrong version",
			request: strings.Replace(sampleRequest, "Sec-WebSocket-Version: 13", "Sec-WebSocket-Version: 8", 1),
			wantErr: ErrBadVersion,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.request))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestParseTolerantForms checks the deliberately lenient matching rules.
func TestParseTolerantForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request string
	}{
		{
			name: "lowercase headers",
			request: "GET /ws HTTP/1.1\r\n" +
				"upgrade: websocket\r\n" +
				"connection: upgrade\r\n" +
				"sec-websocket-key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
				"\r\n",
		},
		{
			name: "connection token list",
			request: "GET /ws HTTP/1.1\r\n" +
				"Upgrade: websocket\r\n" +
				"Connection: keep-alive, Upgrade\r\n" +
				"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
				"\r\n",
		},
		{
			name: "no version header",
			request: "GET /ws HTTP/1.1\r\n" +
				"Upgrade: websocket\r\n" +
				"Connection: Upgrade\r\n" +
				"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
				"\r\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, err := Parse([]byte(tt.request))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if req.Key == "" {
				t.Error("Key is empty")
			}
		})
	}
}

// TestResponseShape checks the 101 response bytes, including version echo.
func TestResponseShape(t *testing.T) {
	t.Parallel()

	req, err := Parse([]byte(sampleRequest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	response := string(Response(req))

	for _, want := range []string{
		"HTTP/1.1 101 Switching Protocols\r\n",
		"Upgrade: websocket\r\n",
		"Connection: Upgrade\r\n",
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n",
		"Sec-WebSocket-Version: 13\r\n",
	} {
		if !strings.Contains(response, want) {
			t.Errorf("response missing %q", want)
		}
	}
	if !strings.HasSuffix(response, "\r\n\r\n") {
		t.Error("response does not end with a blank line")
	}

	// Without a version header in the request, none is echoed back.
	noVersion := &Request{Key: req.Key, HasVersion: false}
	if strings.Contains(string(Response(noVersion)), "Sec-WebSocket-Version") {
		t.Error("version header echoed for a request without one")
	}
}

// TestBadRequestShape checks the 400 response.
func TestBadRequestShape(t *testing.T) {
	t.Parallel()

	response := string(BadRequest())

	if !strings.HasPrefix(response, "HTTP/1.1 400 Bad Request\r\n") {
		t.Errorf("unexpected status line in %q", response)
	}
	if !strings.Contains(response, "Connection: close\r\n") {
		t.Error("400 response missing Connection: close")
	}
}

// TestComplete detects the header terminator.
func TestComplete(t *testing.T) {
	t.Parallel()

	if Complete([]byte("GET /ws HTTP/1.1\r\nHost: x\r\n")) {
		t.Error("Complete = true for a partial request")
	}
	if !Complete([]byte(sampleRequest)) {
		t.Error("Complete = false for a full request")
	}
}
