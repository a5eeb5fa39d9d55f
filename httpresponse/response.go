// Package httpresponse implements the response builder (component E,
// §4.E): it assembles a status line, an ordered header block, and a body,
// writes them to the client socket as two distinct writes (so a
// memory-mapped body never needs to be copied into the header buffer),
// and closes the connection.
//
// Grounded on original_source/source/httputils/httputils.c's
// send_response_header / send_response_body / respond, and on the header
// utilities create_header_struct / set_header / headers_getlen /
// headers_free.
package httpresponse

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Status codes used by this server (§4.E).
const (
	StatusOK                  = 200
	StatusNoContent           = 204
	StatusBadRequest          = 400
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusInternalServerError = 500
)

// httpVersion is always announced regardless of the request's minor
// version, per §3: "the server announces HTTP/1.1 regardless".
const httpVersion = "HTTP/1.1"

// Headers is an ordered set of "Name: Value" response header lines.
// Duplicates are never merged (Set always appends), matching
// set_header's unconditional array-append behavior in the original.
type Headers struct {
	lines []string
}

// NewHeaders returns an empty Headers set.
func NewHeaders() *Headers {
	return &Headers{}
}

// Set appends a "name: value" header line unconditionally.
func (h *Headers) Set(name, value string) {
	h.lines = append(h.lines, name+": "+value)
}

// Len returns the combined length of all header lines including their
// trailing CRLF, matching headers_getlen in the original.
func (h *Headers) Len() int {
	n := 0
	for _, l := range h.lines {
		n += len(l) + len("\r\n")
	}
	return n
}

// SetDefault sets the Date (RFC 1123 GMT) and Server headers, matching
// setDefaultHeaders in the original.
func (h *Headers) SetDefault(serverName string) {
	h.Set("Date", time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
	h.Set("Server", serverName)
}

// Respond writes the complete HTTP response: status line, each header
// line, a blank terminator line and (if body is non-nil) exactly
// len(body) bytes, then shuts down and closes conn. The response is sent
// exactly once per connection (§4.E): conn must not be reused afterward.
func Respond(conn net.Conn, code int, reason string, headers *Headers, body []byte) error {
	defer closeConn(conn)

	statusLine := statusLine(code, reason)

	headerBlock := make([]byte, 0, len(statusLine)+headersLen(headers)+2)
	headerBlock = append(headerBlock, statusLine...)
	if headers != nil {
		for _, l := range headers.lines {
			headerBlock = append(headerBlock, l...)
			headerBlock = append(headerBlock, "\r\n"...)
		}
	}
	headerBlock = append(headerBlock, "\r\n"...)

	if _, err := conn.Write(headerBlock); err != nil {
		return fmt.Errorf("httpresponse: writing header: %w", err)
	}

	if body != nil {
		if _, err := conn.Write(body); err != nil {
			return fmt.Errorf("httpresponse: writing body: %w", err)
		}
	}

	return nil
}

func headersLen(h *Headers) int {
	if h == nil {
		return 0
	}
	return h.Len()
}

func statusLine(code int, reason string) string {
	if reason == "" {
		return httpVersion + " " + strconv.Itoa(code) + "\r\n"
	}
	return httpVersion + " " + strconv.Itoa(code) + " " + reason + "\r\n"
}

// closeConn performs the shutdown-write, shutdown-read, close sequence
// from §4.E step 5. net.Conn doesn't expose a generic half-close, so this
// uses the *net.TCPConn methods when available and falls back to a plain
// Close otherwise.
func closeConn(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
		tc.CloseRead()
	}
	conn.Close()
}
