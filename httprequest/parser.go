package httprequest

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/net/http/httpguts"
)

// Sentinel errors surfaced as the result codes named in §4.D/§7. Use
// errors.Is to test for them; they are wrapped with context via %w.
var (
	ErrParse        = errors.New("httprequest: malformed request")
	ErrRequestTooLong = errors.New("httprequest: request too long")
	ErrIO           = errors.New("httprequest: io error")
	ErrInternal     = errors.New("httprequest: internal error")
)

// Parse reads one HTTP/1.1 request from conn into a buffer of at most
// MaxRequestSize bytes (§4.D), following the original's incremental
// read-then-parse loop: read into the unused tail of the buffer, retry
// transparently on EINTR, and scan for the CRLF CRLF header terminator
// after every read, reading more while it is absent. Once the terminator
// is found the request line and headers are parsed, and malformed input
// is reported then. A buffer that fills before the terminator appears
// yields ErrRequestTooLong.
func Parse(conn net.Conn) (*Request, error) {
	buf := make([]byte, MaxRequestSize)
	buflen := 0

	var headerEnd int
	for {
		n, err := conn.Read(buf[buflen:])
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			if n == 0 {
				return nil, fmt.Errorf("%w: %v", ErrIO, err)
			}
		}
		buflen += n

		if idx := bytes.Index(buf[:buflen], []byte("\r\n\r\n")); idx >= 0 {
			headerEnd = idx
			break
		}

		if err != nil { // EOF (or similar) with no terminator found yet
			return nil, fmt.Errorf("%w: connection closed mid-request", ErrIO)
		}

		if buflen == len(buf) {
			return nil, ErrRequestTooLong
		}
	}

	req, bodyWant, err := parseHead(buf[:headerEnd])
	if err != nil {
		return nil, err
	}

	bodyStart := headerEnd + 4
	if bodyWant > 0 {
		available := buflen - bodyStart
		if available < 0 {
			available = 0
		}
		n := bodyWant
		if available < n {
			n = available // known constraint (§9): not re-read past the 8 KiB buffer
		}
		if n > 0 {
			body := make([]byte, n)
			copy(body, buf[bodyStart:bodyStart+n])
			req.Body = body
		}
	}

	return req, nil
}

// parseHead parses the request line and headers out of head (the bytes
// before the blank-line terminator). It returns the desired body length
// (from Content-Length, for POST only) alongside the Request.
func parseHead(head []byte) (*Request, int, error) {
	lines := strings.Split(string(head), "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, 0, fmt.Errorf("%w: empty request line", ErrParse)
	}

	method, target, minorVersion, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, 0, err
	}

	headerLines := lines[1:]
	if len(headerLines) > MaxHeaders {
		return nil, 0, fmt.Errorf("%w: too many headers", ErrParse)
	}

	headers := make([]Header, 0, len(headerLines))
	for _, l := range headerLines {
		if l == "" {
			continue
		}
		name, value, ok := strings.Cut(l, ":")
		if !ok {
			return nil, 0, fmt.Errorf("%w: malformed header line %q", ErrParse, l)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return nil, 0, fmt.Errorf("%w: invalid header %q", ErrParse, name)
		}
		headers = append(headers, Header{Name: name, Value: value})
	}

	path, querystring, hasQuery := splitQuerystring(target)

	req := &Request{
		Method:       method,
		Path:         path,
		Querystring:  querystring,
		HasQuery:     hasQuery,
		MinorVersion: minorVersion,
		Headers:      headers,
	}

	bodyWant := 0
	if method == "POST" {
		if cl, ok := req.Header("Content-Length"); ok {
			if v, err := strconv.ParseUint(cl, 10, 63); err == nil {
				bodyWant = int(v)
			}
			// An unparseable Content-Length yields body length zero,
			// per §4.D edge cases - not a parse error.
		}
	}

	return req, bodyWant, nil
}

// parseRequestLine parses "METHOD SP target SP HTTP/1.x" into its parts.
func parseRequestLine(line string) (method, target string, minorVersion int, err error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("%w: malformed request line %q", ErrParse, line)
	}

	method, target, version := parts[0], parts[1], parts[2]
	if method == "" || target == "" {
		return "", "", 0, fmt.Errorf("%w: empty method or target", ErrParse)
	}
	if !strings.HasPrefix(target, "/") {
		return "", "", 0, fmt.Errorf("%w: request target %q does not begin with '/'", ErrParse, target)
	}
	if !httpguts.ValidHeaderFieldValue(method) {
		return "", "", 0, fmt.Errorf("%w: invalid method token", ErrParse)
	}

	major, minor, ok := parseHTTPVersion(version)
	if !ok || major != 1 {
		return "", "", 0, fmt.Errorf("%w: unsupported HTTP version %q", ErrParse, version)
	}

	return method, target, minor, nil
}

func parseHTTPVersion(v string) (major, minor int, ok bool) {
	const prefix = "HTTP/"
	if !strings.HasPrefix(v, prefix) {
		return 0, 0, false
	}
	rest := v[len(prefix):]
	maj, min, found := strings.Cut(rest, ".")
	if !found {
		return 0, 0, false
	}
	maji, err1 := strconv.Atoi(maj)
	mini, err2 := strconv.Atoi(min)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return maji, mini, true
}

// splitQuerystring splits target on the first '?', per §3's querystring
// invariant.
func splitQuerystring(target string) (path, querystring string, has bool) {
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		return target[:idx], target[idx+1:], true
	}
	return target, "", false
}

