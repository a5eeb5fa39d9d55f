package dispatch_test

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieortin/http-server/dispatch"
	"github.com/dieortin/http-server/httprequest"
	"github.com/dieortin/http-server/httpresponse"
	"github.com/dieortin/http-server/mimetable"
	"github.com/dieortin/http-server/staticfile"
)

type nullLogger struct{}

func (nullLogger) Debug(string, map[string]interface{}) {}
func (nullLogger) Info(string, map[string]interface{})  {}
func (nullLogger) Error(string, map[string]interface{}) {}

type captured struct {
	code    int
	reason  string
	headers *httpresponse.Headers
	body    []byte
}

func newDispatcher(t *testing.T) (*dispatch.Dispatcher, string) {
	t.Helper()
	root := t.TempDir()

	tbl := mimetable.New()
	mimePath := filepath.Join(root, "mime.types")
	require.NoError(t, os.WriteFile(mimePath, []byte("html\ttext/html\n"), 0o644))
	require.NoError(t, tbl.LoadFile(mimePath))

	st, err := staticfile.New(root, tbl, 1<<20)
	require.NoError(t, err)

	return dispatch.New(root, st, nullLogger{}, false), root
}

func capture() (func(int, string, *httpresponse.Headers, []byte), *captured) {
	c := &captured{}
	return func(code int, reason string, headers *httpresponse.Headers, body []byte) {
		c.code, c.reason, c.headers, c.body = code, reason, headers, body
	}, c
}

func TestHandleGetServesStaticFile(t *testing.T) {
	d, root := newDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.html"), []byte("hi"), 0o644))

	respond, c := capture()
	req := &httprequest.Request{Method: "GET", Path: "/hello.html"}
	code := d.Handle(context.Background(), req, respond)

	assert.Equal(t, httpresponse.StatusOK, code)
	assert.Equal(t, httpresponse.StatusOK, c.code)
	assert.Equal(t, "hi", string(c.body))
}

// TestHandleGetStaticFileSetsContentLength verifies §4.F step 5: a
// static GET response carries an accurate Content-Length header,
// exercised over a real connection the way httpresponse.Respond writes
// it (dispatch only builds the Headers; Respond renders them to wire
// bytes), matching scenario 1's literal "Content-Length: 11" case.
func TestHandleGetStaticFileSetsContentLength(t *testing.T) {
	d, root := newDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.html"), []byte("hello world"), 0o644))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	server := <-accepted
	defer server.Close()

	req := &httprequest.Request{Method: "GET", Path: "/hello.html"}
	go func() {
		d.Handle(context.Background(), req, func(code int, reason string, headers *httpresponse.Headers, body []byte) {
			httpresponse.Respond(server, code, reason, headers, body)
		})
	}()

	r := bufio.NewReader(client)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", line)

	var contentLength string
	for {
		h, err := r.ReadString('\n')
		require.NoError(t, err)
		if h == "\r\n" {
			break
		}
		if strings.HasPrefix(h, "Content-Length:") {
			contentLength = strings.TrimSpace(strings.TrimPrefix(h, "Content-Length:"))
		}
	}
	assert.Equal(t, "11", contentLength)

	body := make([]byte, len("hello world"))
	_, err = r.Read(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestHandleGetDirectoryServesIndex(t *testing.T) {
	d, root := newDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("home"), 0o644))

	respond, c := capture()
	req := &httprequest.Request{Method: "GET", Path: "/"}
	d.Handle(context.Background(), req, respond)

	assert.Equal(t, httpresponse.StatusOK, c.code)
	assert.Equal(t, "home", string(c.body))
}

func TestHandleGetMissingFileIs404(t *testing.T) {
	d, _ := newDispatcher(t)

	respond, c := capture()
	req := &httprequest.Request{Method: "GET", Path: "/nope.html"}
	d.Handle(context.Background(), req, respond)

	assert.Equal(t, httpresponse.StatusNotFound, c.code)
}

func TestHandlePostToDirectoryIsForbidden(t *testing.T) {
	d, root := newDispatcher(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	respond, c := capture()
	req := &httprequest.Request{Method: "POST", Path: "/sub"}
	d.Handle(context.Background(), req, respond)

	assert.Equal(t, httpresponse.StatusForbidden, c.code)
}

func TestHandlePostToNonExecutableIsForbidden(t *testing.T) {
	d, root := newDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.html"), []byte("hi"), 0o644))

	respond, c := capture()
	req := &httprequest.Request{Method: "POST", Path: "/hello.html"}
	d.Handle(context.Background(), req, respond)

	assert.Equal(t, httpresponse.StatusForbidden, c.code)
}

func TestHandleOptionsReturnsAllowedMethods(t *testing.T) {
	d, _ := newDispatcher(t)

	respond, c := capture()
	req := &httprequest.Request{Method: "OPTIONS", Path: "/"}
	d.Handle(context.Background(), req, respond)

	assert.Equal(t, httpresponse.StatusNoContent, c.code)
	// Default Date and Server lines plus the Allow line, nothing else.
	assert.Equal(t, len("Date: Mon, 02 Jan 2006 15:04:05 GMT\r\n")+len("Server: httpServer\r\n")+len("Allow: GET, POST, OPTIONS\r\n"), c.headers.Len())
}

func TestHandleUnsupportedMethodIs405(t *testing.T) {
	d, _ := newDispatcher(t)

	respond, c := capture()
	req := &httprequest.Request{Method: "DELETE", Path: "/"}
	d.Handle(context.Background(), req, respond)

	assert.Equal(t, httpresponse.StatusMethodNotAllowed, c.code)
}
