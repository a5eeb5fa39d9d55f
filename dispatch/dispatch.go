// Package dispatch implements the HTTP dispatcher (component H, §4.H):
// given a parsed request it resolves a filesystem path under the
// webroot, decides between serving a static file and running a script,
// and produces the response headers and status for every supported
// method (GET, POST, OPTIONS) plus the 405 fallback for anything else.
//
// Grounded on original_source/source/httpserver/httpserver.c: route,
// resolution_get, resolution_post, resolution_options and
// executable_type (the enum EXECUTABLE{PYTHON,PHP,NON_EXECUTABLE} and
// its executable_cmd[] table).
package dispatch

import (
	"context"
	"errors"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/dieortin/http-server/httprequest"
	"github.com/dieortin/http-server/httpresponse"
	"github.com/dieortin/http-server/script"
	"github.com/dieortin/http-server/staticfile"
)

// indexPath is appended to a directory target, matching INDEX_PATH in
// original_source/source/core/include/constants.h.
const indexPath = "/index.html"

// serverName is announced in every response's Server header.
const serverName = "httpServer"

// allowedOptions is the value of the Allow header on an OPTIONS response,
// matching ALLOWED_OPTIONS in the original.
const allowedOptions = "GET, POST, OPTIONS"

// executables maps a file extension (without the dot) to the
// interpreter invoked to run it, matching executable_cmd[] indexed by
// enum EXECUTABLE in the original.
var executables = map[string]string{
	"py":  "python",
	"php": "php",
}

// Logger is the structured logging sink handlers write through. It is
// satisfied by internal/logsink.Logger (the teacher-grounded
// implementation) and by any test double with the same shape.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Dispatcher routes requests to the static file server or the script
// executor and writes the response.
type Dispatcher struct {
	Webroot string
	Static  *staticfile.Server
	Log     Logger
	Debug   bool
}

// New returns a Dispatcher serving files under webroot.
func New(webroot string, static *staticfile.Server, log Logger, debug bool) *Dispatcher {
	return &Dispatcher{Webroot: webroot, Static: static, Log: log, Debug: debug}
}

// Handle resolves req and writes the response to conn-equivalent via
// respond. It writes the access log line itself (§4.H: "method,
// path[+querystring], response code") and also returns the status code
// written.
func (d *Dispatcher) Handle(ctx context.Context, req *httprequest.Request, respond func(code int, reason string, headers *httpresponse.Headers, body []byte)) int {
	headers := httpresponse.NewHeaders()
	headers.SetDefault(serverName)

	var code int
	switch req.Method {
	case "GET":
		code = d.resolutionGet(ctx, req, headers, respond)
	case "POST":
		code = d.resolutionPost(ctx, req, headers, respond)
	case "OPTIONS":
		code = d.resolutionOptions(headers, respond)
	default:
		respond(httpresponse.StatusMethodNotAllowed, "Not supported", headers, nil)
		code = httpresponse.StatusMethodNotAllowed
	}

	d.logAccess(req, code)
	return code
}

func (d *Dispatcher) logAccess(req *httprequest.Request, code int) {
	if req.HasQuery {
		d.Log.Info("request", map[string]interface{}{
			"method": req.Method, "path": req.Path, "querystring": req.Querystring, "code": code,
		})
	} else {
		d.Log.Info("request", map[string]interface{}{
			"method": req.Method, "path": req.Path, "code": code,
		})
	}
	if d.Debug {
		d.Log.Debug("full path", map[string]interface{}{"fullpath": d.fullPath(req.Path)})
	}
}

func (d *Dispatcher) fullPath(reqPath string) string {
	return path.Join(d.Webroot, reqPath)
}

func (d *Dispatcher) resolutionGet(ctx context.Context, req *httprequest.Request, headers *httpresponse.Headers, respond func(int, string, *httpresponse.Headers, []byte)) int {
	fullpath := d.resolveTarget(req.Path)

	if interpreter, ok := executableType(fullpath); ok {
		return d.runScript(ctx, interpreter, fullpath, req, headers, respond)
	}

	return d.serveStatic(fullpath, headers, respond)
}

func (d *Dispatcher) resolutionPost(ctx context.Context, req *httprequest.Request, headers *httpresponse.Headers, respond func(int, string, *httpresponse.Headers, []byte)) int {
	fullpath := d.fullPath(req.Path)

	if isDirectory(fullpath) {
		respond(httpresponse.StatusForbidden, "Can't POST there", headers, nil)
		return httpresponse.StatusForbidden
	}

	if interpreter, ok := executableType(fullpath); ok {
		return d.runScript(ctx, interpreter, fullpath, req, headers, respond)
	}

	respond(httpresponse.StatusForbidden, "Can't POST there", headers, nil)
	return httpresponse.StatusForbidden
}

func (d *Dispatcher) resolutionOptions(headers *httpresponse.Headers, respond func(int, string, *httpresponse.Headers, []byte)) int {
	headers.Set("Allow", allowedOptions)
	respond(httpresponse.StatusNoContent, "No Content", headers, nil)
	return httpresponse.StatusNoContent
}

// resolveTarget appends indexPath when req.Path names a directory, the
// GET-only "attempt to serve an index.html" behavior from resolution_get.
func (d *Dispatcher) resolveTarget(reqPath string) string {
	fullpath := d.fullPath(reqPath)
	if isDirectory(fullpath) {
		return fullpath + indexPath
	}
	return fullpath
}

func (d *Dispatcher) runScript(ctx context.Context, interpreter, fullpath string, req *httprequest.Request, headers *httpresponse.Headers, respond func(int, string, *httpresponse.Headers, []byte)) int {
	res, err := script.Run(ctx, interpreter, fullpath, req.Querystring, req.Body)
	if err != nil {
		respond(httpresponse.StatusInternalServerError, "Execution error", headers, nil)
		return httpresponse.StatusInternalServerError
	}
	respond(httpresponse.StatusOK, "OK", headers, res.Output)
	return httpresponse.StatusOK
}

func (d *Dispatcher) serveStatic(fullpath string, headers *httpresponse.Headers, respond func(int, string, *httpresponse.Headers, []byte)) int {
	f, err := d.Static.Open(fullpath)
	if err != nil {
		if errors.Is(err, staticfile.ErrNotFound) {
			respond(httpresponse.StatusNotFound, "Not found", headers, nil)
			return httpresponse.StatusNotFound
		}
		respond(httpresponse.StatusInternalServerError, "Internal error", headers, nil)
		return httpresponse.StatusInternalServerError
	}
	defer f.Close()

	if f.ContentType != "" {
		headers.Set("Content-Type", f.ContentType)
	}
	headers.Set("Last-Modified", f.ModTime.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
	headers.Set("Content-Length", strconv.Itoa(f.Len()))

	respond(httpresponse.StatusOK, "OK", headers, f.Bytes())
	return httpresponse.StatusOK
}

// isDirectory reports whether path names an existing directory,
// matching is_directory in the original.
func isDirectory(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// executableType returns the interpreter for path's extension, and
// whether it is one of the recognized executable types, matching
// executable_type in the original.
func executableType(p string) (interpreter string, ok bool) {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return "", false
	}
	cmd, found := executables[ext]
	return cmd, found
}
