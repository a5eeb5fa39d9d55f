// Command httpserver is the process entrypoint (§6 "CLI (out of core)").
// It accepts at most one positional argument, the path to the
// configuration file, defaulting to a hardcoded relative path -
// grounded on original_source/source/core/src/main.c's argv[1]-or-
// CONFIG_PATH fallback.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dieortin/http-server/config"
	"github.com/dieortin/http-server/dispatch"
	"github.com/dieortin/http-server/httprequest"
	"github.com/dieortin/http-server/httpresponse"
	"github.com/dieortin/http-server/internal/confload"
	"github.com/dieortin/http-server/internal/logsink"
	"github.com/dieortin/http-server/internal/mimeload"
	"github.com/dieortin/http-server/server"
	"github.com/dieortin/http-server/staticfile"
)

// defaultConfigPath mirrors CONFIG_PATH / CONFIG_FILENAME in the
// original: a relative path resolved from the process's working
// directory when no argument is given.
const defaultConfigPath = "server.cfg"

// assetCacheBytes bounds the in-memory static-asset cache
// (staticfile.New's maxCacheBytes), sized generously for a dev box.
const assetCacheBytes = 64 << 20

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := defaultConfigPath
	if len(os.Args) == 2 {
		configPath = os.Args[1]
	}

	log := logsink.Stdout()

	store, err := confload.Load(configPath, log)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	mimeTable, err := mimeload.Load(store)
	if err != nil {
		return fmt.Errorf("loading MIME table: %w", err)
	}

	webroot, err := store.GetStringOption(config.Webroot)
	if err != nil {
		return fmt.Errorf("resolving webroot: %w", err)
	}

	staticServer, err := staticfile.New(webroot, mimeTable, assetCacheBytes)
	if err != nil {
		return fmt.Errorf("initializing static file server: %w", err)
	}

	d := dispatch.New(webroot, staticServer, log, false)

	srv, err := server.New(store, requestProcessor(d), log)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	defer srv.Close()

	log.Info("server listening", map[string]interface{}{"addr": srv.Addr().String()})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("running: %w", err)
	}

	return nil
}

// requestProcessor adapts the parse -> dispatch -> respond pipeline
// (components D, H, E) into the server.Processor shape, matching
// processHTTPRequest in the original: every outcome, including a parse
// failure, is answered and the worker always continues (CONTINUE).
func requestProcessor(d *dispatch.Dispatcher) server.Processor {
	return func(ctx context.Context, conn net.Conn, utils server.Utils) server.Command {
		req, err := httprequest.Parse(conn)
		if err != nil {
			respondParseError(conn, err, utils)
			return server.Continue
		}

		d.Handle(ctx, req, func(code int, reason string, headers *httpresponse.Headers, body []byte) {
			httpresponse.Respond(conn, code, reason, headers, body)
		})

		return server.Continue
	}
}

func respondParseError(conn net.Conn, err error, utils server.Utils) {
	headers := httpresponse.NewHeaders()
	headers.SetDefault("httpServer")

	var code int
	var reason string
	switch {
	case errors.Is(err, httprequest.ErrRequestTooLong):
		code, reason = httpresponse.StatusBadRequest, "Request too long"
	case errors.Is(err, httprequest.ErrParse):
		code, reason = httpresponse.StatusBadRequest, "Bad request"
	default:
		code, reason = httpresponse.StatusInternalServerError, "Internal server error"
	}

	utils.Log.Error("request parse failed", map[string]interface{}{"error": err.Error(), "code": code})
	httpresponse.Respond(conn, code, reason, headers, nil)
}
