// Package server implements the server core (component I, §4.I): socket
// setup, the accept loop, and the fixed worker pool that together drive
// the concurrent request-serving pipeline described in §5.
//
// Grounded on original_source/source/server/server.h's Server type
// (state machine, the _srvutils bundle threaded into every request
// processor, and the SERVERCMD{CONTINUE,STOP} worker-loop protocol) and
// on the teacher's listener.go (a *net.TCPListener wrapper that tunes
// accepted connections, here extended to install SO_REUSEADDR/
// SO_REUSEPORT on the listening socket itself via golang.org/x/sys/unix,
// since net.Listen alone cannot set SO_REUSEPORT).
package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/dieortin/http-server/config"
	"github.com/dieortin/http-server/connqueue"
)

// State is a point in the server's init -> ready -> running -> freed
// lifecycle (§4.I).
type State int

const (
	StateUninit State = iota
	StateInit
	StateReady
	StateRunning
	StateFreed
)

// Command is what a request processor returns to tell its worker
// whether to keep dequeuing, matching SERVERCMD in the original.
type Command int

const (
	Continue Command = iota
	Stop
)

// Utils is the bundle injected into every request processor call,
// matching struct _srvutils{log, webroot} in the original.
type Utils struct {
	Log     Logger
	Webroot string
}

// Logger is the minimal sink the server core itself writes through.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Processor handles one accepted connection to completion and reports
// whether its worker should keep running.
type Processor func(ctx context.Context, conn net.Conn, utils Utils) Command

const (
	defaultNThreads  = 2
	defaultQueueSize = 100
)

// Server owns the listening socket, the connection queue, the worker
// pool, and the configuration and webroot handed to every processor
// call.
type Server struct {
	state State

	address   string
	port      int32
	webroot   string
	nthreads  int32
	queueSize int32

	log       Logger
	processor Processor

	listener *net.TCPListener
	queue    *connqueue.Queue[net.Conn]

	shutdown  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New builds a Server from store, per §4.I step "Parse the
// configuration... Compute the absolute webroot as CWD + WEBROOT".
func New(store *config.Store, processor Processor, log Logger) (*Server, error) {
	address, err := store.GetStringOption(config.Address)
	if err != nil {
		address = ""
	}

	port, err := store.GetIntOption(config.Port)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	webroot, err := store.GetStringOption(config.Webroot)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("server: resolving webroot: %w", err)
	}
	absWebroot := filepath.Join(cwd, webroot)

	return &Server{
		state:     StateInit,
		address:   address,
		port:      port,
		webroot:   absWebroot,
		nthreads:  store.IntOrDefault(config.NThreads, defaultNThreads),
		queueSize: store.IntOrDefault(config.QueueSize, defaultQueueSize),
		log:       log,
		processor: processor,
		shutdown:  make(chan struct{}),
	}, nil
}

// Listen creates the listening socket with SO_REUSEADDR and SO_REUSEPORT
// set and binds it to (ADDRESS, PORT), per §4.I step 3, and builds the
// connection queue with capacity QUEUE_SIZE (§4.I step 4).
func (s *Server) Listen() error {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	addr := fmt.Sprintf("%s:%d", s.address, s.port)
	ln, err := lc.Listen(context.Background(), "tcp4", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}

	s.listener = ln.(*net.TCPListener)
	s.queue = connqueue.New[net.Conn](int(s.queueSize))
	s.state = StateReady

	return nil
}

// Start runs the acceptor and NTHREADS workers until every one of them
// returns. A worker returning Stop only ends that worker; per §4.I a
// STOP from any worker does not terminate the acceptor, so Start keeps
// blocking until ctx is canceled or Close is called; either one closes
// the listener and the queue, which unblocks the accept loop and any
// worker still waiting on the queue.
func (s *Server) Start(ctx context.Context) error {
	if s.state != StateReady {
		return fmt.Errorf("server: Start called before Listen (state=%d)", s.state)
	}
	s.state = StateRunning

	g, ctx := errgroup.WithContext(ctx)

	utils := Utils{Log: s.log, Webroot: s.webroot}

	for i := int32(0); i < s.nthreads; i++ {
		g.Go(func() error {
			return s.worker(ctx, utils)
		})
	}

	g.Go(func() error {
		return s.accept()
	})

	// ctx alone does not reach a blocking Accept(); Close unblocks it by
	// closing the listener (and unblocks any worker still waiting on the
	// queue), so shutdown needs both pieces. This also has to return when
	// Close is called directly, without ctx ever being canceled (as a
	// caller driving shutdown outside of ctx would do) - otherwise it
	// would block Wait forever on a ctx that never completes.
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return s.Close()
		case <-s.shutdown:
			return nil
		}
	})

	return g.Wait()
}

func (s *Server) worker(ctx context.Context, utils Utils) error {
	for {
		conn, ok := s.queue.Pop()
		if !ok {
			return nil
		}

		if s.processor(ctx, conn, utils) == Stop {
			return nil
		}
	}
}

func (s *Server) accept() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			s.log.Error("accept failed", map[string]interface{}{"error": err.Error()})
			return fmt.Errorf("server: accept: %w", err)
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetKeepAlive(true)
		}

		s.queue.Add(conn) // blocks on a full queue: the backpressure point from §5
	}
}

// Close releases the listening socket and closes the connection queue
// (workers still receive any connection already queued before Pop
// reports shutdown), matching
// server_free's STATE -> FREED transition. Safe to call more than once
// - Start's internal shutdown watcher and a caller's own deferred Close
// can both reach it - only the first call does any work.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.shutdown)
		if s.queue != nil {
			s.queue.Close()
		}
		s.state = StateFreed
		if s.listener != nil {
			s.closeErr = s.listener.Close()
		}
	})
	return s.closeErr
}

// State returns the server's current lifecycle state.
func (s *Server) State() State {
	return s.state
}

// Addr returns the address the listener is bound to. It must only be
// called after a successful Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
