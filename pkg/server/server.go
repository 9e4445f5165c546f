// Package server runs the embedded HTTP endpoint that exposes a metrics
// registry at /metrics, a goroutine dump at /threads and an index page at /.
//
// The endpoint exists to help diagnose its host, so it fails soft: Start and
// Stop never return errors or panic. Failures are logged and kept for Err.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/techop/httpmetrics/pkg/logging"
	"github.com/techop/httpmetrics/pkg/metrics"
	"github.com/techop/httpmetrics/pkg/metricsjson"
	"github.com/techop/httpmetrics/pkg/ratelimit"
	"github.com/techop/httpmetrics/pkg/threaddump"
	"github.com/techop/httpmetrics/pkg/vitals"
)

// Lifecycle errors. They are never returned by Start or Stop; Err reports
// the most recent one.
var (
	ErrBind = errors.New("bind metrics endpoint")
	ErrStop = errors.New("stop metrics endpoint")
)

// Default timeouts.
const (
	DefaultShutdownTimeout = 5 * time.Second
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
)

// State is the lifecycle state of a Server.
type State int

// Lifecycle states. A zero Server is Uninitialized; New returns an
// Initialized one.
const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Server owns the listening socket and the route handlers.
type Server struct {
	bindAddress string
	port        int
	registry    metrics.Reader

	serializer  *metricsjson.Serializer
	collector   *threaddump.Collector
	vitals      vitals.Provider
	fullSamples bool
	dumpLimit   *ratelimit.Bucket
	maxConns    int
	handler     http.Handler
	log         *slog.Logger

	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration

	// lifecycle serializes Start and Stop; mu guards the fields below and is
	// never held across a graceful shutdown.
	lifecycle  sync.Mutex
	mu         sync.Mutex
	listen     func(ctx context.Context, network, address string) (net.Listener, error)
	state      State
	httpServer *http.Server
	addr       net.Addr
	lastErr    error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSerializer replaces the serializer used by /metrics.
func WithSerializer(ser *metricsjson.Serializer) Option {
	return func(s *Server) {
		s.serializer = ser
	}
}

// WithCollector replaces the goroutine collector used by /threads.
func WithCollector(c *threaddump.Collector) Option {
	return func(s *Server) {
		s.collector = c
	}
}

// WithVitals sets the process vitals provider of the default serializer.
// It has no effect together with WithSerializer.
func WithVitals(p vitals.Provider) Option {
	return func(s *Server) {
		s.vitals = p
	}
}

// WithFullSamples makes /metrics include raw samples unless the request
// sets full-samples explicitly.
func WithFullSamples(full bool) Option {
	return func(s *Server) {
		s.fullSamples = full
	}
}

// WithThreadDumpLimit allows at most rate goroutine dumps per second, with
// bursts of up to burst. Excess /threads requests get 429. A rate of zero
// or less disables the limit.
func WithThreadDumpLimit(rate float64, burst int) Option {
	return func(s *Server) {
		if rate <= 0 {
			s.dumpLimit = nil
			return
		}
		s.dumpLimit = ratelimit.NewBucket(rate, burst)
	}
}

// WithMaxConnections caps simultaneous connections; further clients wait in
// the accept backlog. Zero or less means no cap.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		s.maxConns = max(n, 0)
	}
}

// WithShutdownTimeout bounds the graceful part of Stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithReadTimeout sets the http.Server read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithWriteTimeout sets the http.Server write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// New prepares a server for bindAddress:port without binding anything.
// An empty bindAddress listens on all interfaces and port 0 picks a free
// port. A nil registry serves metrics.Default().
func New(bindAddress string, port int, registry metrics.Reader, opts ...Option) *Server {
	s := &Server{
		bindAddress:     bindAddress,
		port:            port,
		registry:        registry,
		log:             logging.Nop(),
		readTimeout:     DefaultReadTimeout,
		writeTimeout:    DefaultWriteTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.WithComponent(s.log, "metrics-server")

	if s.registry == nil {
		s.registry = metrics.Default()
	}
	if s.serializer == nil {
		s.serializer = metricsjson.New(
			metricsjson.WithVitals(s.vitals),
			metricsjson.WithLogger(s.log),
		)
	}
	if s.collector == nil {
		s.collector = threaddump.NewCollector()
	}

	s.handler = s.routes()
	s.state = StateInitialized
	return s
}

// Handler returns the routed handler, for mounting in another server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listening socket and serves in the background. It is a
// no-op when already running; after Stop it binds a fresh listener. A bind
// failure is logged and leaves the state unchanged.
func (s *Server) Start() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLogger()

	switch s.state {
	case StateUninitialized:
		s.log.Warn("metrics server used without initialization")
		return
	case StateRunning:
		s.log.Info("metrics server already running", "addr", s.addr.String())
		return
	}

	addr := net.JoinHostPort(s.bindAddress, strconv.Itoa(s.port))
	listen := s.listen
	if listen == nil {
		listen = listenConfig().Listen
	}
	ln, err := listen(context.Background(), "tcp", addr)
	if err != nil {
		s.lastErr = fmt.Errorf("%w %s: %w", ErrBind, addr, err)
		s.log.Warn("failed to start metrics server",
			"bindAddress", s.bindAddress, "port", s.port, "error", err)
		return
	}
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelDebug),
	}
	go s.serve(srv, ln)

	s.httpServer = srv
	s.addr = ln.Addr()
	s.lastErr = nil
	s.state = StateRunning
	s.log.Info("metrics server started", "addr", s.addr.String())
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	err := srv.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	s.log.Warn("metrics server stopped serving", "addr", ln.Addr().String(), "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer == srv {
		s.lastErr = err
		s.httpServer = nil
		s.addr = nil
		s.state = StateStopped
	}
}

// Stop shuts the server down, waiting up to the shutdown timeout for
// in-flight requests before closing the remaining connections. It is a
// no-op unless running. State queries do not wait for the shutdown; they
// report Running until it completes.
func (s *Server) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	s.ensureLogger()
	if s.state != StateRunning {
		s.log.Debug("metrics server not running", "state", s.state.String())
		s.mu.Unlock()
		return
	}
	srv, addr, timeout := s.httpServer, s.addr.String(), s.shutdownTimeout
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var stopErr error
	if err := srv.Shutdown(ctx); err != nil {
		stopErr = fmt.Errorf("%w %s: %w", ErrStop, addr, err)
		s.log.Warn("failed to stop metrics server gracefully", "addr", addr, "error", err)
		if err := srv.Close(); err != nil {
			s.log.Warn("failed to close metrics server", "addr", addr, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stopErr != nil {
		s.lastErr = stopErr
	}
	s.httpServer = nil
	s.addr = nil
	s.state = StateStopped
	s.log.Info("metrics server stopped", "addr", addr)
}

// ensureLogger keeps a zero Server usable.
func (s *Server) ensureLogger() {
	if s.log == nil {
		s.log = logging.Nop()
	}
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	return s.State() == StateRunning
}

// Addr returns the bound address while running, nil otherwise.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Err returns the last lifecycle failure. A successful Start clears it.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
