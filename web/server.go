// Package web serves the node's readiness signal, its latest segmented image, its counters and
// its log levels over HTTP.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"goji.io"
	"goji.io/pat"

	"go.viam.com/semseg/logging"
	"go.viam.com/semseg/node"
	"go.viam.com/semseg/ros"
	"go.viam.com/semseg/transport"
)

// Paths served.
const (
	InitDonePath      = "/state_machine/init_done"
	SemanticImagePath = "/semantic_image"
	StatsPath         = "/stats"
	LoggersPath       = "/loggers"
)

// StatsProvider reports node counters.
type StatsProvider interface {
	Stats() node.Stats
}

// Options configure a Server.
type Options struct {
	Address string
	// Pprof mounts the runtime profiler under /debug/pprof/.
	Pprof bool
}

type readiness struct {
	ID    string             `json:"id"`
	Ready bool               `json:"ready"`
	Since time.Time          `json:"since"`
	Node  node.ReadinessInfo `json:"node"`
}

// Server is the node's HTTP face. It is also the node's ReadinessNotifier.
type Server struct {
	opts     Options
	registry *logging.Registry
	logger   logging.Logger
	handler  http.Handler

	mu     sync.RWMutex
	ready  *readiness
	latest *ros.Image
	stats  StatsProvider
}

var _ node.ReadinessNotifier = (*Server)(nil)

// NewServer builds the routes. registry may be nil, in which case log levels are not exposed.
func NewServer(opts Options, registry *logging.Registry, logger logging.Logger) *Server {
	s := &Server{opts: opts, registry: registry, logger: logger}

	mux := goji.NewMux()
	mux.HandleFunc(pat.Get(InitDonePath), s.handleInitDone)
	mux.HandleFunc(pat.Get(SemanticImagePath), s.handleSemanticImage)
	mux.HandleFunc(pat.Get(StatsPath), s.handleStats)
	if registry != nil {
		mux.HandleFunc(pat.Get(LoggersPath), s.handleLoggers)
		mux.HandleFunc(pat.Put(LoggersPath+"/:name"), s.handleSetLevel)
	}
	if opts.Pprof {
		mux.HandleFunc(pat.New("/debug/pprof/"), pprof.Index)
		mux.HandleFunc(pat.New("/debug/pprof/cmdline"), pprof.Cmdline)
		mux.HandleFunc(pat.New("/debug/pprof/profile"), pprof.Profile)
		mux.HandleFunc(pat.New("/debug/pprof/symbol"), pprof.Symbol)
		mux.HandleFunc(pat.New("/debug/pprof/trace"), pprof.Trace)
	}
	s.handler = cors.AllowAll().Handler(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// NotifyReady marks the node as initialized. Each call gets a fresh id.
func (s *Server) NotifyReady(ctx context.Context, info node.ReadinessInfo) error {
	r := &readiness{ID: uuid.NewString(), Ready: true, Since: time.Now(), Node: info}
	s.mu.Lock()
	s.ready = r
	s.mu.Unlock()
	s.logger.Infow("initialization done", "id", r.ID)
	return nil
}

// SetStatsProvider sets where /stats reads from.
func (s *Server) SetStatsProvider(p StatsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = p
}

// Watch keeps the newest image of sub until ctx is done or sub is closed.
func (s *Server) Watch(ctx context.Context, sub *transport.Subscription) error {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		s.mu.Lock()
		s.latest = msg
		s.mu.Unlock()
	}
}

// Serve listens on the configured address until ctx is done, then shuts down gracefully.
// ready, if not nil, receives the bound address once listening.
func (s *Server) Serve(ctx context.Context, ready chan<- net.Addr) error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return errors.Wrapf(err, "cannot listen on %q", s.opts.Address)
	}
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if ready != nil {
		ready <- listener.Addr()
	}
	s.logger.Infow("serving", "address", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("cannot write response", "error", err)
	}
}

func (s *Server) handleInitDone(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	if ready == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, readiness{})
		return
	}
	s.writeJSON(w, http.StatusOK, ready)
}

func (s *Server) handleSemanticImage(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	msg := s.latest
	s.mu.RUnlock()
	if msg == nil {
		http.Error(w, "no segmented image yet", http.StatusNotFound)
		return
	}
	frame, err := ros.ImageToFrame(msg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Seq", strconv.FormatUint(uint64(msg.Header.Seq), 10))
	w.Header().Set("X-Stamp", msg.Header.Stamp.Time().UTC().Format(time.RFC3339Nano))
	w.Header().Set("X-Frame-Id", msg.Header.FrameID)
	if err := imaging.Encode(w, frame, imaging.PNG); err != nil {
		s.logger.Debugw("cannot encode image", "seq", msg.Header.Seq, "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	p := s.stats
	s.mu.RUnlock()
	if p == nil {
		http.Error(w, "node not running", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, p.Stats())
}

func (s *Server) handleLoggers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Levels())
}

func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	name := pat.Param(r, "name")
	var body struct {
		Level logging.Level `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.registry.UpdateLevel(name, body.Level); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Infow("log level changed", "logger", name, "level", body.Level.String())
	s.writeJSON(w, http.StatusOK, map[string]logging.Level{name: body.Level})
}
