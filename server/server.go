// Package server exposes SEL sessions over Connect and the editor
// protocol.
package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/sel/vm"
)

var log = commonlog.GetLogger("sel.server")

// Procedure paths. Every message is a google.protobuf.Struct.
const (
	EvaluateProcedure       = "/sel.v1.EvaluationService/Evaluate"
	CheckSyntaxProcedure    = "/sel.v1.EvaluationService/CheckSyntax"
	CreateSessionProcedure  = "/sel.v1.SessionService/CreateSession"
	DestroySessionProcedure = "/sel.v1.SessionService/DestroySession"
	ListSessionsProcedure   = "/sel.v1.SessionService/ListSessions"
	SnapshotProcedure       = "/sel.v1.SessionService/Snapshot"
	RestoreProcedure        = "/sel.v1.SessionService/Restore"
)

// DefaultMaxCallDepth bounds recursion in server sessions so a runaway
// program returns an error instead of exhausting the goroutine stack.
const DefaultMaxCallDepth = 10000

// DefaultMaxMemory bounds the stack slots of each server session.
const DefaultMaxMemory = 1 << 22

// SelServer serves the evaluation and session services. It speaks the
// Connect, gRPC and gRPC-Web protocols on one port.
type SelServer struct {
	sessions *SessionStore
	scratch  *Session
	mux      *http.ServeMux

	stopSweeper func()
}

// ServerOption configures a SelServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	maxCallDepth int
	maxMemory    int
	searchPath   []string
	journal      Recorder
	evalTimeout  time.Duration
	sessionTTL   time.Duration
}

// WithMaxCallDepth sets the call depth limit of every session VM.
// 0 means unlimited.
func WithMaxCallDepth(n int) ServerOption {
	return func(c *serverConfig) { c.maxCallDepth = n }
}

// WithMaxMemory sets the stack slot limit of every session VM.
// 0 means unlimited.
func WithMaxMemory(n int) ServerOption {
	return func(c *serverConfig) { c.maxMemory = n }
}

// WithSearchPath sets the import search path of every session VM.
func WithSearchPath(dirs []string) ServerOption {
	return func(c *serverConfig) { c.searchPath = dirs }
}

// WithJournal records every evaluation to rec.
func WithJournal(rec Recorder) ServerOption {
	return func(c *serverConfig) { c.journal = rec }
}

// WithEvalTimeout interrupts evaluations that run longer than d.
func WithEvalTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.evalTimeout = d }
}

// WithSessionTTL destroys sessions idle for longer than d.
func WithSessionTTL(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.sessionTTL = d }
}

// New creates a SelServer.
func New(opts ...ServerOption) *SelServer {
	cfg := &serverConfig{
		maxCallDepth: DefaultMaxCallDepth,
		maxMemory:    DefaultMaxMemory,
		sessionTTL:   30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	newVM := func() *vm.VM {
		v := vm.NewVM()
		v.MaxCallDepth = cfg.maxCallDepth
		v.MaxMemory = cfg.maxMemory
		v.SearchPath = cfg.searchPath
		v.SetOutput(io.Discard)
		v.SetInput(strings.NewReader(""))
		return v
	}

	sessions := NewSessionStore(newVM)
	// The scratch session is not listed and never expires.
	scratch := &Session{ID: "", Name: "scratch", Created: time.Now(), worker: NewVMWorker(newVM())}

	s := &SelServer{
		sessions: sessions,
		scratch:  scratch,
		mux:      http.NewServeMux(),
	}

	evalSvc := NewEvalService(sessions, scratch, cfg.journal, cfg.evalTimeout)
	sessionSvc := NewSessionService(sessions)

	s.mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(EvaluateProcedure, evalSvc.Evaluate))
	s.mux.Handle(CheckSyntaxProcedure, connect.NewUnaryHandler(CheckSyntaxProcedure, evalSvc.CheckSyntax))
	s.mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, sessionSvc.CreateSession))
	s.mux.Handle(DestroySessionProcedure, connect.NewUnaryHandler(DestroySessionProcedure, sessionSvc.DestroySession))
	s.mux.Handle(ListSessionsProcedure, connect.NewUnaryHandler(ListSessionsProcedure, sessionSvc.ListSessions))
	s.mux.Handle(SnapshotProcedure, connect.NewUnaryHandler(SnapshotProcedure, sessionSvc.Snapshot))
	s.mux.Handle(RestoreProcedure, connect.NewUnaryHandler(RestoreProcedure, sessionSvc.Restore))

	if cfg.sessionTTL > 0 {
		s.stopSweeper = sessions.StartSweeper(cfg.sessionTTL/6, cfg.sessionTTL)
	}
	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *SelServer) Handler() http.Handler {
	return s.mux
}

// Sessions returns the server's session store.
func (s *SelServer) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *SelServer) ListenAndServe(addr string) error {
	log.Infof("SEL evaluation service listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, EvaluateProcedure)

	// gRPC clients need HTTP/2 without TLS.
	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)
	srv := &http.Server{Addr: addr, Handler: s.mux, Protocols: protocols}
	return srv.ListenAndServe()
}

// Stop shuts down the sweeper and every session.
func (s *SelServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.sessions.StopAll()
	s.scratch.worker.Stop()
}
