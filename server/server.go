// Package server is the HTTP surface of webteller: it serves the bundled
// browser terminal and hands session WebSocket connections to the bridge.
package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/webteller/webteller/bridge"
	"github.com/webteller/webteller/creds"
)

//go:embed static
var staticFS embed.FS

// Server serves the browser client and the session endpoint.
type Server struct {
	logger *zap.SugaredLogger

	listenAddr string
	command    string
	args       []string
	env        []string
	credsValue string
	credsPath  string

	httpServer *http.Server
	sessions   *bridge.Server
}

type Option func(s *Server)

func WithListenAddr(s string) Option {
	return func(srv *Server) {
		srv.listenAddr = s
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(srv *Server) {
		srv.logger = l.Sugar()
	}
}

func WithLogLevel(l zapcore.Level) Option {
	return func(srv *Server) {
		srv.logger = srv.logger.WithOptions(zap.IncreaseLevel(l))
	}
}

// WithCommand sets the console program spawned for each session.
func WithCommand(command string, args ...string) Option {
	return func(srv *Server) {
		srv.command = command
		srv.args = args
	}
}

// WithEnv appends extra environment variables to each spawned subprocess.
func WithEnv(env []string) Option {
	return func(srv *Server) {
		srv.env = append(srv.env, env...)
	}
}

// WithCreds configures the credential blob written before each subprocess
// starts. An empty value disables the write.
func WithCreds(value, path string) Option {
	return func(srv *Server) {
		srv.credsValue = value
		srv.credsPath = path
	}
}

// New constructs a webteller server.
func New(opts ...Option) (*Server, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	s := &Server{
		logger:     logger.Named("webteller").Sugar(),
		listenAddr: "0.0.0.0:8080",
		command:    "teller",
		credsPath:  creds.DefaultPath,
		httpServer: &http.Server{},
	}
	for _, o := range opts {
		o(s)
	}
	s.sessions = &bridge.Server{
		Log:     s.logger.Named("bridge"),
		Command: s.command,
		Args:    s.args,
		Env:     s.env,
		Creds: &creds.Materializer{
			Log:   s.logger.Named("creds"),
			Path:  s.credsPath,
			Value: s.credsValue,
		},
	}
	return s, nil
}

// Run serves until Stop is called. Session failures are scoped to their own
// connection and never take the server down.
func (s *Server) Run() error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listening TCP: %w", err)
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("locating static assets: %w", err)
	}

	router := httprouter.New()
	router.GET("/", s.index)
	router.GET("/healthz", s.healthz)
	router.GET("/session", s.session)
	router.ServeFiles("/static/*filepath", http.FS(static))

	s.httpServer.Handler = router

	s.logger.Infof("listening on %s", listener.Addr())
	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop() error {
	return s.httpServer.Close()
}

func (s *Server) session(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.sessions.ServeHTTP(w, r)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	b, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "text/html; charset=utf-8")
	w.Write(b)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	response := struct {
		Status string
		Time   string
	}{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(response)
	if err != nil {
		s.logger.Debugf("error marshaling healthz response: %s", err)
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(b)
}
