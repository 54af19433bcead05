// Package rpc exposes a reader session over JSON-RPC 2.0 on a WebSocket.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MapoMagpie/comic-looms/common"
	"github.com/MapoMagpie/comic-looms/internal/session"
	"github.com/MapoMagpie/comic-looms/pkg/logger"
	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
)

const readLimit = 1 << 20

// Config holds configuration for the JSON-RPC endpoint.
type Config struct {
	Secret    string // Auth token (required, empty rejects every client)
	Port      int
	ListenAll bool // bind to 0.0.0.0 instead of 127.0.0.1
	Version   string
	Commit    string
	BuildType string
}

func (c *Config) Addr() string {
	host := "127.0.0.1"
	if c.ListenAll {
		host = "0.0.0.0"
	}
	port := c.Port
	if port == 0 {
		port = common.DefaultRPCPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Server serves one session to any number of WebSocket clients.
type Server struct {
	cfg      Config
	sess     *session.Session
	clients  *hub
	methods  handler.Map
	l        logger.Logger
	detach   func()
}

func NewServer(cfg *Config, sess *session.Session, l logger.Logger) *Server {
	s := &Server{
		cfg:      *cfg,
		sess:     sess,
		clients:  newHub(l),
		l:        logger.OrNop(l),
	}
	s.methods = handler.Map{
		common.MethodGetVersion: handler.New(s.systemGetVersion),
		common.MethodDo:         handler.New(s.queueDo),
		common.MethodStatus:     handler.New(s.queueStatus),
		common.MethodCherryPick: handler.New(s.queueCherryPick),
	}
	s.detach = s.clients.follow(sess.Bus())
	return s
}

// Handler routes the WebSocket endpoint behind token authentication.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(common.DefaultRPCPattern, requireToken(s.cfg.Secret, http.HandlerFunc(s.handleWS)))
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.l.Warning("websocket accept: %s", err)
		return
	}
	srv := jrpc2.NewServer(s.methods, &jrpc2.ServerOptions{AllowPush: true}).
		Start(newWSConn(r.Context(), conn, r.RemoteAddr))
	leave := s.clients.join(srv, r.RemoteAddr)
	defer leave()

	if err := srv.Wait(); err != nil {
		s.l.Debug("rpc %s left: %s", r.RemoteAddr, err)
	}
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	s.l.Info("rpc listening on ws://%s%s", s.cfg.Addr(), common.DefaultRPCPattern)

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(sctx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	return s.clients.size()
}

// Close stops forwarding session events.
func (s *Server) Close() {
	s.detach()
}
