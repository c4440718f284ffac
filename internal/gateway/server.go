// Package gateway exposes the daemon over a local HTTP API: REST
// endpoints for mutations and websocket endpoints for live chat-list
// and conversation streams.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hoot-im/hoot/internal/auth"
	"github.com/hoot-im/hoot/internal/chat"
	"github.com/hoot-im/hoot/internal/contacts"
	"github.com/hoot-im/hoot/internal/docstore"
	"github.com/hoot-im/hoot/internal/status"
	"github.com/hoot-im/hoot/internal/stream"
)

// Server serves the session daemon's HTTP API on a loopback address.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	logger     *zap.Logger

	tokens  *auth.Tokens
	authn   *auth.Memory
	machine *status.Machine
	mutator *chat.Mutator
	streams *stream.Adapter
	store   docstore.Store
	dir     *contacts.Directory
}

// NewServer creates a gateway bound to addr. The listener is opened
// eagerly so bind errors surface at construction, not at Start.
func NewServer(
	addr string,
	logger *zap.Logger,
	tokens *auth.Tokens,
	authn *auth.Memory,
	machine *status.Machine,
	mutator *chat.Mutator,
	streams *stream.Adapter,
	store docstore.Store,
	dir *contacts.Directory,
) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	s := &Server{
		listener: listener,
		addr:     listener.Addr().String(),
		logger:   logger,
		tokens:   tokens,
		authn:    authn,
		machine:  machine,
		mutator:  mutator,
		streams:  streams,
		store:    store,
		dir:      dir,
	}
	s.httpServer = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Addr returns the bound listen address. Useful when addr was ":0".
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/v1/login", s.handleLogin).Methods("POST")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.requireToken)
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/contacts/{number}", s.handleResolveContact).Methods("GET")
	api.HandleFunc("/conversations", s.handleCreateConversation).Methods("POST")
	api.HandleFunc("/conversations/{id}/messages", s.handleSendMessage).Methods("POST")
	api.HandleFunc("/conversations/{id}/messages/{messageId}/like", s.handleToggleLike).Methods("POST")
	api.HandleFunc("/conversations/{id}/deletions", s.handleDeleteMessages).Methods("POST")
	api.HandleFunc("/chats/ws", s.handleChatListWS).Methods("GET")
	api.HandleFunc("/conversations/{id}/ws", s.handleConversationWS).Methods("GET")

	return r
}

// Start begins serving requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("gateway starting", zap.String("addr", s.addr))
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gateway stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("gateway shutdown", zap.Error(err))
	}
}
