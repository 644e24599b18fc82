// Package httpapi serves the EMMA chat, retrieval and safety services as
// a JSON API over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/custodia-labs/emma/internal/core/ports/driving"
	"github.com/custodia-labs/emma/internal/logger"
)

// ErrMissingChatService is returned when the server is built without a chat service.
var ErrMissingChatService = errors.New("httpapi: chat service is required")

// Services holds the driving ports the API exposes.
// Chat is required; routes whose service is nil answer 503.
type Services struct {
	Chat          driving.ChatService
	Retrieval     driving.RetrievalService
	Risk          driving.RiskScorer
	Conversations driving.ConversationService

	// Generator names the response model reported by /api/health.
	// Empty means rule-based fallback replies.
	Generator string
}

// Server is the HTTP API server.
type Server struct {
	services Services
	handler  http.Handler
}

// NewServer builds the router over svc.
func NewServer(svc Services) (*Server, error) {
	if svc.Chat == nil {
		return nil, ErrMissingChatService
	}
	s := &Server{services: svc}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http: shutdown: %v", err)
		}
	}()

	logger.Info("HTTP API listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
