package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/planfit-ai/planfit/internal/chat"
)

const maxEnvelopeBytes = 1 << 20

// Handler consumes inbound envelopes after the transport has accepted them.
// Calls run on their own goroutine; the HTTP response does not wait for them.
type Handler interface {
	HandleMessage(ctx context.Context, sender, sessionID string, msg chat.Message)
	HandleAcknowledgement(ctx context.Context, sender string, ack chat.Acknowledgement)
}

// Server accepts chat envelopes from peer agents over HTTP.
type Server struct {
	handler Handler
	courier *HTTPCourier
	logger  *zap.Logger
	srv     *http.Server
}

// NewServer builds the HTTP server on addr. courier may be nil; when set,
// endpoints carried on inbound envelopes are learned for replies.
func NewServer(addr string, handler Handler, courier *HTTPCourier, logger *zap.Logger) *Server {
	s := &Server{handler: handler, courier: courier, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/messages", s.handleEnvelope)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("transport listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// HTTPHandler exposes the router, used by tests.
func (s *Server) HTTPHandler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleEnvelope validates and dispatches one inbound envelope. The response
// is 202: delivery is accepted, processing happens asynchronously so slow
// planning never stalls the peer.
func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err := dec.Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "malformed envelope")
		return
	}
	if env.Sender == "" {
		writeError(w, http.StatusBadRequest, "envelope has no sender")
		return
	}
	if (env.Message == nil) == (env.Ack == nil) {
		writeError(w, http.StatusBadRequest, "envelope must carry exactly one of message or ack")
		return
	}
	if env.Message != nil {
		if err := env.Message.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if s.courier != nil {
		s.courier.Learn(env.Sender, env.Endpoint)
	}

	// The request context dies when this handler returns; processing gets
	// its own.
	if env.Message != nil {
		msg := *env.Message
		go s.handler.HandleMessage(context.Background(), env.Sender, env.SessionID, msg)
	} else {
		ack := *env.Ack
		go s.handler.HandleAcknowledgement(context.Background(), env.Sender, ack)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"accepted"}`))
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
