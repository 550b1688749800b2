package server

import (
	"log/slog"
	"net/http"
	"time"

	"syncroom/internal/app/registry"
	"syncroom/internal/app/server/handlers"
	"syncroom/internal/config"
	"syncroom/internal/core/services"
	"syncroom/pkg/middleware"
)

type Server struct {
	mux            *http.ServeMux
	addr           string
	log            *slog.Logger
	wsHandler      *handlers.WSHandler
	historyHandler *handlers.HistoryHandler
	tokenSvc       *services.TokenService
	serviceName    string
}

func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	tokenSvc *services.TokenService,
	session *services.SessionService,
	chat *services.ChatService,
	whiteboard *services.WhiteboardService,
	signaling *services.SignalingService,
	hub *registry.Registry,
) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		addr:           cfg.Service.Addr,
		log:            log,
		wsHandler:      handlers.NewWSHandler(hub, session, chat, whiteboard, signaling, cfg.Broker.LivenessTimeout),
		historyHandler: handlers.NewHistoryHandler(chat, cfg.Broker.HistoryLimit),
		tokenSvc:       tokenSvc,
		serviceName:    cfg.Service.Name,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)
	logging := middleware.RequestLogger(s.log)
	tracing := middleware.TracerMiddleware(s.serviceName)

	wrap := func(h http.Handler) http.Handler {
		return tracing(logging(auth(h)))
	}

	// The credential is checked before the upgrade; a connection without
	// one is refused here and never reaches the registry.
	s.mux.Handle("/ws", wrap(http.HandlerFunc(s.wsHandler.Handler)))
	s.mux.Handle("GET /rooms/{roomID}/messages", wrap(http.HandlerFunc(s.historyHandler.Messages)))
}

func (s *Server) Start() error {
	server := &http.Server{
		Addr:        s.addr,
		Handler:     s.mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would kill long-lived WebSocket sessions.
	}
	s.log.Info("server starting", "addr", s.addr)
	return server.ListenAndServe()
}
