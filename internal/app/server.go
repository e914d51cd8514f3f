package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/multiversa/cortex/internal/api/handlers"
	appMiddleware "github.com/multiversa/cortex/internal/api/middlewares"
	"github.com/multiversa/cortex/internal/config"
	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/core/channel"
	"github.com/multiversa/cortex/internal/services"
)

// Server wraps the HTTP server instance and its routes.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	db core.DbClient,
	identity *services.IdentityRegistry,
	memory *services.MemoryService,
	orchestrator *services.Orchestrator,
	tracker *services.TaskTracker,
	fleet *services.NanoFleet,
	embedder core.EmbeddingProvider,
	telegram *channel.Telegram,
	whatsapp *channel.WhatsApp,
	logger *zap.Logger,
) *Server {
	authHandler := handlers.NewAuthHandler(db, identity, memory, cfg.JWTSecret)
	chatHandler := handlers.NewChatHandler(orchestrator, tracker, logger)
	channelHandler := handlers.NewChannelHandler(identity, orchestrator, telegram, whatsapp, cfg.Domain, logger)
	memoryHandler := handlers.NewMemoryHandler(memory, identity, db, embedder, logger)
	brainHandler := handlers.NewBrainHandler(db, identity, fleet, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// public endpoints
	r.Post("/api/signup", authHandler.Signup)
	r.Post("/api/login", authHandler.Login)

	// channel webhooks authenticate via whitelist + verified profile, not JWT
	r.Get("/webhook/whatsapp", channelHandler.WhatsAppVerify)
	r.Post("/webhook/whatsapp", channelHandler.WhatsAppWebhook)
	r.Post("/webhook/telegram", channelHandler.TelegramWebhook)

	// protected endpoints
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(appMiddleware.JWT(cfg.JWTSecret))

		api.Post("/chat", chatHandler.Chat)
		api.Post("/chat/stream", chatHandler.ChatStream)
		api.Get("/task/{id}", chatHandler.TaskStatus)

		api.Get("/auth/profile", authHandler.Profile)
		api.Get("/auth/stats", authHandler.Stats)

		api.Post("/channels/link", channelHandler.Link)
		api.Post("/channels/verify", channelHandler.Verify)
		api.Post("/telegram/set-webhook", channelHandler.SetTelegramWebhook)

		api.Post("/memory/search", memoryHandler.Search)
		api.Get("/memory/context", memoryHandler.Context)
		api.Post("/memory/summarize", memoryHandler.Summarize)
		api.Post("/memory/clear", memoryHandler.Clear)
		api.Post("/knowledge/search", memoryHandler.KnowledgeSearch)

		api.Get("/nanoaureons", brainHandler.ListNanoAureons)
		api.Post("/nanoaureons/{type}/execute", brainHandler.ExecuteNanoAureon)
	})

	r.Route("/brain", func(brain chi.Router) {
		brain.Use(appMiddleware.JWT(cfg.JWTSecret))
		brain.Post("/secrets", brainHandler.SaveSecret)
		brain.Get("/secrets/{key}", brainHandler.GetSecret)
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request with status and latency.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
