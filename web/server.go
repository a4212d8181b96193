package web

import (
	"context"
	"net/http"
	"time"

	"clauselens/config"
	"clauselens/web/handlers"
	"clauselens/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server wires the HTTP surface: documents, Q&A, sessions, and operations.
type Server struct {
	router    *gin.Engine
	documents *handlers.DocumentHandler
	questions *handlers.QAHandler
	sessions  *handlers.SessionHandler
	system    *handlers.SystemHandler
	limiter   *middleware.ClientRateLimiter
	logger    *zap.Logger
	config    *config.Config
}

func NewServer(
	cfg *config.Config,
	documents *handlers.DocumentHandler,
	questions *handlers.QAHandler,
	sessions *handlers.SessionHandler,
	system *handlers.SystemHandler,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	limiter := middleware.NewClientRateLimiter(middleware.RateLimiterConfig{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		BurstSize:         cfg.RateLimitBurstSize,
		CleanupInterval:   10 * time.Minute,
	}, logger)

	server := &Server{
		router:    router,
		documents: documents,
		questions: questions,
		sessions:  sessions,
		system:    system,
		limiter:   limiter,
		logger:    logger,
		config:    cfg,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	api.GET("/health", s.system.Health)
	api.GET("/cache/stats", s.system.CacheStats)

	docs := api.Group("/documents")
	docs.POST("", s.documents.Upload)
	docs.GET("/:doc_id", s.documents.Status)
	docs.DELETE("/:doc_id", s.documents.Delete)
	docs.GET("/:doc_id/clauses", s.documents.Clauses)
	docs.GET("/:doc_id/clauses/:clause_id", s.documents.Clause)
	docs.GET("/:doc_id/qa-history", s.documents.QAHistory)
	docs.GET("/:doc_id/negotiations", s.documents.Negotiations)
	docs.POST("/:doc_id/clauses/:clause_id/negotiations", s.documents.SaveNegotiation)

	// Question endpoints carry the LLM cost, so they are rate limited.
	rateLimited := middleware.RateLimitMiddleware(s.limiter, s.logger)
	docs.POST("/:doc_id/ask", rateLimited, s.questions.Ask)
	docs.POST("/:doc_id/ask/stream", rateLimited, s.questions.AskStream)

	sessions := api.Group("/sessions")
	sessions.POST("", s.sessions.Create)
	sessions.GET("", s.sessions.List)
	sessions.GET("/:session_id", s.sessions.Get)
	sessions.DELETE("/:session_id", s.sessions.Delete)
	sessions.PUT("/:session_id/documents", s.sessions.UpdateDocuments)
	sessions.POST("/:session_id/archive", s.sessions.Archive)
	sessions.POST("/:session_id/ask", rateLimited, s.questions.AskSession)
	sessions.POST("/:session_id/ask/stream", rateLimited, s.questions.AskSessionStream)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	s.limiter.Stop()
	return srv.Shutdown(context.Background())
}
