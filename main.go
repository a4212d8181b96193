package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"clauselens/analytics"
	"clauselens/config"
	"clauselens/llmclient"
	"clauselens/pipeline"
	"clauselens/qa"
	"clauselens/store"
	"clauselens/web"
	"clauselens/web/handlers"
	"clauselens/web/services"
	"clauselens/web/types"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// Bootstrap logger at info so config loading can log; rebuilt below at
	// the configured level.
	tempLogger, err := config.NewLogger("info")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load(tempLogger)

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.FlushLogs()

	st, err := store.NewPostgresStore(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx, cfg.EmbeddingDimension); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}

	llm := llmclient.New(cfg, logger)
	chatFn := func(ctx context.Context, messages []types.LLMMessage, temperature *float64) (string, error) {
		return llm.Chat(ctx, cfg.MainLLMHost, messages, temperature)
	}
	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return llm.Embed(ctx, cfg.EmbeddingLLMHost, text)
	}
	embedBatchFn := func(ctx context.Context, texts []string) ([][]float32, error) {
		vecs := make([][]float32, len(texts))
		for i, text := range texts {
			vec, err := embedFn(ctx, text)
			if err != nil {
				return nil, err
			}
			vecs[i] = vec
		}
		return vecs, nil
	}

	publisher, err := analytics.NewPublisher(ctx, cfg.ProjectID, cfg.PubSubTopic, cfg.AnalyticsEnabled, logger)
	if err != nil {
		logger.Fatal("Failed to initialize analytics publisher", zap.Error(err))
	}
	defer publisher.Close()

	layout := pipeline.NewLayoutClient(cfg.LayoutExtractorURL, cfg.LLMRequestTimeout, cfg.LayoutExtractorEnabled, logger)
	scanner := pipeline.NewScannerClient(cfg.PIIScannerURL, cfg.LLMRequestTimeout, cfg.DLPEnabled, logger)

	orchestrator := pipeline.NewOrchestrator(
		cfg,
		st,
		pipeline.NewExtractor(cfg, layout, logger),
		scanner,
		pipeline.NewSegmenter(logger),
		pipeline.NewClassifier(embedBatchFn, logger),
		pipeline.NewReadabilityAnalyzer(logger),
		pipeline.NewSummarizer(cfg, chatFn, logger),
		pipeline.NewRiskAnalyzer(logger),
		pipeline.NewEmbedder(embedFn, cfg.EmbeddingDimension, logger),
		publisher,
		logger,
	)

	cache, err := qa.NewClauseCache(cfg.CacheMaxEntries, cfg.CacheTTL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize clause cache", zap.Error(err))
	}

	memory := qa.NewConversationMemory(st, chatFn, cfg.ContextWindowMessages, cfg.SummaryThreshold, logger)
	responder := qa.NewResponder(cfg, st, cache, memory, chatFn, embedFn, publisher, logger)

	uploadService := services.NewUploadService(cfg, st, orchestrator, publisher, logger)
	documentService := services.NewDocumentService(st, orchestrator, cache, logger)
	chatService := services.NewChatService(st, responder, logger)
	sessionService := services.NewSessionService(st, logger)

	webServer := web.NewServer(
		cfg,
		handlers.NewDocumentHandler(uploadService, documentService, logger),
		handlers.NewQAHandler(chatService, logger),
		handlers.NewSessionHandler(sessionService, logger),
		handlers.NewSystemHandler(st, cache, logger),
		logger,
	)

	// Create context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orchestrator.Start(ctx)
	cache.StartSweeper(ctx)

	if cfg.CleanupEnabled {
		cleanup := web.NewCleanupService(st, cfg.SessionRetentionAge, cfg.CleanupInterval, logger)
		go cleanup.Run(ctx)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if err := webServer.Start(ctx, addr); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}

	orchestrator.Stop()
	responder.Flush()
}
