package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"contractforge/app/config"
	"contractforge/app/usecase"
	"contractforge/internal/domain/repository"
	"contractforge/internal/infrastructure/compiler"
	"contractforge/internal/infrastructure/llm"
	"contractforge/internal/infrastructure/metrics"
	"contractforge/internal/infrastructure/store/filesystem"
	mongorepo "contractforge/internal/infrastructure/store/mongodb"
	"contractforge/internal/infrastructure/transport"
	"contractforge/internal/infrastructure/validator"
)

func main() {
	// load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Contract catalogue (optional)
	var contractRepo repository.ContractRepository
	var mongoClient *mongo.Client
	if cfg.Mongo.URI != "" {
		mongoCtx, mongoCancel := context.WithTimeout(ctx, 30*time.Second)
		mongoClient, err = mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err == nil {
			err = mongoClient.Ping(mongoCtx, nil)
		}
		mongoCancel()
		if err != nil {
			logger.Error("mongo connect failed", "err", err)
			os.Exit(1)
		}
		logger.Info("connected to mongo", "db", cfg.Mongo.Database)
		contractRepo = mongorepo.NewMongoContractRepo(mongoClient.Database(cfg.Mongo.Database), logger)
	} else {
		logger.Info("MONGO_URI not set, contract catalogue disabled")
	}

	// Compiler
	workspaces, err := filesystem.NewWorkspaceRepository(cfg.Compiler.WorkDir, cfg.Compiler.ProjectDir)
	if err != nil {
		logger.Error("init workspace repository failed", "err", err)
		os.Exit(1)
	}
	logger.Info("compile workspaces ready", "work_dir", workspaces.GetBasePath())
	toolchain, err := compiler.NewCommandToolchain("", cfg.Compiler.Command)
	if err != nil {
		logger.Error("init toolchain failed", "err", err)
		os.Exit(1)
	}
	pool := compiler.NewPool(toolchain, cfg.Compiler.Workers, cfg.Compiler.Timeout, logger)

	// LLM client (optional)
	var generator repository.LLMGenerator
	if g := llm.NewOpenAIGenerator(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger); g != nil {
		generator = g
		logger.Info("contract generation enabled", "model", g.Model())
	} else {
		logger.Warn("OPENAI_API_KEY not set, contract generation disabled")
	}

	// Usecases / services
	generationSvc := usecase.NewGenerationService(generator, logger)
	compileSvc := usecase.NewCompileService(workspaces, pool, validator.NewSolidityAnalyzer(), logger)
	contractSvc := usecase.NewContractService(contractRepo)

	// Transport (HTTP handlers)
	handler := transport.NewContractHandler(generationSvc, compileSvc, contractSvc, logger)

	// Router and server
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Server.MetricsAddr != "" {
		go func() {
			logger.Info("starting metrics server", "addr", cfg.Server.MetricsAddr)
			if err := metrics.StartMetricsServer(cfg.Server.MetricsAddr); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", "addr", addr,
			"generation", generationSvc.Configured(), "catalogue", contractSvc.Configured())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			cancel()
		}
	}()

	// OS signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	// Shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	if mongoClient != nil {
		logger.Info("disconnecting mongo")
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.Error("mongo disconnect error", "err", err)
		}
	}

	if left, err := workspaces.List(); err == nil && len(left) > 0 {
		logger.Warn("workspaces left behind", "count", len(left))
	}

	logger.Info("service stopped")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
