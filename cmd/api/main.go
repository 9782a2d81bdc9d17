package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/zhouzirui/mindful/backend/internal/config"
	"github.com/zhouzirui/mindful/backend/internal/handler"
	"github.com/zhouzirui/mindful/backend/internal/model/persona"
	"github.com/zhouzirui/mindful/backend/internal/observability"
	"github.com/zhouzirui/mindful/backend/internal/service/aggregator"
	"github.com/zhouzirui/mindful/backend/internal/service/ai"
	"github.com/zhouzirui/mindful/backend/internal/service/chat"
	"github.com/zhouzirui/mindful/backend/internal/service/classify"
	"github.com/zhouzirui/mindful/backend/internal/service/conversation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)

	// 全进程共享一个聚合器实例
	agg := aggregator.New(
		aggregator.WithTimelineBucket(cfg.Analysis.TimelineBucket),
		aggregator.WithObserver(metrics),
	)

	personaStore := persona.NewMemoryStore(persona.Seed())
	chatService := chat.NewService()

	// Initialize AI service
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing with canned replies - 请检查 Ark 模型相关环境变量")
			aiService = nil
		} else {
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，使用内置回复")
	}

	var chatModel model.ChatModel
	if aiService != nil {
		chatModel = aiService.GetChatModel()
	}
	classifier, provider, err := classify.New(ctx, cfg.Classifier, chatModel, metrics)
	if err != nil {
		log.Fatalf("failed to initialize classifier: %v", err)
	}
	log.Printf("emotion classifier provider=%s", provider)

	// responder 为 nil 接口时会话服务使用内置回复
	var responder conversation.Responder
	if aiService != nil {
		responder = aiService
	}
	conversations := conversation.NewService(chatService, personaStore, agg, classifier, responder)

	router := handler.NewRouter(handler.Dependencies{
		Personas:      personaStore,
		Conversations: conversations,
		Aggregator:    agg,
		Classifier:    classifier,
		Provider:      provider,
		Metrics:       metrics,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Mindful backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
