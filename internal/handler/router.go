package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	emotionanalysis "github.com/zhouzirui/mindful/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mindful/backend/internal/handler/analysis"
	"github.com/zhouzirui/mindful/backend/internal/handler/chat"
	"github.com/zhouzirui/mindful/backend/internal/handler/persona"
	"github.com/zhouzirui/mindful/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/mindful/backend/internal/middleware"
	personaModel "github.com/zhouzirui/mindful/backend/internal/model/persona"
	"github.com/zhouzirui/mindful/backend/internal/observability"
	"github.com/zhouzirui/mindful/backend/internal/service/aggregator"
	"github.com/zhouzirui/mindful/backend/internal/service/conversation"
	"github.com/zhouzirui/mindful/backend/pkg/utils"
)

// Dependencies 汇总路由需要的服务。Metrics 为 nil 时不暴露 /metrics。
type Dependencies struct {
	Personas      personaModel.Store
	Conversations *conversation.Service
	Aggregator    *aggregator.Service
	Classifier    emotionanalysis.Classifier
	Provider      string
	Metrics       *observability.Metrics
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	var recorder analysis.WSRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Conversations)
	streamHandler := stream.New(deps.Conversations)
	analysisHandler := analysis.New(deps.Aggregator, deps.Classifier, recorder)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"activeSessions": deps.Aggregator.ActiveCount(),
			"classifier":     deps.Provider,
		})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		analysisHandler.RegisterRoutes(api)
	})

	return r
}
