package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/chatwidget/internal/config"
	"github.com/zhouzirui/chatwidget/internal/handler/chat"
	middlewarePkg "github.com/zhouzirui/chatwidget/internal/middleware"
	aiService "github.com/zhouzirui/chatwidget/internal/service/ai"
	chatService "github.com/zhouzirui/chatwidget/internal/service/chat"
	"github.com/zhouzirui/chatwidget/pkg/utils"
	"github.com/zhouzirui/chatwidget/web"
)

// NewRouter wires HTTP routes to core services. aiSvc may be nil, in which
// case chat turns answer 503.
func NewRouter(cfg *config.Config, chatSvc *chatService.Service, aiSvc *aiService.Service, logger *zap.Logger) http.Handler {
	var responder chat.Responder
	if aiSvc != nil {
		responder = aiSvc
	}
	return newRouter(cfg.Server, cfg.AI.Timeout, chatSvc, responder, logger)
}

func newRouter(serverCfg config.ServerConfig, timeout time.Duration, chatSvc *chatService.Service, responder chat.Responder, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(serverCfg.AllowedOrigins))

	chatHandler := chat.New(chatSvc, responder, timeout, logger)
	chatHandler.RegisterRoutes(r)

	static := web.Static()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "index.html")
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"model":  responder != nil,
		})
	})

	return r
}
