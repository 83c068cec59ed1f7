package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/qs3c/bible_search_server/config"
	"github.com/qs3c/bible_search_server/internal/api/handler"
	"github.com/qs3c/bible_search_server/internal/api/middleware"
	"github.com/qs3c/bible_search_server/internal/model"
	"github.com/qs3c/bible_search_server/internal/pkg/jwt"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Search    *handler.SearchHandler
	Credit    *handler.CreditHandler
	History   *handler.HistoryHandler
	Vote      *handler.VoteHandler
	Payment   *handler.PaymentHandler
	User      *handler.UserHandler
	Media     *handler.MediaHandler
	Health    *handler.HealthHandler
	WebSocket *handler.WebSocketHandler
}

type Router struct {
	handlers *Handlers
	verifier jwt.Verifier
	users    middleware.UserResolver
	usage    middleware.UsageCounter
	cfg      *config.Config
	log      *logrus.Logger
}

func NewRouter(
	handlers *Handlers,
	verifier jwt.Verifier,
	users middleware.UserResolver,
	usage middleware.UsageCounter,
	cfg *config.Config,
	log *logrus.Logger,
) *Router {
	return &Router{
		handlers: handlers,
		verifier: verifier,
		users:    users,
		usage:    usage,
		cfg:      cfg,
		log:      log,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := r.handlers
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(r.log),
		middleware.Recovery(r.log),
		middleware.Metrics(),
		middleware.CORS(r.cfg.CORS),
	)

	engine.GET("/health", h.Health.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limits := r.cfg.Limits
	searchBurst := middleware.NewRateLimiter(limits.RequestsPerSecond, limits.Burst, middleware.KeyByUserOrIP())
	mediaBurst := middleware.NewRateLimiter(limits.RequestsPerSecond, limits.Burst, middleware.KeyByUserOrIP())
	daily := middleware.DailyLimit(r.usage, model.UsageKindGeneral)

	api := engine.Group("/api/v1")
	{
		// WebSocket, token in the query string
		api.GET("/ws", h.WebSocket.Handle)

		// signed by the payment processor
		api.POST("/webhooks/payment", h.Payment.Webhook)

		// anonymous searches are allowed without insights
		api.POST("/search",
			middleware.OptionalAuth(r.verifier, r.users),
			searchBurst.Handler(),
			daily,
			h.Search.Search,
		)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.verifier, r.users), daily)
		{
			authenticated.GET("/credits", h.Credit.Check)
			authenticated.POST("/credits/deduct", h.Credit.Deduct)

			authenticated.GET("/history", h.History.List)
			authenticated.POST("/history", h.History.Append)
			authenticated.DELETE("/history/:id", h.History.Delete)

			authenticated.POST("/vote", h.Vote.Vote)

			authenticated.POST("/checkout", h.Payment.Checkout)
			authenticated.POST("/transactions/cancel", h.Payment.Cancel)

			user := authenticated.Group("/user")
			{
				user.GET("/me", h.User.Me)
				user.POST("/sync", h.User.Sync)
				user.GET("/settings", h.User.GetSettings)
				user.PUT("/settings", h.User.UpdateSettings)
			}

			authenticated.GET("/media", mediaBurst.Handler(), h.Media.Search)
		}
	}

	return engine
}
