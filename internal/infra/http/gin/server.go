package ginserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"bagsy/internal/infra/config"
	"bagsy/internal/infra/obs"
)

type NegotiationHTTP interface {
	Open(c *gin.Context)
	Get(c *gin.Context)
	ListMine(c *gin.Context)
	SubmitOffer(c *gin.Context)
	Accept(c *gin.Context)
	Reject(c *gin.Context)
}

type PreferencesHTTP interface {
	Get(c *gin.Context)
	Put(c *gin.Context)
}

type Handlers struct {
	Negotiation NegotiationHTTP
	Preferences PreferencesHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Negotiation != nil {
		api.POST("/negotiations", h.Negotiation.Open)
		api.GET("/negotiations", h.Negotiation.ListMine)
		api.GET("/negotiations/:id", h.Negotiation.Get)
		api.POST("/negotiations/:id/offers", h.Negotiation.SubmitOffer)
		api.POST("/negotiations/:id/accept", h.Negotiation.Accept)
		api.POST("/negotiations/:id/reject", h.Negotiation.Reject)
	}
	if h.Preferences != nil {
		api.GET("/users/:id/agent-preferences", h.Preferences.Get)
		api.PUT("/users/:id/agent-preferences", h.Preferences.Put)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
}

func configureGinMode(env string) string {
	mode := gin.ReleaseMode
	if env == "dev" || env == "local" {
		mode = gin.DebugMode
	}
	gin.SetMode(mode)
	return mode
}
