package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-dashboard/internal/dashboard"
	"github.com/noah-isme/sma-adp-dashboard/internal/middleware"
	"github.com/noah-isme/sma-adp-dashboard/internal/resource"
	"github.com/noah-isme/sma-adp-dashboard/internal/service"
	"github.com/noah-isme/sma-adp-dashboard/internal/session"
	"github.com/noah-isme/sma-adp-dashboard/internal/view"
	"github.com/noah-isme/sma-adp-dashboard/pkg/config"
	"github.com/noah-isme/sma-adp-dashboard/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-dashboard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-dashboard/pkg/middleware/requestid"
)

// Deps bundles everything the router needs.
type Deps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Sessions  SessionManager
	Resources *resource.Registry
	Tabs      *dashboard.Router
	Renderer  *view.Renderer
	Metrics   *service.MetricsService
	Redis     *redis.Client
}

// NewRouter builds the gin engine with every route of the dashboard.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tabs := d.Tabs
	if tabs == nil {
		tabs = dashboard.FromRegistry(d.Resources)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	if cfg.Metrics.Enabled && d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	r.SetHTMLTemplate(d.Renderer.Template())

	authHandler := NewAuthHandler(d.Sessions, log)
	dashboardHandler := NewDashboardHandler(tabs, d.Resources, d.Renderer, d.Sessions, log)
	resourceHandler := NewResourceHandler(d.Resources)
	metricsHandler := NewMetricsHandler(d.Metrics, d.Redis, log)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	web := r.Group("", middleware.CSRF(session.CSRFKey(cfg.Session.Secret), cfg.Session.SecureCookie))
	optional := middleware.OptionalSession(d.Sessions)
	web.GET("/", optional, authHandler.Index)
	web.GET(middleware.LoginPath, optional, authHandler.LoginPage)
	web.POST(middleware.LoginPath, authHandler.Login)
	web.POST("/logout", authHandler.Logout)

	pages := web.Group(dashboardPath, middleware.RequireSession(d.Sessions, middleware.RedirectToLogin))
	{
		pages.GET("", dashboardHandler.Home)
		pages.GET("/:tab", dashboardHandler.Tab)
		pages.GET("/:tab/panel", dashboardHandler.Panel)
		pages.GET("/:tab/export", middleware.Audit(log, "export", "tab"), dashboardHandler.Export)

		admin := pages.Group("", middleware.RequireAdmin(middleware.PlainError))
		admin.GET("/:tab/new", dashboardHandler.NewForm)
		admin.POST("/:tab", middleware.Audit(log, "create", "tab"), dashboardHandler.Create)
		admin.GET("/:tab/delete/:id", dashboardHandler.ConfirmDelete)
		admin.POST("/:tab/delete/:id", middleware.Audit(log, "delete", "tab"), dashboardHandler.Delete)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	api.Use(middleware.WithResponseMeta())
	api.Use(middleware.JSONOnly())
	{
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		api.POST("/session", authHandler.CreateSession)

		secured := api.Group("", middleware.RequireSession(d.Sessions, middleware.JSONError))
		secured.GET("/session", authHandler.CurrentSession)
		secured.DELETE("/session", authHandler.DeleteSession)
		secured.GET("/status", metricsHandler.Status)
		secured.GET("/resources/:resource", resourceHandler.List)

		admin := secured.Group("", middleware.RequireAdmin(middleware.JSONError))
		admin.POST("/resources/:resource", middleware.Audit(log, "create", "resource"), resourceHandler.Create)
		admin.DELETE("/resources/:resource/:id", middleware.Audit(log, "delete", "resource"), resourceHandler.Delete)
	}

	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})

	return r
}
