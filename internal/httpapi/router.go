// Package httpapi is the browser facing REST surface of the gallery. It runs
// the same workflow as the gRPC service.
package httpapi

import (
	"context"
	"net/http"
	"time"

	galleryv1 "github.com/PaulBabatuyi/CarLot-gRPC/api/gallery/v1"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/middleware"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Config struct {
	Workflow service.Workflow
	Guard    service.Authorizer
	Auth     middleware.Authenticator
	Limits   service.Limits
	Logger   *zap.Logger

	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health reports whether dependencies are reachable.
	Health func(ctx context.Context) error
	// ObjectsRoot serves the filesystem backend under /objects when set.
	ObjectsRoot  string
	AllowOrigins []string
	DevMode      bool
}

type AppHandler struct {
	workflow service.Workflow
	guard    service.Authorizer
	limits   service.Limits
	health   func(ctx context.Context) error
	logger   *zap.Logger
}

// NewRouter builds the gin engine with every route registered. The gin mode
// is left to the caller.
func NewRouter(cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	if len(cfg.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowOrigins,
			AllowMethods:     []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "X-API-Key", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.DevMode {
		pprof.Register(router)
	}

	handler := &AppHandler{
		workflow: cfg.Workflow,
		guard:    cfg.Guard,
		limits:   cfg.Limits,
		health:   cfg.Health,
		logger:   logger,
	}

	// Register Routes
	router.GET("/health", handler.GetHealth)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	if cfg.ObjectsRoot != "" {
		router.Static("/objects", cfg.ObjectsRoot)
	}

	listings := router.Group("/listings/:id/images")
	listings.GET("", handler.GetImageList)
	authed := listings.Group("", authRequired(cfg.Auth))
	authed.POST("", handler.PostImages)
	authed.DELETE("/:imageId", handler.DeleteImage)

	router.NoRoute(func(ctx *gin.Context) { ctx.JSON(http.StatusNotFound, gin.H{}) })
	return router
}

// authRequired accepts "Authorization: Bearer <token>" or "X-API-Key".
func authRequired(auth middleware.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := middleware.BearerToken(c.GetHeader("Authorization"))
		if credential == "" {
			credential = c.GetHeader("X-API-Key")
		}
		if credential == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "missing credentials"})
			return
		}
		principal, err := auth.Authenticate(c.Request.Context(), credential)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid credentials"})
			return
		}
		c.Request = c.Request.WithContext(middleware.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zap.InfoLevel
		switch {
		case status >= 500:
			level = zap.ErrorLevel
		case status >= 400:
			level = zap.WarnLevel
		}
		if ce := logger.Check(level, "http request"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Int("status", status),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("duration", time.Since(start)),
			)
		}
	}
}

func (a *AppHandler) entry(img models.ImageAsset) *galleryv1.ImageEntry {
	return &galleryv1.ImageEntry{
		ImageID:      img.ID,
		ListingID:    img.ListingID,
		Bucket:       img.Bucket,
		Path:         img.Path,
		Position:     int32(img.Position),
		URL:          a.workflow.URL(img),
		ThumbnailURL: a.workflow.ThumbnailURL(img),
		CreatedAt:    img.CreatedAt,
	}
}
