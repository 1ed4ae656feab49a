package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))

	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"Content-Disposition", "X-Feed-Items", "X-Feed-Puid"},
		MaxAge:          12 * time.Hour,
	}))

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	api := r.Group("/api")
	{
		api.GET("/mps", handler.ListAccounts)
		api.GET("/rss/:puid", handler.GetFeed)
		api.GET("/has-articles/:puid", handler.HasArticles)
		api.GET("/has-articles-batch", handler.BatchHasArticles)
		api.GET("/article-counts-batch", handler.BatchArticleCounts)
		api.POST("/opml", handler.ExportOPML)
	}

	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "mp-rss",
			"version":     handler.cfg.Version,
			"description": "RSS feeds and OPML bundles for archived WeChat public accounts",
			"endpoints": map[string]string{
				"accounts":           "/api/mps?refresh=<bool>",
				"feed":               "/api/rss/<puid>?limit=<n>",
				"has_articles":       "/api/has-articles/<puid>",
				"has_articles_batch": "/api/has-articles-batch",
				"article_counts":     "/api/article-counts-batch",
				"opml":               "/api/opml (POST)",
				"health":             "/health",
				"metrics":            "/metrics",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}
