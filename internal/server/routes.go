package server

import (
	"net/http"
	"time"

	"github.com/danmuck/turnsync/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(a.appeared).String(),
			"component": a.cfg.Peer,
			"version":   version,
		})
	})

	protected := a.router.Group("/")
	if a.cfg.Token != "" {
		protected.Use(requireToken(auth.StaticToken{Token: a.cfg.Token}))
	}

	protected.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected.GET("/stats", func(c *gin.Context) {
		if a.stats == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session"})
			return
		}
		c.JSON(http.StatusOK, a.stats.Snapshot())
	})
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Check(v, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
