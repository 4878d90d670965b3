package http

import (
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/adapters/viewer"
	"github.com/dkeye/Dash/internal/app/orch"
	"github.com/dkeye/Dash/internal/config"
	"github.com/dkeye/Dash/internal/domain"
)

const (
	sessionName = "DashSessions"
	tokenKey    = "client_token"
)

// ClientTokenMiddleware gives every browser a stable viewer token kept in
// the signed session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(tokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(tokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(tokenKey, token)
		c.Next()
	}
}

// SetupRouter serves the viewer UI, its WebSocket, the status API and,
// when gatherer is non-nil, prometheus metrics.
func SetupRouter(cfg *config.Config, o *orch.Orchestrator, hub *viewer.Hub, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Bool("metrics", gatherer != nil).Msg("router setup")

	api := r.Group("/api")

	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Snapshot())
	})

	api.POST("/reconnect", func(c *gin.Context) {
		token := c.GetString(tokenKey)
		log.Info().Str("module", "adapters.http").Str("token", token).Msg("reconnect endpoint hit")
		if !hub.Reconnect(token) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Status(http.StatusAccepted)
	})

	api.POST("/viewport", func(c *gin.Context) {
		var v domain.Viewport
		if err := c.ShouldBindJSON(&v); err != nil || v.Width <= 0 || v.Height <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid viewport"})
			return
		}
		o.Viewport(v)
		c.Status(http.StatusNoContent)
	})

	api.GET("/ws/hud", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("token", c.GetString(tokenKey)).Msg("ws hud endpoint hit")
		hub.ServeWS(c.Writer, c.Request, c.GetString(tokenKey))
	})

	return r
}
