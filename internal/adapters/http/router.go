package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Nearby/internal/adapters/signal"
	"github.com/dkeye/Nearby/internal/app/orch"
	"github.com/dkeye/Nearby/internal/auth"
	"github.com/dkeye/Nearby/internal/config"
	"github.com/dkeye/Nearby/internal/core"
	"github.com/dkeye/Nearby/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sessionUserKey = "username"

type credentialsRequest struct {
	Username string `json:"username" binding:"required,max=36"`
	Password string `json:"password" binding:"required"`
}

func SignalOptions(cfg *config.Config) signal.Options {
	return signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait(),
		SendBuffer: cfg.SendBuffer,
		ChatLimit:  cfg.Chat.RateLimit,
		ChatWindow: cfg.Chat.RateWindow,
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, users *auth.Service) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		log.Warn().Str("module", "adapters.http").Msg("no session secret configured, sessions will not survive a restart")
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("NearbySessions", store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.POST("/register", func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		err := users.Register(c.Request.Context(), req.Username, req.Password)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"message": "user created"})
		case errors.Is(err, core.ErrUsernameTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "username already exists"})
		case errors.Is(err, domain.ErrUsernameEmpty), errors.Is(err, domain.ErrUsernameTooLong), errors.Is(err, domain.ErrPasswordEmpty),
			errors.Is(err, domain.ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error().Err(err).Str("module", "adapters.http").Str("username", req.Username).Msg("register")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
		}
	})

	api.POST("/login", func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		err := users.Login(c.Request.Context(), req.Username, req.Password)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "user not found"})
			return
		case errors.Is(err, core.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "wrong password"})
			return
		default:
			log.Error().Err(err).Str("module", "adapters.http").Msg("login")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}

		sess := sessions.Default(c)
		sess.Set(sessionUserKey, req.Username)
		if err := sess.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
		}
		c.JSON(http.StatusOK, gin.H{"message": "login ok", "username": req.Username})
	})

	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"presence":    o.Engine.Stats(),
			"connections": o.Registry.Count(),
		})
	})

	api.GET("/users/online", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": o.Engine.Online()})
	})

	ctrl := signal.NewSignalWSController(o, SignalOptions(cfg))
	api.GET("/ws", func(c *gin.Context) {
		fallback, _ := sessions.Default(c).Get(sessionUserKey).(string)
		ctrl.HandleSignal(ctx, c, fallback)
	})

	return r
}
