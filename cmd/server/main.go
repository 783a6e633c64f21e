package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/pwasik/parley/internal/api"
	"github.com/pwasik/parley/internal/config"
	"github.com/pwasik/parley/internal/db"
	"github.com/pwasik/parley/internal/hub"
	"github.com/pwasik/parley/internal/invite"
	"github.com/pwasik/parley/internal/middleware"
	"github.com/pwasik/parley/internal/observ"
	"github.com/pwasik/parley/internal/registry"
	"github.com/pwasik/parley/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no parent request or deadline; Background() is right
	// here; every request after this gets its own context.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// One pool shared by every store; pgxpool is goroutine-safe.
	pool := database.Pool()
	roomRepo := postgres.NewRoomStore(pool)
	membershipRepo := postgres.NewMembershipStore(pool)
	messageRepo := postgres.NewMessageStore(pool)
	inviteKeyRepo := postgres.NewInviteKeyStore(pool)
	userRepo := postgres.NewUserStore(pool)

	reg := registry.New(roomRepo, membershipRepo)
	engine := invite.NewEngine(inviteKeyRepo, membershipRepo)

	// The channel layer is the broadcast fabric behind the hub. Redis
	// pub/sub lets members of the same room chat across instances; the
	// in-memory layer serves single-node deployments with no Redis.
	var layer hub.ChannelLayer
	switch cfg.ChannelLayer {
	case "memory":
		layer = hub.NewMemoryLayer()
	default:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		layer = hub.NewRedisLayer(rdb, logger)
	}

	sessions := hub.New(layer, messageRepo, logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go func() {
		if err := sessions.Run(hubCtx); err != nil && hubCtx.Err() == nil {
			logger.Error("hub stopped", zap.Error(err))
		}
	}()

	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, logger)
	roomHandler := api.NewRoomHandler(reg, logger)
	messageHandler := api.NewMessageHandler(messageRepo, reg, logger)
	inviteHandler := api.NewInviteHandler(engine, reg, logger)
	userHandler := api.NewUserHandler(userRepo, logger)
	wsHandler := api.NewWSHandler(sessions, reg, logger)

	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	// Health stays public so load balancers can probe it.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv.POST("/v1/auth/signup", authHandler.Signup)
	srv.POST("/v1/auth/login", authHandler.Login)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/users/me", userHandler.GetMe)

	v1.GET("/rooms", roomHandler.List)
	v1.GET("/rooms/manage", roomHandler.ListManaged)
	v1.POST("/rooms", roomHandler.Create)
	v1.PATCH("/rooms/:id", roomHandler.Update)
	v1.POST("/rooms/:id/members", roomHandler.AddMember)
	v1.DELETE("/rooms/:id/members", roomHandler.RemoveMember)
	v1.POST("/rooms/:id/admins", roomHandler.AddAdmin)
	v1.DELETE("/rooms/:id/admins", roomHandler.RemoveAdmin)
	v1.GET("/rooms/:id/messages", messageHandler.List)

	v1.POST("/invites", inviteHandler.Issue)
	v1.GET("/invites", inviteHandler.List)
	v1.POST("/invites/:key/redeem", inviteHandler.Redeem)

	staff := v1.Group("")
	staff.Use(middleware.StaffOnly())
	staff.GET("/users", userHandler.List)
	staff.DELETE("/messages/:id", messageHandler.Delete)
	staff.DELETE("/invites/:id", inviteHandler.Delete)

	// The realtime endpoint lives outside /v1: it is a protocol upgrade,
	// not a REST resource. Same JWT middleware, token also accepted as
	// ?token= for browser clients.
	ws := srv.Group("/ws")
	ws.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	ws.GET("/:room", wsHandler.Connect)

	logger.Info("starting parley",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("channel_layer", cfg.ChannelLayer),
	)

	return srv.Run(":" + cfg.Port)
}
