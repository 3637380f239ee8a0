// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"delivery-service/internal/broker"
	"delivery-service/internal/config"
	"delivery-service/internal/db"
	wstypes "delivery-service/internal/domain/websocket"
	wsHandler "delivery-service/internal/handlers/websocket"
	"delivery-service/internal/middleware"
	"delivery-service/internal/pkg/response"
	"delivery-service/internal/pkg/session"
	"delivery-service/internal/repository/postgres"
	"delivery-service/internal/service/delivery"
	"delivery-service/internal/websocket"
	wsHandlers "delivery-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg     config.AppConfig
	engine  *gin.Engine
	httpSrv *http.Server
	logger  *zap.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client
	router      *delivery.Router

	// background holds the relay subscriber
	background sync.WaitGroup
	stop       context.CancelFunc
	ctx        context.Context
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	engine := gin.New()
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		engine:  engine,
		httpSrv: &http.Server{Addr: cfg.HTTPAddr, Handler: engine},
		logger:  logger,
		ctx:     ctx,
		stop:    stop,
	}
}

func (s *Server) Start() error {
	ctx := s.ctx
	logger := s.logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{URL: s.cfg.DatabaseURL, MaxConns: s.cfg.DBMaxConns})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool
	logger.Info("[POSTGRES] ✅ Connected successfully")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.redisClient = redisClient
	logger.Info("[REDIS] ✅ Connected successfully")

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	muteRepo := postgres.NewMuteRepository(pool)

	// ----- Broker -----
	redisBroker := broker.NewRedis(redisClient, s.cfg.RelayChannelPrefix, logger)

	// ----- Delivery Router -----
	s.router = delivery.NewRouter(delivery.Config{
		NodeID:            s.cfg.NodeID,
		NotificationQueue: s.cfg.NotificationQueue,
		FanoutLimit:       s.cfg.FanoutLimit,
	}, sessionRepo, muteRepo, redisBroker, logger)

	relay := broker.NewRelaySubscriber(redisClient, redisBroker.RelayChannel(s.cfg.NodeID), s.router, logger)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := relay.Run(ctx); err != nil {
			logger.Error("relay subscriber exited", zap.Error(err))
		}
	}()

	// ----- WebSocket Router -----
	builder := response.NewBuilder(&wstypes.Versions{
		IOS:     s.cfg.AppVersionIOS,
		Android: s.cfg.AppVersionAndroid,
	}, nil)
	wsRouter := websocket.NewRouter(builder, logger)
	wsRouter.Register(wsHandlers.NewPresenceHandler(s.cfg.NodeID))

	// Upgrade attempts per client IP per minute, shared across nodes.
	connectLimiter := session.NewRateLimiter(redisClient, int64(s.cfg.WSConnectLimit), time.Minute)

	// ----- Handlers -----
	wsHandlerInst := wsHandler.NewWebSocketHandler(sessionRepo, s.router, wsRouter, logger)

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)

	// ----- Router -----
	SetupRouter(s.engine, logger, &Handlers{
		Health:    s.health(dbWrapper),
		WSHandler: wsHandlerInst,
		WSLimit:   middleware.RateLimitMiddleware(connectLimiter, "ws", logger),
	})

	// ----- Start HTTP -----
	logger.Info("🚀 Server running",
		zap.String("addr", s.cfg.HTTPAddr),
		zap.String("node_id", s.cfg.NodeID),
	)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, stops the relay subscriber and closes
// the pools. Open sockets die with the process.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	s.stop()
	s.background.Wait()

	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func (s *Server) health(database *postgres.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := database.Ping(ctx); err != nil {
			response.Error(c, http.StatusServiceUnavailable, "postgres unavailable", err)
			return
		}
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			response.Error(c, http.StatusServiceUnavailable, "redis unavailable", err)
			return
		}

		response.Success(c, http.StatusOK, "ok", gin.H{
			"node_id":     s.cfg.NodeID,
			"connections": s.router.ConnectionCount(),
		})
	}
}
