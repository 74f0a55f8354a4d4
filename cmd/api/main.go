package main

import (
	"context"
	"errors"
	"log"

	"workforce-chat/config"
	"workforce-chat/internal/domain"
	"workforce-chat/internal/events"
	"workforce-chat/internal/handler"
	"workforce-chat/internal/metrics"
	chatredis "workforce-chat/internal/redis"
	"workforce-chat/internal/repository"
	"workforce-chat/internal/server"
	"workforce-chat/internal/services"
	"workforce-chat/pkg/database"
	"workforce-chat/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type store struct {
	conversations repository.ConversationRepository
	users         domain.UserDirectory
	teams         domain.TeamDirectory
	db            *gorm.DB
}

func openStore(cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		dir := repository.NewMemoryDirectory()
		return &store{
			conversations: repository.NewMemoryConversationRepository(),
			users:         dir,
			teams:         dir,
		}, nil
	case config.StoreDriverPostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		if err := repository.InitSchema(db, false); err != nil {
			return nil, err
		}
		return &store{
			conversations: repository.NewConversationRepository(db),
			users:         repository.NewUserDirectory(db),
			teams:         repository.NewTeamDirectory(db),
			db:            db,
		}, nil
	default:
		return nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
}

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer database.Close(st.db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(registry)

	rdb, err := chatredis.Connect(ctx, chatredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		l.WarnCtx(ctx, "redis unavailable, running with local delivery only", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	users := st.users
	var sendLimiter services.SendLimiter
	var groupLimiter services.GroupLimiter
	var publisher events.Publisher
	if rdb != nil {
		users = chatredis.NewProfileCache(rdb, st.users, chatredis.DefaultCacheConfig(), l)
		limits := chatredis.DefaultRateLimitConfig()
		limits.MessageLimit = cfg.MessageRateLimit
		limiter := chatredis.NewRateLimiter(rdb, limits)
		sendLimiter = limiter
		groupLimiter = limiter
		if cfg.FanoutMode == config.FanoutModeRedis {
			publisher = events.NewRedisBus(rdb, l)
		}
	}

	teamSync := services.NewTeamSyncService(st.conversations, users, l, collector)
	groupService := services.NewGroupService(st.conversations, users, st.teams, groupLimiter, l, collector)
	messageService := services.NewMessageService(st.conversations, users, sendLimiter, l, collector).WithGroupGuard(groupService)
	queryService := services.NewQueryService(st.conversations, st.teams, teamSync, cfg.HistoryDefaultLimit, l)
	authService := services.NewAuthService(cfg.JWTSecret)

	wsLogger := server.NewWebSocketLogger(l)
	hub := server.NewHub(server.HubOptions{
		Messages:  messageService,
		Queries:   queryService,
		Publisher: publisher,
		Metrics:   collector,
		Logger:    wsLogger,
	})
	go hub.Run()
	defer hub.Stop()

	if bus, ok := publisher.(*events.RedisBus); ok {
		go func() {
			if err := bus.Subscribe(ctx, hub.Deliver); err != nil {
				l.ErrorCtx(ctx, "delivery bus stopped", zap.Error(err))
			}
		}()
	}

	teamConsumer := events.NewTeamEventConsumer(nil, cfg.NATSTeamSubject, teamSync, l)
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("workforce-chat"))
		if err != nil {
			l.WarnCtx(ctx, "nats unavailable, team events only over http", zap.Error(err))
		} else {
			defer nc.Drain()
			teamConsumer = events.NewTeamEventConsumer(nc, cfg.NATSTeamSubject, teamSync, l)
			if err := teamConsumer.Start(ctx); err != nil {
				log.Fatalf("Failed to subscribe to team events: %v", err)
			}
		}
	}

	health := func(ctx context.Context) error {
		if st.db != nil {
			sqlDB, err := st.db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
		}
		if rdb != nil {
			return rdb.Ping(ctx).Err()
		}
		return nil
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Chat:       handler.NewChatHandler(groupService, queryService, hub),
		TeamEvents: handler.NewTeamEventHandler(teamConsumer),
		WebSocket:  server.NewWebSocketHandler(hub, authService, wsLogger),
		Metrics:    metrics.Handler(registry),
	}, authService, health)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
}
