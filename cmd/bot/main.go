package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-archiver/internal/api/http"
	"github.com/spec-kit/ticket-archiver/internal/api/http/handlers"
	"github.com/spec-kit/ticket-archiver/internal/bot"
	"github.com/spec-kit/ticket-archiver/internal/config"
	"github.com/spec-kit/ticket-archiver/internal/events"
	"github.com/spec-kit/ticket-archiver/internal/feedback"
	"github.com/spec-kit/ticket-archiver/internal/gateway"
	"github.com/spec-kit/ticket-archiver/internal/observability"
	"github.com/spec-kit/ticket-archiver/internal/persistence"
	"github.com/spec-kit/ticket-archiver/internal/ratelimit"
	"github.com/spec-kit/ticket-archiver/internal/repository"
	"github.com/spec-kit/ticket-archiver/internal/service"
	"github.com/spec-kit/ticket-archiver/internal/transcript"
	"github.com/spec-kit/ticket-archiver/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	session, err := discordgo.New("Bot " + cfg.Discord.BotToken)
	if err != nil {
		logger.Fatal("failed to build discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuildMembers

	activity, err := observability.NewActivityLog(cfg.Archive.ActivityLogPath)
	if err != nil {
		logger.Fatal("failed to open activity log", zap.Error(err))
	}
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	chat := gateway.NewDiscord(session)
	prompts := feedback.NewPromptSigner(cfg.Feedback.PromptSecret)
	reaper := worker.NewReaper(chat, logger)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	feedbackRepo := repository.NewFeedbackRepository(pool)

	closureService := service.NewClosureService(service.ClosureDependencies{
		TicketRepo:        ticketRepo,
		Collector:         transcript.NewCollector(chat, cfg.Discord.HistoryLimit),
		Archiver:          transcript.NewArchiver(cfg.Archive.AttachmentDir, cfg.Archive.FetchWorkers, cfg.Archive.FetchTimeout(), logger, metrics),
		Renderer:          transcript.NewRenderer(cfg.Archive.DocumentDir),
		Chat:              chat,
		Prompts:           prompts,
		Reaper:            reaper,
		Dispatcher:        dispatcher,
		Metrics:           metrics,
		Logger:            logger,
		OperatorChannelID: cfg.Discord.OperatorChannelID,
		DeleteGrace:       cfg.Discord.DeleteGrace(),
	})
	feedbackService := service.NewFeedbackService(service.FeedbackDependencies{
		FeedbackRepo: feedbackRepo,
		Chat:         chat,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	notificationService := service.NewNotificationService(dispatcher, chat, activity, logger, cfg.Discord.OperatorChannelID)
	notificationService.RegisterHandlers()

	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.Limiter.UseRedis {
		limiterStore = ratelimit.NewRedisStore(redis.Client)
	}
	limiter := ratelimit.NewLimiter(limiterStore, cfg.Limiter.Cooldown())

	botHandler := bot.NewHandler(closureService, feedbackService, prompts, limiter, metrics, logger)
	botHandler.Register(session)

	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord session", zap.Error(err))
	}
	defer session.Close()
	logger.Info("discord session opened")

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	reaper.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
