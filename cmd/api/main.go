package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
	"github.com/aws/aws-sdk-go/service/sfn"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/kyma-lab/aws-defectTicket/internal/api/http"
	"github.com/kyma-lab/aws-defectTicket/internal/api/http/handlers"
	"github.com/kyma-lab/aws-defectTicket/internal/auth"
	"github.com/kyma-lab/aws-defectTicket/internal/classifier"
	"github.com/kyma-lab/aws-defectTicket/internal/config"
	"github.com/kyma-lab/aws-defectTicket/internal/events"
	"github.com/kyma-lab/aws-defectTicket/internal/observability"
	"github.com/kyma-lab/aws-defectTicket/internal/persistence"
	"github.com/kyma-lab/aws-defectTicket/internal/queue"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
	"github.com/kyma-lab/aws-defectTicket/internal/rules"
	"github.com/kyma-lab/aws-defectTicket/internal/service"
	"github.com/kyma-lab/aws-defectTicket/internal/worker"
	"github.com/kyma-lab/aws-defectTicket/internal/workflow"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo   repository.TicketRepository
		approvalRepo repository.ApprovalRepository
		ledger       repository.ResumeFailureLedger
	)
	if pg.Enabled() {
		ticketRepo = repository.NewTicketRepository(pg.PoolHandle())
		approvalRepo = repository.NewApprovalRepository(pg.PoolHandle())
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
		approvalRepo = repository.NewMemoryApprovalRepository()
	}
	if redis.Enabled() {
		ledger = repository.NewRedisResumeFailureLedger(redis.Client, cfg.Redis.ResumeFailuresKey)
	} else {
		ledger = repository.NewMemoryResumeFailureLedger()
	}

	sess, err := persistence.NewAWSSession(cfg.AWS, logger)
	if err != nil {
		logger.Fatal("failed to create aws session", zap.Error(err))
	}

	policy := rules.ConfidencePolicy{Threshold: cfg.LLM.ConfidenceThreshold}
	breaker := classifier.NewBreakerClassifier(
		buildClassifier(cfg, sess, policy, logger),
		"llm-classifier",
		uint32(cfg.LLM.BreakerMaxFailures),
		time.Duration(cfg.LLM.BreakerOpenSeconds)*time.Second,
		logger,
	)
	orchestrator := buildOrchestrator(cfg, sess, logger)
	ticketQueue := buildQueue(cfg, sess, logger)

	location, err := cfg.Stats.Location()
	if err != nil {
		logger.Fatal("invalid stats timezone", zap.String("timezone", cfg.Stats.Timezone), zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, logger)

	classificationService := service.NewClassificationService(service.ClassificationDependencies{
		TicketRepo: ticketRepo,
		Classifier: breaker,
		Engine:     rules.NewEngine(logger, rules.DefaultRules()...),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	approvalService := service.NewApprovalService(service.ApprovalDependencies{
		ApprovalRepo: approvalRepo,
		TicketRepo:   ticketRepo,
		Orchestrator: orchestrator,
		Ledger:       ledger,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
		Config: service.ApprovalConfig{
			Timeout:              cfg.HITL.ApprovalTimeout(),
			TrackDivergence:      cfg.HITL.TrackDivergence,
			SkipWorkflowCallback: cfg.HITL.SkipWorkflowCallback,
			ResumeTimeout:        cfg.HITL.ResumeTimeout(),
		},
	})
	ingestionService := service.NewIngestionService(service.IngestionDependencies{
		TicketRepo:   ticketRepo,
		Queue:        ticketQueue,
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
		Config: service.IngestionConfig{
			TTL:            time.Duration(cfg.Batch.TTLDays) * 24 * time.Hour,
			PollingEnabled: cfg.AWS.PollingEnabled,
			MaxMessages:    cfg.AWS.MaxMessages,
			WaitSeconds:    cfg.AWS.WaitSeconds,
			SkipExecution:  cfg.AWS.SkipExecution,
		},
	})
	batchService := service.NewBatchClassificationService(ticketRepo, classificationService, approvalService,
		service.RetryPolicy{
			MaxAttempts:     cfg.HITL.ClassifyMaxAttempts,
			InitialInterval: time.Duration(cfg.HITL.ClassifyInitialMillis) * time.Millisecond,
		}, logger)
	progressService := service.NewProgressService(ticketRepo, approvalRepo, location, nil, logger)

	routes := httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			map[string]handlers.Pinger{"postgres": pg, "redis": redis},
			func() string { return breaker.State().String() }),
		Approvals:      handlers.NewApprovalsHandler(approvalService),
		Batches:        handlers.NewBatchesHandler(progressService, ingestionService),
		Ingestion:      handlers.NewIngestionHandler(ingestionService),
		Classification: handlers.NewClassificationHandler(classificationService, batchService),
		Metrics:        metrics,
	}
	if cfg.Auth.Enabled {
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		directory := auth.NewDirectory(cfg.Auth.Reviewers, cfg.Auth.Admins)
		logger.Info("reviewer authentication enabled", zap.Int("accounts", directory.Len()))
		routes.Auth = handlers.NewAuthHandler(service.NewAuthService(directory, tokens, logger))
		routes.AuthMiddleware = auth.NewAuthMiddleware(tokens)
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, routes)

	scheduler := worker.NewScheduler(logger, cfg.App.RequestTimeout())
	if cfg.AWS.PollingEnabled {
		if err := scheduler.ScheduleDrain(cfg.Scheduler.DrainSpec, ingestionService); err != nil {
			logger.Fatal("invalid drain schedule", zap.String("spec", cfg.Scheduler.DrainSpec), zap.Error(err))
		}
	}
	if err := scheduler.ScheduleExpiry(cfg.Scheduler.ExpirySpec, approvalService); err != nil {
		logger.Fatal("invalid expiry schedule", zap.String("spec", cfg.Scheduler.ExpirySpec), zap.Error(err))
	}
	if err := scheduler.ScheduleArchival(cfg.Scheduler.ArchiveSpec, ingestionService); err != nil {
		logger.Fatal("invalid archival schedule", zap.String("spec", cfg.Scheduler.ArchiveSpec), zap.Error(err))
	}
	scheduler.Start()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler did not stop in time", zap.Error(err))
		}
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
	}
}

func buildClassifier(cfg *config.Config, sess *session.Session, policy rules.ConfidencePolicy, logger *zap.Logger) classifier.Classifier {
	if cfg.LLM.Provider != config.ProviderBedrock {
		logger.Info("using keyword classifier", zap.String("provider", cfg.LLM.Provider))
		return classifier.NewKeywordClassifier(policy, logger)
	}
	return classifier.NewBedrockClassifier(bedrockruntime.New(sess), classifier.BedrockConfig{
		ModelID:   cfg.LLM.ModelID,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout(),
		Policy:    policy,
	}, logger)
}

func buildOrchestrator(cfg *config.Config, sess *session.Session, logger *zap.Logger) workflow.Orchestrator {
	if cfg.AWS.StateMachineARN == "" {
		logger.Warn("SFN_STATE_MACHINE_ARN not provided; using local orchestrator")
		return workflow.NewLocalOrchestrator(logger)
	}
	return workflow.NewStepFunctions(sfn.New(sess), cfg.AWS.StateMachineARN)
}

func buildQueue(cfg *config.Config, sess *session.Session, logger *zap.Logger) queue.Queue {
	if cfg.AWS.QueueURL == "" {
		logger.Warn("SQS_INGESTION_QUEUE_URL not provided; using in-memory queue")
		return queue.NewMemoryQueue()
	}
	return queue.NewSQSQueue(sqs.New(sess), cfg.AWS.QueueURL)
}
