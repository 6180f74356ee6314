package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trust-service/internal/audit"
	"trust-service/internal/bucketing"
	"trust-service/internal/client"
	"trust-service/internal/config"
	"trust-service/internal/handler"
	"trust-service/internal/hashing"
	"trust-service/internal/moderation"
	"trust-service/internal/ratelimit"
	"trust-service/internal/repository/clickhouse"
	"trust-service/internal/repository/elastic"
	"trust-service/internal/repository/postgres"
	"trust-service/internal/repository/redis"
	"trust-service/internal/service"
	"trust-service/internal/tls"
	"trust-service/internal/util"

	"github.com/go-chi/chi/v5"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	postgresClient   *client.PostgresClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	authClient       *client.AuthProviderClient

	// Managers
	hasher           *hashing.Hasher
	bucketingManager *bucketing.Manager
	rateLimiter      *ratelimit.Limiter
	auditRecorder    *audit.Recorder

	// Repositories
	queueRepository  *postgres.ModerationQueueRepository
	flagRepository   *postgres.ContentFlagRepository
	deviceRepository *postgres.DeviceRepository
	sessionCache     *redis.SessionCache
	eventRepository  *clickhouse.SecurityEventRepository
	moderationIndex  *elastic.ModerationIndex

	// Services
	moderationService *service.ModerationService
	securityService   *service.SecurityService

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		tlsConfig := &tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		}
		factory.tlsManager = tls.NewTLSManager(tlsConfig)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	if err := factory.initializeRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	factory.initializeServices()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kafka_enabled", factory.kafkaProducer != nil),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if redisClient, err := client.NewRedisClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = redisClient
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// Postgres
	if pgClient, err := client.NewPostgresClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("postgres: %w", err))
	} else {
		f.postgresClient = pgClient
		if err := f.postgresClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("postgres health check: %w", err))
		} else {
			util.Info("Postgres client initialized and healthy")
		}
	}

	// Kafka
	if producer, err := client.NewKafkaProducer(f.config); err != nil {
		util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
		util.Info("Kafka producer initialized")
	}

	// Elasticsearch
	if esClient, err := client.NewElasticsearchClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
	} else {
		f.esClient = esClient
		if err := f.esClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch health check: %w", err))
		} else {
			util.Info("Elasticsearch client initialized and healthy")
		}
	}

	// ClickHouse
	if chClient, err := client.NewClickHouseClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
	} else {
		f.clickhouseClient = chClient
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
		} else {
			util.Info("ClickHouse client initialized and healthy")
		}
	}

	f.authClient = client.NewAuthProviderClient(f.config)

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers initializes hashing, bucketing, rate limiting and the
// audit recorder
func (f *Factory) initializeManagers() error {
	hasher, err := hashing.NewHasher(f.config)
	if err != nil {
		return fmt.Errorf("hasher: %w", err)
	}
	f.hasher = hasher

	f.bucketingManager = bucketing.NewManager(f.config)
	f.rateLimiter = ratelimit.NewLimiter()
	f.auditRecorder = audit.NewRecorder(f.config.Audit.QueueSize)

	util.Info("Managers initialized successfully",
		util.Bool("hashing_initialized", f.hasher != nil),
		util.Bool("bucketing_initialized", f.bucketingManager != nil),
		util.Int("audit_queue_size", f.config.Audit.QueueSize),
	)

	return nil
}

// initializeRepositories wires repositories onto their backing clients
func (f *Factory) initializeRepositories() error {
	if f.postgresClient != nil {
		f.queueRepository = postgres.NewModerationQueueRepository(f.postgresClient)
		f.flagRepository = postgres.NewContentFlagRepository(f.postgresClient)
		f.deviceRepository = postgres.NewDeviceRepository(f.postgresClient)
	}

	if f.redisClient != nil {
		f.sessionCache = redis.NewSessionCache(f.redisClient)
	}

	if f.clickhouseClient != nil {
		eventRepo, err := clickhouse.NewSecurityEventRepository(f.clickhouseClient)
		if err != nil {
			if f.config.IsProduction() {
				return fmt.Errorf("security event repository: %w", err)
			}
			util.Warn("Security event repository initialization failed", util.ErrorField(err))
		} else {
			f.eventRepository = eventRepo
		}
	}

	if f.esClient != nil {
		f.moderationIndex = elastic.NewModerationIndex(f.esClient, f.config)
	}

	return nil
}

// initializeServices builds the moderation and security services
func (f *Factory) initializeServices() {
	thresholds := moderation.Thresholds{
		Flag:   f.config.Moderation.FlagConfidence,
		Review: f.config.Moderation.ReviewConfidence,
		Reject: f.config.Moderation.RejectConfidence,
	}

	var indexer service.QueueIndexer
	if f.moderationIndex != nil {
		indexer = f.moderationIndex
	}
	var publisher service.EventPublisher
	if f.kafkaProducer != nil {
		publisher = f.kafkaProducer
	}

	f.moderationService = service.NewModerationService(
		moderation.NewClassifier(),
		moderation.NewEngine(thresholds),
		f.queueRepository,
		f.flagRepository,
		indexer,
		publisher,
		f.auditRecorder,
	)

	var events service.EventStore
	if f.eventRepository != nil {
		events = f.eventRepository
	}

	f.securityService = service.NewSecurityService(
		f.config,
		f.authClient,
		f.sessionCache,
		f.deviceRepository,
		events,
		f.rateLimiter,
		f.bucketingManager,
		f.hasher,
		publisher,
		f.auditRecorder,
	)
}

// Router builds the HTTP router over the initialized services.
func (f *Factory) Router() chi.Router {
	moderationHandler := handler.NewModerationHandler(f.moderationService)
	securityHandler := handler.NewSecurityHandler(f.securityService)
	return handler.NewRouter(moderationHandler, securityHandler, util.Get())
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.postgresClient != nil {
		if err := f.postgresClient.HealthCheck(ctx); err != nil {
			healthErrors["postgres"] = err
		}
	} else {
		healthErrors["postgres"] = fmt.Errorf("postgres client not initialized")
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	} else {
		healthErrors["elasticsearch"] = fmt.Errorf("elasticsearch client not initialized")
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	} else {
		healthErrors["clickhouse"] = fmt.Errorf("clickhouse client not initialized")
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	if f.hasher == nil {
		healthErrors["hasher"] = fmt.Errorf("hasher not initialized")
	}
	if f.bucketingManager == nil {
		healthErrors["bucketing"] = fmt.Errorf("bucketing manager not initialized")
	}
	if f.auditRecorder == nil {
		healthErrors["audit"] = fmt.Errorf("audit recorder not initialized")
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

// ==============================
// Shutdown
// ==============================

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		// Drain the recorder before its backing clients go away.
		if f.auditRecorder != nil {
			f.auditRecorder.Close()
			util.Info("Audit recorder drained",
				util.Any("processed", f.auditRecorder.Processed()),
				util.Any("dropped", f.auditRecorder.Dropped()))
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.postgresClient != nil {
			if err := f.postgresClient.Close(); err != nil {
				util.Error("Failed to close Postgres client", util.ErrorField(err))
			} else {
				util.Info("Postgres client closed")
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

// ==============================
// Getters
// ==============================

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) ModerationService() *service.ModerationService {
	return f.moderationService
}

func (f *Factory) SecurityService() *service.SecurityService {
	return f.securityService
}
