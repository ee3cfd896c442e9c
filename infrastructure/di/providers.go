package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swapcourses-backend/application/ports"
	"swapcourses-backend/application/services"
	"swapcourses-backend/infrastructure/config"
	"swapcourses-backend/infrastructure/messaging/eventbridge"
	"swapcourses-backend/infrastructure/persistence/dynamodb"
	"swapcourses-backend/infrastructure/persistence/memory"
	"swapcourses-backend/interfaces/http/rest"
	"swapcourses-backend/interfaces/http/rest/handlers"
	"swapcourses-backend/pkg/auth"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/observability"
)

// Container holds the wired application.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Watcher *config.Watcher
	Router  *rest.Router
}

// Repositories bundles the persistence ports so the backend switch
// happens in one place.
type Repositories struct {
	Programs     ports.ProgramRepository
	CourseMaps   ports.CourseMapRepository
	Timeslots    ports.TimeslotRepository
	SwapRequests ports.SwapRequestRepository
}

// ProvideLogger creates the process logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// ProvideAWSConfig creates AWS configuration.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client.
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client.
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client.
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMetrics creates the metrics recorder. With metrics disabled it
// still hands out a recorder, just one that never ships data.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	namespace := fmt.Sprintf("%s/%s", cfg.MetricNamespace, cfg.Environment)
	if !cfg.EnableMetrics {
		return observability.NewMetrics(nil, namespace, logger)
	}
	return observability.NewMetrics(client, namespace, logger)
}

// ProvideRepositories selects the persistence backend.
func ProvideRepositories(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) Repositories {
	if cfg.StorageBackend == "memory" {
		store := memory.NewStore()
		return Repositories{
			Programs:     store.Programs(),
			CourseMaps:   store.CourseMaps(),
			Timeslots:    store.Timeslots(),
			SwapRequests: store.SwapRequests(),
		}
	}

	programs := dynamodb.NewProgramRepository(client, cfg.DynamoDBTable, logger)
	return Repositories{
		Programs: programs,
		CourseMaps: dynamodb.NewCourseMapRepository(
			client, cfg.DynamoDBTable, cfg.UserIndexName, programs, logger),
		Timeslots: dynamodb.NewTimeslotRepository(
			client, cfg.DynamoDBTable, cfg.OfferIndexName, logger),
		SwapRequests: dynamodb.NewSwapRequestRepository(
			client, cfg.DynamoDBTable, cfg.OfferIndexName, cfg.UserIndexName, logger),
	}
}

// ProvideNotificationSink creates the outbound notification sink. The
// memory backend runs without EventBridge.
func ProvideNotificationSink(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.NotificationSink {
	if cfg.StorageBackend == "memory" {
		return eventbridge.NopSink{}
	}
	return eventbridge.NewNotifier(client, cfg.EventBusName, logger)
}

// ProvideJWTValidator creates the token validator. Development runs
// without JWT_SECRET by falling back to a fixed local secret.
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using local development secret")
		secret = "local-development-secret"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
	})
}

// ProvideDynamicConfig starts the configuration file watcher, or
// returns nil when no file is configured.
func ProvideDynamicConfig(cfg *config.Config, logger *zap.Logger) (*config.Watcher, error) {
	if cfg.DynamicConfigPath == "" {
		return nil, nil
	}
	return config.NewWatcher(cfg.DynamicConfigPath, logger)
}

// ProvideErrorHandler creates the HTTP error handler.
func ProvideErrorHandler(logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger)
}

// ProvideCourseMapService creates the course-map application service.
func ProvideCourseMapService(repos Repositories, metrics *observability.Metrics, logger *zap.Logger) *services.CourseMapService {
	return services.NewCourseMapService(repos.Programs, repos.CourseMaps, metrics, logger)
}

// ProvideSwapService creates the swap application service.
func ProvideSwapService(repos Repositories, sink ports.NotificationSink, metrics *observability.Metrics, logger *zap.Logger) *services.SwapService {
	return services.NewSwapService(repos.SwapRequests, repos.Timeslots, sink, metrics, logger)
}

// ProvideCourseMapHandler creates the course-map HTTP handler.
func ProvideCourseMapHandler(
	service *services.CourseMapService,
	dynamic *config.Watcher,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *handlers.CourseMapHandler {
	return handlers.NewCourseMapHandler(service, dynamic, errorHandler, logger)
}

// ProvideSwapHandler creates the swap HTTP handler.
func ProvideSwapHandler(
	service *services.SwapService,
	dynamic *config.Watcher,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *handlers.SwapHandler {
	return handlers.NewSwapHandler(service, dynamic, errorHandler, logger)
}

// ProvideRouter creates the HTTP router.
func ProvideRouter(
	cfg *config.Config,
	courseMapHandler *handlers.CourseMapHandler,
	swapHandler *handlers.SwapHandler,
	validator *auth.JWTValidator,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(cfg, courseMapHandler, swapHandler, validator, logger)
}

// Shutdown flushes observers and stops the config watcher.
func (c *Container) Shutdown() {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	if c.Metrics != nil {
		c.Metrics.Close()
	}
	_ = c.Logger.Sync()
}
