package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/apihealth/internal/config"
	"github.com/hamed0406/apihealth/internal/metrics"
	"github.com/hamed0406/apihealth/internal/notify"
	"github.com/hamed0406/apihealth/internal/probe"
	"github.com/hamed0406/apihealth/internal/repo"
	"github.com/hamed0406/apihealth/internal/repo/dynamo"
	"github.com/hamed0406/apihealth/internal/repo/file"
	"github.com/hamed0406/apihealth/internal/repo/memory"
	"github.com/hamed0406/apihealth/internal/repo/postgres"
	"github.com/hamed0406/apihealth/internal/repo/redisstore"
	"github.com/hamed0406/apihealth/internal/scheduler"
)

// Version is set at build time with -ldflags "-X github.com/hamed0406/apihealth/internal/app.Version=x.y.z".
var Version = "dev"

// App is the wired set of collaborators for one process.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Endpoints repo.EndpointSource
	States    repo.StateStore
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics
	Runner    *scheduler.Runner

	aws     *aws.Config
	pg      *postgres.Store
	closers []func() error
}

// New builds every backend named by cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	if cfg.NeedsAWS() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		a.aws = &awsCfg
	}

	var err error
	if a.Endpoints, err = a.endpointSource(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.States, err = a.stateStore(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Notifier = a.notifier()
	a.Runner = scheduler.NewRunner(
		logger,
		a.Endpoints,
		a.States,
		probe.NewHTTPProber(logger, "apihealth/"+Version, cfg.DNSDiagnostics),
		notify.NewPublisher(a.Notifier, cfg.NotifyTimeout),
		a.Metrics,
		scheduler.RunnerConfig{Environment: cfg.Environment, Concurrency: cfg.Concurrency},
	)

	logger.Info("app_ready",
		zap.String("version", Version),
		zap.String("environment", cfg.Environment),
		zap.String("config_backend", cfg.ConfigBackend),
		zap.String("state_backend", cfg.StateBackend),
		zap.Bool("notifier", a.Notifier != nil),
	)
	return a, nil
}

func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

func (a *App) postgres(ctx context.Context) (*postgres.Store, error) {
	if a.pg != nil {
		return a.pg, nil
	}
	s, err := postgres.New(ctx, a.Config.DatabaseURL, a.Config.ConfigTable, a.Config.StateTable, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	a.pg = s
	a.closers = append(a.closers, func() error { s.Close(); return nil })
	return s, nil
}

func (a *App) dynamo() *dynamo.Store {
	return dynamo.New(dynamodb.NewFromConfig(*a.aws), a.Config.ConfigTable, a.Config.StateTable)
}

func (a *App) endpointSource(ctx context.Context) (repo.EndpointSource, error) {
	switch a.Config.ConfigBackend {
	case config.BackendDynamoDB:
		return a.dynamo(), nil
	case config.BackendPostgres:
		return a.postgres(ctx)
	case config.BackendFile:
		return file.NewEndpointFile(a.Config.EndpointsFile), nil
	}
	return nil, fmt.Errorf("%w: config_backend %q", config.ErrInvalidConfig, a.Config.ConfigBackend)
}

func (a *App) stateStore(ctx context.Context) (repo.StateStore, error) {
	switch a.Config.StateBackend {
	case config.BackendDynamoDB:
		return a.dynamo(), nil
	case config.BackendPostgres:
		return a.postgres(ctx)
	case config.BackendRedis:
		s := redisstore.New(redisstore.NewClient(redisstore.Options{
			Addr:     a.Config.RedisAddr,
			Password: a.Config.RedisPassword,
			DB:       a.Config.RedisDB,
		}))
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.BackendFile:
		return file.NewStateFile(a.Config.StateFile)
	case config.BackendMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("%w: state_backend %q", config.ErrInvalidConfig, a.Config.StateBackend)
}

// notifier returns nil when no channel is configured.
func (a *App) notifier() notify.Notifier {
	var m notify.Multi
	if a.Config.SNSTopicARN != "" && a.aws != nil {
		m = append(m, notify.NewSNS(sns.NewFromConfig(*a.aws), a.Config.SNSTopicARN))
	}
	if s := notify.NewSlack(a.Config.SlackWebhookURL); s != nil {
		m = append(m, s)
	}
	if w := notify.NewWebhook(a.Config.WebhookURL); w != nil {
		m = append(m, w)
	}
	if g := notify.NewGotify(a.Config.GotifyURL, a.Config.GotifyToken); g != nil {
		m = append(m, g)
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}
