package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"github.com/ETAnderson/merchantdesk/internal/analytics"
	"github.com/ETAnderson/merchantdesk/internal/api"
	"github.com/ETAnderson/merchantdesk/internal/config"
	"github.com/ETAnderson/merchantdesk/internal/dedupe"
	"github.com/ETAnderson/merchantdesk/internal/migrate"
	"github.com/ETAnderson/merchantdesk/internal/queue"
	"github.com/ETAnderson/merchantdesk/internal/retention"
	"github.com/ETAnderson/merchantdesk/internal/state"
	"github.com/ETAnderson/merchantdesk/internal/webhooks"
)

// App holds the wired services shared by cmd/api and cmd/worker.
type App struct {
	Config config.Config
	Log    *zap.Logger

	Store     state.Store
	DB        *sql.DB
	Queue     queue.Driver
	Processor *webhooks.Processor
	Sales     *analytics.Service
	Archiver  *analytics.ExportArchiver
	Sweeper   *retention.Sweeper
}

// New wires every service from cfg. AWS clients are only built when a
// setting needs them.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		if err := config.ResolveSecrets(ctx, &cfg, ssm.NewFromConfig(awsCfg)); err != nil {
			return nil, err
		}
	}

	res, err := state.NewStore(ctx, state.FactoryConfig{
		Backend:  cfg.StateBackend,
		MySQLDSN: cfg.MySQLDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	a := &App{Config: cfg, Log: log, Store: res.Store, DB: res.DB}

	if cfg.RunMigrations && a.DB != nil {
		applied, err := migrate.ApplyDir(ctx, a.DB, cfg.MigrationsDir)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		log.Info("migrations applied", zap.String("dir", cfg.MigrationsDir), zap.Strings("files", applied))
	}

	a.Queue, err = queue.NewDriver(queue.FactoryConfig{
		Driver:    cfg.QueueDriver,
		UseBullMQ: cfg.QueueUseBullMQ,
		RedisURL:  cfg.RedisURL(),
		QueueName: cfg.QueueName,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var claimer dedupe.Claimer = dedupe.NewStoreClaimer(a.Store)
	if cfg.WebhookDedupeTable != "" {
		claimer = dedupe.NewDynamoClaimer(dynamodb.NewFromConfig(awsCfg), cfg.WebhookDedupeTable)
	}

	reg, err := webhooks.NewRegistry(&webhooks.Handlers{Store: a.Store, Queue: a.Queue, Log: log})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Processor = &webhooks.Processor{
		Claimer:  claimer,
		Store:    a.Store,
		Registry: reg,
		Log:      log,
	}

	a.Sales = &analytics.Service{
		Cache: &analytics.Cache{
			Store:   a.Store,
			Fetcher: analytics.NewHTTPFetcher(cfg.AnalyticsServiceURL, log),
			Log:     log,
		},
		UseMockData: cfg.UseMockData,
		TTLMinutes:  cfg.AnalyticsCacheTTLMinutes,
		Log:         log,
	}

	if cfg.ExportBucket != "" {
		a.Archiver = analytics.NewExportArchiver(s3.NewFromConfig(awsCfg), cfg.ExportBucket)
	}

	a.Sweeper = &retention.Sweeper{Store: a.Store, Log: log}
	if cfg.RotationAlertsTopicARN != "" {
		a.Sweeper.Notifier = retention.NewSNSNotifier(sns.NewFromConfig(awsCfg), cfg.RotationAlertsTopicARN)
	}

	log.Info("services wired",
		zap.String("state_backend", cfg.StateBackend),
		zap.String("queue_driver", a.Queue.Name()),
		zap.Bool("dynamo_dedupe", cfg.WebhookDedupeTable != ""),
		zap.Bool("mock_data", cfg.UseMockData),
		zap.String("analytics_service_url", cfg.AnalyticsServiceURL),
		zap.String("sync_service_url", cfg.SyncServiceURL),
		zap.String("assistants_service_url", cfg.AssistantsServiceURL),
	)
	return a, nil
}

// Handler is the HTTP surface for cmd/api.
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.Deps{
		Store:         a.Store,
		Queue:         a.Queue,
		Processor:     a.Processor,
		Sales:         a.Sales,
		Archiver:      a.Archiver,
		Sweep:         a.Sweeper,
		CronSecret:    a.Config.CronSecret,
		SessionSecret: []byte(a.Config.ShopifyAPISecret),
		Dev:           a.Config.IsDev(),
		Log:           a.Log,
	})
}

func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
