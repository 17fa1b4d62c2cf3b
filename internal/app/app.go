package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/netgenealogy-backend/internal/data/db"
	httpapi "github.com/yungbote/netgenealogy-backend/internal/http"
	httpH "github.com/yungbote/netgenealogy-backend/internal/http/handlers"
	"github.com/yungbote/netgenealogy-backend/internal/observability"
	"github.com/yungbote/netgenealogy-backend/internal/platform/envutil"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *httpapi.Server
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	waitWorker   func()
}

func New() (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	shutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "netgenealogy",
		Environment: cfg.LogMode,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, clients, reposet)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	var server *httpapi.Server
	if cfg.RunServer() {
		server = httpapi.NewServer(httpapi.RouterConfig{
			Log:              log,
			Metrics:          metrics,
			ServiceName:      "netgenealogy",
			ArtifactHandler:  httpH.NewArtifactHandler(serviceset.Artifacts, serviceset.Jobs),
			NetworkHandler:   httpH.NewNetworkHandler(serviceset.Genealogy),
			GenealogyHandler: httpH.NewGenealogyHandler(serviceset.Genealogy, serviceset.Jobs),
			JobHandler:       httpH.NewJobHandler(serviceset.Jobs),
			HealthHandler:    httpH.NewHealthHandler(theDB),
		})
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       server,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		otelShutdown: shutdown,
	}, nil
}

// Start launches background work: metrics, the job worker and the job event forwarder.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartCollectors(ctx, a.Log, a.DB, a.Clients.Redis)
	if a.Metrics != nil && a.Clients.Bus != nil {
		if err := a.Clients.Bus.StartForwarder(ctx, func(m realtime.Message) {
			a.Metrics.ObserveJobEvent(m.Event)
		}); err != nil {
			a.Log.Warn("job event forwarder failed to start", "error", err)
		}
	}

	if a.Services.TemporalWorker != nil {
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	if a.Services.PollWorker != nil {
		a.waitWorker = a.Services.PollWorker.Start(ctx)
	}
	return nil
}

// Run serves HTTP until ctx is done. In worker-only mode it just blocks.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Server == nil {
		<-ctx.Done()
		return nil
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.waitWorker != nil {
		a.waitWorker()
		a.waitWorker = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
