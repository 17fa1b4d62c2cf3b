package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/netgenealogy-backend/internal/modules/genealogy"
	"github.com/yungbote/netgenealogy-backend/internal/platform/envutil"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

// Run modes select which halves of the process start.
const (
	RunModeAll    = "all"
	RunModeServer = "server"
	RunModeWorker = "worker"
)

type Config struct {
	LogMode     string
	RunMode     string
	Port        string
	MetricsAddr string
	Version     string

	Genealogy genealogy.Config
}

func (c Config) RunServer() bool { return c.RunMode == RunModeAll || c.RunMode == RunModeServer }
func (c Config) RunWorker() bool { return c.RunMode == RunModeAll || c.RunMode == RunModeWorker }

func LoadConfig(log *logger.Logger) (Config, error) {
	gcfg, err := genealogy.LoadConfig()
	if err != nil {
		return Config{}, fmt.Errorf("load genealogy config: %w", err)
	}
	mode := strings.ToLower(envutil.String("RUN_MODE", RunModeAll))
	switch mode {
	case RunModeAll, RunModeServer, RunModeWorker:
	default:
		return Config{}, fmt.Errorf("invalid RUN_MODE %q", mode)
	}
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		RunMode:     mode,
		Port:        envutil.String("PORT", "8080"),
		MetricsAddr: envutil.String("METRICS_ADDR", ""),
		Version:     envutil.String("APP_VERSION", "dev"),
		Genealogy:   gcfg,
	}
	if log != nil {
		log.Info("config loaded",
			"run_mode", cfg.RunMode,
			"port", cfg.Port,
			"page_size", gcfg.Search.PageSize,
			"max_rounds", gcfg.Search.MaxRounds,
			"chain_endpoints", len(gcfg.Chain.Endpoints),
			"default_rpc_url", gcfg.Chain.DefaultRPCURL,
		)
	}
	return cfg, nil
}
