package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/netgenealogy-backend/internal/jobs/pipeline/artifact_networks_resolve"
	"github.com/yungbote/netgenealogy-backend/internal/jobs/pipeline/network_genealogy_load"
	jobruntime "github.com/yungbote/netgenealogy-backend/internal/jobs/runtime"
	"github.com/yungbote/netgenealogy-backend/internal/jobs/worker"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/services"
	"github.com/yungbote/netgenealogy-backend/internal/temporalx"
	"github.com/yungbote/netgenealogy-backend/internal/temporalx/temporalworker"
)

type Services struct {
	JobNotifier services.JobNotifier
	Jobs        services.JobService
	Artifacts   services.ArtifactService
	Genealogy   services.GenealogyService

	// Job infra. Exactly one of TemporalWorker/PollWorker is set when the worker runs.
	JobRegistry    *jobruntime.Registry
	TemporalWorker *temporalworker.Runner
	PollWorker     *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	notifier := services.NewJobNotifier(clients.Bus, log)
	jobs := services.NewJobService(db, log, reposet.JobRun, notifier, clients.Temporal, temporalx.LoadConfig().TaskQueue)

	var chains services.ChainReaders
	if clients.Chains != nil {
		chains = clients.Chains
	}
	genealogySvc := services.NewGenealogyService(services.GenealogyServiceDeps{
		DB:        db,
		Log:       log,
		Networks:  reposet.Network,
		Edges:     reposet.NetworkGenealogy,
		Artifacts: reposet.Artifact,
		Tx:        reposet.Tx,
		Graph:     clients.Neo4j,
		Chains:    chains,
		Search:    cfg.Genealogy.Search,
	})
	artifacts := services.NewArtifactService(db, log, reposet.Tx, reposet.Artifact, reposet.Network, chains, jobs)

	registry := jobruntime.NewRegistry()
	for _, h := range []jobruntime.Handler{
		network_genealogy_load.New(log, genealogySvc),
		artifact_networks_resolve.New(log, artifacts, jobs),
	} {
		if err := registry.Register(h); err != nil {
			return Services{}, fmt.Errorf("register job handler: %w", err)
		}
	}

	out := Services{
		JobNotifier: notifier,
		Jobs:        jobs,
		Artifacts:   artifacts,
		Genealogy:   genealogySvc,
		JobRegistry: registry,
	}
	if !cfg.RunWorker() {
		return out, nil
	}
	if clients.Temporal != nil {
		r, err := temporalworker.NewRunner(log, clients.Temporal, db, reposet.JobRun, registry, notifier)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		out.TemporalWorker = r
	} else {
		out.PollWorker = worker.NewWorker(db, log, reposet.JobRun, registry, notifier)
	}
	return out, nil
}
