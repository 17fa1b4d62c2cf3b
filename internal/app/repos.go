package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/netgenealogy-backend/internal/data/aggregates"
	"github.com/yungbote/netgenealogy-backend/internal/data/repos"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

type Repos struct {
	Network          repos.NetworkRepo
	NetworkGenealogy repos.NetworkGenealogyRepo
	Artifact         repos.ArtifactRepo
	JobRun           repos.JobRunRepo

	Tx aggregates.TxRunner
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Network:          repos.NewNetworkRepo(db, log),
		NetworkGenealogy: repos.NewNetworkGenealogyRepo(db, log),
		Artifact:         repos.NewArtifactRepo(db, log),
		JobRun:           repos.NewJobRunRepo(db, log),
		Tx:               aggregates.NewGormTxRunner(db),
	}
}
