package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/netgenealogy-backend/internal/data/repos/jobs"
	"github.com/yungbote/netgenealogy-backend/internal/data/repos/networks"
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
)

type NetworkRepo = networks.NetworkRepo
type NetworkGenealogyRepo = networks.NetworkGenealogyRepo
type ArtifactRepo = networks.ArtifactRepo

type JobRunRepo = jobs.JobRunRepo

var ErrConflict = networks.ErrConflict

func NewNetworkRepo(db *gorm.DB, baseLog *logger.Logger) NetworkRepo {
	return networks.NewNetworkRepo(db, baseLog)
}
func NewNetworkGenealogyRepo(db *gorm.DB, baseLog *logger.Logger) NetworkGenealogyRepo {
	return networks.NewNetworkGenealogyRepo(db, baseLog)
}
func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return networks.NewArtifactRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
