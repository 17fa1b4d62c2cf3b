package artifact_networks_resolve

import (
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/services"
)

type Pipeline struct {
	log       *logger.Logger
	artifacts services.ArtifactService
	jobs      services.JobService
}

func New(baseLog *logger.Logger, artifacts services.ArtifactService, jobs services.JobService) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", services.JobTypeArtifactNetworksResolve),
		artifacts: artifacts,
		jobs:      jobs,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeArtifactNetworksResolve }
