package network_genealogy_load

import (
	"github.com/yungbote/netgenealogy-backend/internal/platform/logger"
	"github.com/yungbote/netgenealogy-backend/internal/services"
)

type Pipeline struct {
	log       *logger.Logger
	genealogy services.GenealogyService
}

func New(baseLog *logger.Logger, genealogy services.GenealogyService) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", services.JobTypeNetworkGenealogyLoad),
		genealogy: genealogy,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeNetworkGenealogyLoad }
