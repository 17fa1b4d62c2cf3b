package genealogy

import (
	"sort"

	"github.com/google/uuid"

	types "github.com/yungbote/netgenealogy-backend/internal/domain"
)

// Observation is one artifact's record of a network: the block it was seen at and the
// network row that block resolves to. Either may be missing.
type Observation struct {
	Block   *types.HistoricBlock
	Network *types.Network
}

func (o Observation) complete() bool {
	return o.Block != nil && o.Network != nil
}

// Artifact is the genealogy view of a deployment artifact: its observations keyed by chain network id.
type Artifact struct {
	ID       uuid.UUID
	Networks map[string]Observation
}

// Edge says Ancestor precedes Descendant on the same chain.
type Edge struct {
	Ancestor   *types.Network
	Descendant *types.Network
}

// LocalGenealogy is the chain of networks implied by local observations alone.
// Edges link consecutive networks only.
type LocalGenealogy struct {
	Ancestor   *types.Network
	Descendant *types.Network
	Edges      []Edge
}

// BuildLocal orders complete observations by block height and links neighbours.
// It returns nil when no observation is complete. Equal heights keep their input order.
// Artifacts deployed in the same block share a network; only its first observation is kept.
func BuildLocal(observations []Observation) *LocalGenealogy {
	usable := make([]Observation, 0, len(observations))
	seen := make(map[uuid.UUID]bool, len(observations))
	for _, o := range observations {
		if !o.complete() || seen[o.Network.ID] {
			continue
		}
		seen[o.Network.ID] = true
		usable = append(usable, o)
	}
	if len(usable) == 0 {
		return nil
	}

	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Block.Height < usable[j].Block.Height
	})

	edges := make([]Edge, 0, len(usable)-1)
	current := usable[0]
	for _, next := range usable[1:] {
		edges = append(edges, Edge{Ancestor: current.Network, Descendant: next.Network})
		current = next
	}

	return &LocalGenealogy{
		Ancestor:   usable[0].Network,
		Descendant: usable[len(usable)-1].Network,
		Edges:      edges,
	}
}

// ObservationsFor collects the observation each artifact holds for networkID.
func ObservationsFor(networkID string, artifacts []Artifact) []Observation {
	out := make([]Observation, 0, len(artifacts))
	for _, a := range artifacts {
		if o, ok := a.Networks[networkID]; ok {
			out = append(out, o)
		}
	}
	return out
}
