package domain

import (
	"github.com/yungbote/netgenealogy-backend/internal/domain/jobs"
	"github.com/yungbote/netgenealogy-backend/internal/domain/networks"
)

type (
	HistoricBlock    = networks.HistoricBlock
	Network          = networks.Network
	NetworkGenealogy = networks.NetworkGenealogy
	Artifact         = networks.Artifact
	ArtifactNetwork  = networks.ArtifactNetwork

	Direction = networks.Direction

	JobRun = jobs.JobRun
)

var (
	NetworkKey     = networks.NetworkKey
	NewNetwork     = networks.NewNetwork
	GenealogyKey   = networks.GenealogyKey
	ObservationKey = networks.ObservationKey
	NormalizeHash  = networks.NormalizeHash
	SameBlock      = networks.SameBlock
)

const (
	DirectionAncestor   = networks.DirectionAncestor
	DirectionDescendant = networks.DirectionDescendant

	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusCanceled  = jobs.StatusCanceled
)
