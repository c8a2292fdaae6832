package main

import (
	"log/slog"

	apiv1 "github.com/SanjoDeundiak/oscam-supervisor/api/v1"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/journal"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/supervisor"
)

// controller is the part of supervisor.Supervisor the service drives.
type controller interface {
	Name() string
	Start()
	Stop()
	Status() lib.Status
}

var _ controller = (*supervisor.Supervisor)(nil)

type SupervisorServiceServer struct {
	apiv1.UnimplementedSupervisorServer
	supervisor controller
	journal    *journal.Events
	logger     *slog.Logger
}

func NewSupervisorServiceServer(sup controller, events *journal.Events, logger *slog.Logger) *SupervisorServiceServer {
	return &SupervisorServiceServer{
		supervisor: sup,
		journal:    events,
		logger:     lib.OrDiscard(logger),
	}
}
