package main

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *SupervisorServiceServer) Stop(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.logger.Info("Stop requested", "caller", callerOf(ctx), "state", s.supervisor.Status().State)
	s.supervisor.Stop()

	return s.currentStatus()
}
