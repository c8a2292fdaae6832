package main

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	apiv1 "github.com/SanjoDeundiak/oscam-supervisor/api/v1"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

func (s *SupervisorServiceServer) Start(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if st := s.supervisor.Status(); st.State != lib.StateIdle {
		return nil, status.Errorf(codes.FailedPrecondition, "%s is %s", s.supervisor.Name(), st.State)
	}

	s.logger.Info("Start requested", "caller", callerOf(ctx))
	s.supervisor.Start()

	return s.currentStatus()
}

func (s *SupervisorServiceServer) currentStatus() (*structpb.Struct, error) {
	st, err := apiv1.StatusToProto(s.supervisor.Status())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "error encoding status: %v", err)
	}
	return st, nil
}
