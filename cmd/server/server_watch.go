package main

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apiv1 "github.com/SanjoDeundiak/oscam-supervisor/api/v1"
)

const watchBuffer = 64

// Watch sends the retained events, then live ones while follow is set.
func (s *SupervisorServiceServer) Watch(request *wrapperspb.BoolValue, streaming grpc.ServerStreamingServer[structpb.Struct]) error {
	if !request.GetValue() {
		for _, ev := range s.journal.Snapshot() {
			if err := streaming.Send(apiv1.EventToProto(ev)); err != nil {
				return err
			}
		}
		return nil
	}

	ctx := streaming.Context()
	s.logger.Debug("Watcher attached", "caller", callerOf(ctx))
	defer s.logger.Debug("Watcher detached", "caller", callerOf(ctx))

	// The channel closes when ctx is done or the journal is stopped.
	for ev := range s.journal.Subscribe(ctx, watchBuffer) {
		if err := streaming.Send(apiv1.EventToProto(ev)); err != nil {
			return err
		}
	}
	return nil
}
