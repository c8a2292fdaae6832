package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/emptypb"

	apiv1 "github.com/SanjoDeundiak/oscam-supervisor/api/v1"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Deploy and start the supervised process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			conn, err := dial(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			client := apiv1.NewSupervisorClient(conn)
			resp, err := client.Start(ctx, &emptypb.Empty{})
			if err != nil {
				if grpcCode(err) == codes.FailedPrecondition {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Already started.")
					return nil
				}
				return err
			}
			// Print only the run ID, progress is visible through logs
			fmt.Fprintln(cmd.OutOrStdout(), apiv1.StatusFromProto(resp).RunID)
			return nil
		},
	}
	return cmd
}
