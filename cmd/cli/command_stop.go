package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/emptypb"

	apiv1 "github.com/SanjoDeundiak/oscam-supervisor/api/v1"
)

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the supervised process to terminate",
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
			resp, err := client.Stop(ctx, &emptypb.Empty{})
			if err != nil {
				return err
			}
			// Stop is asynchronous, the table shows the state right after the request
			printStatusTable(cmd.OutOrStdout(), apiv1.StatusFromProto(resp))
			return nil
		},
	}
	return cmd
}
