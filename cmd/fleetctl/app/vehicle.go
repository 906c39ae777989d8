package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	serverhttp "github.com/autopeer-io/fleetpeer/internal/missionhub/server/http"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

func newVehicleCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vehicle",
		Aliases: []string{"vehicles", "v"},
		Short:   "Talk to vehicles",
	}
	cmd.AddCommand(newVehicleCommandCommand(g))
	return cmd
}

func newVehicleCommandCommand(g *globalOptions) *cobra.Command {
	var params string

	cmd := &cobra.Command{
		Use:     "command VIN COMMAND",
		Short:   "Publish a command to a vehicle",
		Example: `  fleetctl vehicle command WVW123 awaitAssignment --params '{"isThereDispatchedTask":false}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := serverhttp.CommandRequest{Command: protocol.CommandName(args[1])}
			if params != "" {
				if !json.Valid([]byte(params)) {
					return fmt.Errorf("--params must be valid JSON")
				}
				req.Params = json.RawMessage(params)
			}

			ctx, cancel := g.context()
			defer cancel()
			if err := g.client().SendCommand(ctx, args[0], req); err != nil {
				return err
			}
			fmt.Fprintf(g.out, "command %s sent to %s\n", req.Command, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&params, "params", "", "Command parameters as a JSON object.")
	return cmd
}
