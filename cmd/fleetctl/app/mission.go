package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/service"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

func newMissionCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mission",
		Aliases: []string{"missions", "m"},
		Short:   "Create, dispatch and inspect mission duties",
	}

	cmd.AddCommand(
		newMissionCreateCommand(g),
		newMissionSendCommand(g),
		newMissionCancelCommand(g),
		newMissionGetCommand(g),
		newMissionListCommand(g),
		newMissionEventsCommand(g),
		newMissionStatsCommand(g),
	)
	return cmd
}

func newMissionCreateCommand(g *globalOptions) *cobra.Command {
	var (
		req   service.CreateMissionRequest
		route string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a mission duty for a vehicle",
		Example: `  fleetctl mission create --vin WVW123 --task-code T1 --name patrol \
    --route '[[13.40,52.52],[13.41,52.53,12]]'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if route != "" {
				var coords [][]float64
				if err := json.Unmarshal([]byte(route), &coords); err != nil {
					return fmt.Errorf("--route must be a JSON array of [lon, lat, alt?] coordinates: %w", err)
				}
				req.Task.Route = protocol.NewLineString(coords)
			}

			ctx, cancel := g.context()
			defer cancel()
			duty, err := g.client().CreateMission(ctx, req)
			if err != nil {
				return err
			}
			return g.printMission(duty)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&req.VIN, "vin", "", "Vehicle the mission is assigned to.")
	fs.StringVar(&req.TaskCode, "task-code", "", "Code of the task definition.")
	fs.StringVar(&req.Date, "date", time.Now().Format(time.DateOnly), "Mission date.")
	fs.StringVar(&req.Task.Name, "name", "", "Task name.")
	fs.StringVar(&route, "route", "", "Route as a JSON array of [lon, lat, alt?] coordinates.")
	_ = cmd.MarkFlagRequired("vin")
	_ = cmd.MarkFlagRequired("task-code")
	return cmd
}

func newMissionSendCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send VIN MISSION_CODE",
		Short: "Send a mission to its vehicle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context()
			defer cancel()
			duty, err := g.client().SendMission(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return g.printMission(duty)
		},
	}
}

func newMissionCancelCommand(g *globalOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel MISSION_CODE",
		Short: "Cancel a mission that has not finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context()
			defer cancel()
			duty, err := g.client().CancelMission(ctx, args[0], reason)
			if err != nil {
				return err
			}
			return g.printMission(duty)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the cancellation.")
	return cmd
}

func newMissionGetCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get MISSION_CODE",
		Short: "Show one mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context()
			defer cancel()
			duty, err := g.client().GetMission(ctx, args[0])
			if err != nil {
				return err
			}
			return g.printMission(duty)
		},
	}
}

func newMissionListCommand(g *globalOptions) *cobra.Command {
	var (
		vin    string
		status string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List missions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.context()
			defer cancel()
			duties, err := g.client().ListMissions(ctx, model.MissionFilter{VIN: vin, Status: model.MissionStatus(status)})
			if err != nil {
				return err
			}
			if g.output() == outputJSON {
				return printJSON(g.out, duties)
			}
			return printMissions(g.out, duties)
		},
	}
	cmd.Flags().StringVar(&vin, "vin", "", "Only missions of this vehicle.")
	cmd.Flags().StringVar(&status, "status", "", "Only missions in this status.")
	return cmd
}

func newMissionEventsCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events MISSION_CODE",
		Short: "Show the audit trail of a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context()
			defer cancel()
			events, err := g.client().ListEvents(ctx, args[0])
			if err != nil {
				return err
			}
			if g.output() == outputJSON {
				return printJSON(g.out, events)
			}
			return printEvents(g.out, events)
		},
	}
}

func newMissionStatsCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize missions by status and vehicle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.context()
			defer cancel()
			stats, err := g.client().Stats(ctx)
			if err != nil {
				return err
			}
			if g.output() == outputJSON {
				return printJSON(g.out, stats)
			}
			return printStats(g.out, stats)
		},
	}
}

func (g *globalOptions) printMission(duty *model.MissionDuty) error {
	if g.output() == outputJSON {
		return printJSON(g.out, duty)
	}
	return printMission(g.out, duty)
}
