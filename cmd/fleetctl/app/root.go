// Package app implements fleetctl, the operator CLI of the mission hub.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/autopeer-io/fleetpeer/pkg/app"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type globalOptions struct {
	v   *viper.Viper
	out io.Writer
}

func (g *globalOptions) client() *Client {
	return NewClient(g.v.GetString("server"), g.v.GetDuration("timeout"))
}

func (g *globalOptions) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.v.GetDuration("timeout"))
}

func (g *globalOptions) output() string {
	return g.v.GetString("output")
}

// NewCommand builds the fleetctl command tree writing to out.
// Global flags can also be set as FLEETPEER_SERVER, FLEETPEER_TIMEOUT and FLEETPEER_OUTPUT.
func NewCommand(out io.Writer) *cobra.Command {
	g := &globalOptions{v: viper.New(), out: out}

	cmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Operate Fleetpeer missions and vehicles",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch g.output() {
			case outputTable, outputJSON:
				return nil
			default:
				return fmt.Errorf("--output must be %s or %s", outputTable, outputJSON)
			}
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(out)

	fs := cmd.PersistentFlags()
	fs.String("server", "http://localhost:8080", "Base URL of the mission hub.")
	fs.Duration("timeout", 10*time.Second, "Timeout of a single request.")
	fs.StringP("output", "o", outputTable, "Output format: table or json.")

	g.v.SetEnvPrefix(app.EnvPrefix)
	g.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	g.v.AutomaticEnv()
	_ = g.v.BindPFlags(fs)

	cmd.AddCommand(newMissionCommand(g), newVehicleCommand(g))
	return cmd
}
