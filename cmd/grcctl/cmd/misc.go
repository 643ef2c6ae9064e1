package cmd

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-grc-client/endpoints"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var version = "dev"

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Print the resolved backend URLs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		r := endpoints.New(os.Getenv)
		table := pterm.TableData{
			{"NAME", "URL"},
			{"origin", r.Origin()},
			{"server", r.ServerURL()},
			{"api", r.APIBaseURL()},
			{"api v1", r.APIV1BaseURL()},
			{"tprm", r.TPRMBaseURL()},
			{"tprm v1", r.TPRMV1BaseURL()},
			{"tprm server", r.TPRMServerURL()},
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		displayAppname(cmd, "grcctl")
		fmt.Fprintf(cmd.OutOrStdout(), "version %s\n", version)
	},
}

func displayAppname(cmd *cobra.Command, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(cmd.OutOrStdout(), myFigure.String())
}
