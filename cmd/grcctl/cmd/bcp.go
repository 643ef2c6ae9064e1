package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-grc-client/bcp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var bcpFilters []string

var bcpCmd = &cobra.Command{
	Use:   "bcp",
	Short: "Business continuity and disaster recovery plans",
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Manage BCP/DR plans",
}

var questionnairesCmd = &cobra.Command{
	Use:   "questionnaires",
	Short: "BCP/DR questionnaires",
}

// bcpRun wraps a facade call, printing the JSON result.
func bcpRun(call func(ctx context.Context, api *bcp.API, args []string) (json.RawMessage, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		raw, err := call(cmd.Context(), a.bcp, args)
		if err != nil {
			return err
		}
		return printJSON(cmd, raw)
	}
}

func filterParams() (url.Values, error) {
	params := url.Values{}
	for _, f := range bcpFilters {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid filter %q, want key=value", f)
		}
		params.Add(k, v)
	}
	return params, nil
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans",
	RunE: bcpRun(func(ctx context.Context, api *bcp.API, _ []string) (json.RawMessage, error) {
		params, err := filterParams()
		if err != nil {
			return nil, err
		}
		return api.Plans.List(ctx, params)
	}),
}

var plansGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a plan",
	Args:  cobra.ExactArgs(1),
	RunE: bcpRun(func(ctx context.Context, api *bcp.API, args []string) (json.RawMessage, error) {
		return api.Plans.Get(ctx, args[0])
	}),
}

var plansApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a plan",
	Args:  cobra.ExactArgs(1),
	RunE: bcpRun(func(ctx context.Context, api *bcp.API, args []string) (json.RawMessage, error) {
		return api.Plans.Approve(ctx, args[0])
	}),
}

var plansRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a plan",
	Args:  cobra.ExactArgs(1),
	RunE: bcpRun(func(ctx context.Context, api *bcp.API, args []string) (json.RawMessage, error) {
		return api.Plans.Reject(ctx, args[0])
	}),
}

var dashboardCmd = &cobra.Command{
	Use:       "dashboard <view>",
	Short:     "Show a dashboard view",
	Long:      fmt.Sprintf("Shows one of the dashboard views: %s.", strings.Join(bcp.DashboardViews, ", ")),
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: bcp.DashboardViews,
	RunE: bcpRun(func(ctx context.Context, api *bcp.API, args []string) (json.RawMessage, error) {
		return api.Dashboard.View(ctx, args[0])
	}),
}

var questionnairesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List questionnaires",
	RunE: bcpRun(func(ctx context.Context, api *bcp.API, _ []string) (json.RawMessage, error) {
		params, err := filterParams()
		if err != nil {
			return nil, err
		}
		return api.Questionnaires.List(ctx, params)
	}),
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func init() {
	plansListCmd.Flags().StringArrayVarP(&bcpFilters, "filter", "f", nil, "query filter as key=value (repeatable)")
	questionnairesListCmd.Flags().StringArrayVarP(&bcpFilters, "filter", "f", nil, "query filter as key=value (repeatable)")

	plansCmd.AddCommand(plansListCmd, plansGetCmd, plansApproveCmd, plansRejectCmd)
	questionnairesCmd.AddCommand(questionnairesListCmd)
	bcpCmd.AddCommand(plansCmd, dashboardCmd, questionnairesCmd)
}
