package cmd

import (
	"encoding/json"

	"github.com/jrsteele09/go-grc-client/consent"
	"github.com/jrsteele09/go-grc-client/internal/utils"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	consentConfigID string
	consentUserID   string
	consentIP       string
)

var consentCmd = &cobra.Command{
	Use:   "consent",
	Short: "Check and accept consent for gated actions",
}

var consentCheckCmd = &cobra.Command{
	Use:   "check <action>",
	Short: "Show whether an action requires consent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		res := a.gate.CheckConsentRequired(cmd.Context(), args[0])
		if !res.Required || res.Config == nil {
			pterm.Success.Printf("%s does not require consent\n", consent.ActionLabel(args[0]))
			return nil
		}
		pterm.Warning.Printf("%s requires consent (config %s)\n", consent.ActionLabel(args[0]), res.Config.ConfigID)
		if res.Config.ConsentText != "" {
			pterm.DefaultBox.Println(res.Config.ConsentText)
		}
		return nil
	},
}

var consentAcceptCmd = &cobra.Command{
	Use:   "accept <action>",
	Short: "Record consent acceptance for an action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := getApp(ctx)
		if err != nil {
			return err
		}
		userID := consentUserID
		if userID == "" {
			userID, _ = a.store.Get(ctx, storage.KeyUserID)
		}
		if userID == "" {
			return errors.New("--user-id is required when not logged in")
		}
		configID := consentConfigID
		if configID == "" {
			res := a.gate.CheckConsentRequired(ctx, args[0])
			if res.Config == nil {
				return errors.Errorf("no consent configuration for %s, pass --config-id", args[0])
			}
			configID = res.Config.ConfigID.String()
		}

		var ip *string
		if consentIP != "" {
			ip = utils.Ptr(consentIP)
		}
		if !a.gate.RecordConsentAcceptance(ctx, json.Number(userID), json.Number(configID), args[0], ip) {
			return errors.New("consent was not recorded")
		}
		pterm.Success.Printf("Consent recorded for %s\n", consent.ActionLabel(args[0]))
		return nil
	},
}

var consentActionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the action types that can be gated",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := pterm.TableData{{"ACTION", "LABEL"}}
		for _, action := range consent.Actions() {
			table = append(table, []string{action, consent.ActionLabel(action)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}

func init() {
	consentAcceptCmd.Flags().StringVar(&consentConfigID, "config-id", "", "consent configuration id (looked up when empty)")
	consentAcceptCmd.Flags().StringVar(&consentUserID, "user-id", "", "user id (defaults to the logged in user)")
	consentAcceptCmd.Flags().StringVar(&consentIP, "ip", "", "client IP address to record")

	consentCmd.AddCommand(consentCheckCmd, consentAcceptCmd, consentActionsCmd)
}
