package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	envFile   string
	verbose   bool
	storeKind string
)

var rootCmd = &cobra.Command{
	Use:   "grcctl",
	Short: "GRC CLI - session, consent and BCP/DR client",
	Long: `grcctl talks to a GRC backend. It keeps a JWT session in a local store,
refreshes it before it expires, checks consent before gated actions and
exposes the BCP/DR module's operations.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer closeApp()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "", "session store: file, memory or redis (default from GRC_STORE)")
	rootCmd.AddCommand(authCmd, consentCmd, bcpCmd, endpointsCmd, versionCmd)
}
