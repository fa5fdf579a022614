// Package main provides the carsensor binary: a client for the CarSensor
// listing service with a command line, a terminal UI, and a local HTTP API.
package main

import (
	"errors"
	"fmt"
	"os"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "carsensor"
)

// exitSessionExpired is the exit code when the remote service rejects the
// stored credential mid-command.
const exitSessionExpired = 2

// errSessionExpired is returned by commands once the session was cleared
// because the remote service rejected it.
var errSessionExpired = errors.New("session expired, run `carsensor login`")

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errSessionExpired) {
			os.Exit(exitSessionExpired)
		}
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Browse CarSensor vehicle listings",
		Long: `carsensor signs in to the CarSensor listing service and browses its
vehicle listings page by page.

Configuration comes from CARSENSOR_* environment variables and
~/.config/carsensor/config.yml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		loginCmd(&flags),
		logoutCmd(&flags),
		statusCmd(&flags),
		listCmd(&flags),
		browseCmd(&flags),
		serveCmd(&flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}
