package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/oculist/internal/backend"
	"github.com/fakeyudi/oculist/internal/config"
	"github.com/fakeyudi/oculist/internal/logging"
	"github.com/fakeyudi/oculist/internal/profile"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// activeProfile holds the loaded staff profile, if any.
var activeProfile *profile.Profile

// logFile is the open log file, closed after the command runs.
var logFile io.Closer

var rootCmd = &cobra.Command{
	Use:          "oculist",
	Short:        "Record, transcribe and review eye-care visits from the terminal",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// First run: profile missing, run the setup wizard when interactive.
		if !profile.Exists() && term.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to oculist! Looks like this is your first time.")
			if err := runSetup(cmd, true); err != nil {
				return err
			}
		}

		activeProfile = nil
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		// Profile values fill in config gaps.
		if activeProfile != nil {
			def := config.Defaults()
			if cfg.InputFormat == def.InputFormat && activeProfile.InputFormat != "" {
				cfg.InputFormat = activeProfile.InputFormat
			}
			if cfg.InputDevice == def.InputDevice && activeProfile.InputDevice != "" {
				cfg.InputDevice = activeProfile.InputDevice
			}
		}

		f, err := logging.Setup(cfg.LogLevel)
		if err != nil {
			return err
		}
		logFile = f
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logFile == nil {
			return nil
		}
		err := logFile.Close()
		logFile = nil
		return err
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// GetProfile returns the active staff profile.
func GetProfile() *profile.Profile {
	return activeProfile
}

// newClient returns a backend client for the configured URL.
func newClient() *backend.Client {
	return backend.NewClient(cfg.BackendURL, cfg.Timeout())
}

// parseVisitID validates a visit id argument.
func parseVisitID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid visit id %q", arg)
	}
	return id, nil
}
