// Command rmi stages delimited issue tables and imports them into a
// Redmine-style issue store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/two-pack/redmine-importer/internal/config"
	"github.com/two-pack/redmine-importer/internal/logging"
	"github.com/two-pack/redmine-importer/internal/telemetry"
	"github.com/two-pack/redmine-importer/internal/ui"
)

var (
	// Version is overridden by ldflags at build time.
	Version = "0.3.0"

	configPath  string
	dbPath      string
	driverName  string
	actorLogin  string
	jsonOutput  bool
	verboseFlag bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
	log        *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "rmi",
	Short:         "rmi - import CSV issue tables into a Redmine-style tracker",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitializeFile(configPath); err != nil {
			return err
		}
		applyConfigOverrides(cmd)

		level := config.GetString("log.level")
		if verboseFlag {
			level = "debug"
		}
		var err error
		if log, err = logging.Setup(cmd.ErrOrStderr(), level, config.GetString("log.format")); err != nil {
			return err
		}

		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		if err := telemetry.Init(rootCtx, telemetryConfig()); err != nil {
			log.WithError(err).Warn("telemetry disabled")
		}
		rootCtx = logging.WithLogger(rootCtx, logrus.NewEntry(log))
		cmd.SetContext(rootCtx)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rootCtx != nil {
			telemetry.Shutdown(context.WithoutCancel(rootCtx))
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .rmi/config.yaml, $HOME/.config/rmi/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path or DSN (default: $RMI_DB, .rmi/rmi.db)")
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", "", "Database driver: sqlite, mysql (dolt) or postgres")
	rootCmd.PersistentFlags().StringVar(&actorLogin, "actor", "", "Login of the user performing the import (default: $RMI_ACTOR, $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

// telemetryConfig reads the telemetry.* settings. RMI_TELEMETRY_ENABLED and
// RMI_TELEMETRY_ENDPOINT override the file.
func telemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        config.GetBool("telemetry.enabled"),
		Endpoint:       config.GetString("telemetry.endpoint"),
		Interval:       config.GetDuration("telemetry.interval"),
		Version:        Version,
		Driver:         driverName,
		SessionBackend: config.GetString("session.backend"),
	}
}

// applyConfigOverrides fills globals from viper unless a flag was given.
func applyConfigOverrides(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool("json")
	}
	if !cmd.Flags().Changed("db") {
		dbPath = config.GetString("db")
	}
	if !cmd.Flags().Changed("driver") {
		driverName = config.GetString("driver")
	}
	if !cmd.Flags().Changed("actor") {
		actorLogin = config.GetString("actor")
	}
	if actorLogin == "" {
		actorLogin = os.Getenv("USER")
	}
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func theme() ui.Theme {
	if jsonOutput {
		return ui.Theme{}
	}
	return ui.DefaultTheme()
}

// exitError carries a process exit code without extra output.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		if jsonOutput {
			_ = outputJSON(os.Stderr, map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
