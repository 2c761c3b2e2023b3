// Package main implements the pkgmedic CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pkgmedic/internal/cli"
	"pkgmedic/internal/config"
	"pkgmedic/internal/pkgmgr"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	flagConfig   string
	flagLogLevel string
	flagNoColor  bool
	flagOutput   string
	flagAuto     bool
	flagStateDir string
	flagManager  string
	flagVerbose  bool
	flagDryRun   bool
)

var rootCmd = &cobra.Command{
	Use:   "pkgmedic",
	Short: "Package-manager commands with automatic failure recovery",
	Long: `pkgmedic wraps Linux package-manager commands. When a wrapped command
fails, the captured output is matched against a database of known failure
patterns; safe fixes are applied automatically and everything else is
offered interactively through "pkgmedic diagnose".`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var installCmd = &cobra.Command{
	Use:   "install <package>...",
	Short: "Install packages through the detected manager, with recovery",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) (int, error) {
			return app.RunManagerOp(cmd.Context(), cli.OpInstall, args)
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <package>...",
	Short: "Remove packages through the detected manager, with recovery",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) (int, error) {
			return app.RunManagerOp(cmd.Context(), cli.OpRemove, args)
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the package indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) (int, error) {
			return app.RunManagerOp(cmd.Context(), cli.OpRefresh, nil)
		})
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade all installed packages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) (int, error) {
			return app.RunManagerOp(cmd.Context(), cli.OpUpgrade, nil)
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run -- <command> [args...]",
	Short: "Run an arbitrary command, analyzing it on failure",
	Long: `Run an arbitrary command with its output captured. On a non-zero exit
the output is analyzed like any wrapped package operation.

Examples:
  pkgmedic run -- apt-get install -y jq
  pkgmedic run -- make install`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) (int, error) {
			return app.RunWrapped(cmd.Context(), args)
		})
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Analyze the last recorded failure and walk through fixes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) (int, error) {
			return app.RunDiagnose(cmd.Context(), flagDryRun)
		})
	},
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the loaded failure patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(app *cli.App) (int, error) {
			return app.RunPatterns()
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pkgmedic version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pkgmedic %s\n", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ~/.config/pkgmedic/config.yaml)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	pf.StringVarP(&flagOutput, "output", "o", "table", "output format: table, json, yaml")
	pf.BoolVar(&flagAuto, "auto", true, "apply safe fixes automatically")
	pf.StringVar(&flagStateDir, "state-dir", "", "directory holding the failure record")
	pf.StringVar(&flagManager, "manager", "", "force a package manager: "+strings.Join(pkgmgr.Known(), ", "))
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "show the commands behind each suggestion")

	diagnoseCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "describe fixes without executing anything")

	// Stop flag parsing at the first non-flag argument so the wrapped
	// command's own flags survive without a -- separator.
	runCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(installCmd, removeCmd, refreshCmd, upgradeCmd,
		runCmd, diagnoseCmd, patternsCmd, versionCmd)
}

// withApp loads configuration, folds in the flag overrides, and runs fn with
// an assembled App. A non-zero exit code comes back as an exitError so main
// can propagate it without printing anything.
func withApp(fn func(app *cli.App) (int, error)) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagNoColor {
		cfg.UI.Color = "never"
	}
	if rootCmd.PersistentFlags().Changed("auto") {
		cfg.Recovery.Auto = flagAuto
	}
	if flagStateDir != "" {
		cfg.State.Dir = flagStateDir
	}

	app, err := cli.NewApp(cfg, &cli.Options{
		Output:  flagOutput,
		Verbose: flagVerbose,
		Manager: flagManager,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	code, err := fn(app)
	if err != nil {
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// exitError carries a wrapped command's exit status through cobra. It is
// never printed; the failing command already wrote its own output.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "pkgmedic: %v\n", err)
		os.Exit(1)
	}
}
