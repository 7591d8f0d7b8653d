package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dyluth/osechi/internal/config"
	"github.com/dyluth/osechi/internal/printer"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "osechi",
	Short: "Osechi - a shared New Year potluck box",
	Long: `Osechi coordinates a shared, tiered potluck box. Participants claim
empty slots for the dishes they will bring; every client sees the same box
in real time through Redis.

Claims are checked against the house rules before they are written: dish
names must be unique, and no single colour may crowd out the others.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to osechi.yml")
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist, then applies environment overrides.
func loadConfig(cmd *cobra.Command) (*config.OsechiConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		explicit := cmd.Flags().Changed("config")
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, printer.ErrorWithContext(
				"invalid configuration",
				err.Error(),
				map[string]string{"Config": configPath},
				[]string{"Create a starter config:\n  osechi init"},
			)
		}
		cfg = config.Default()
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}

	return cfg, nil
}
