package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dyluth/osechi/internal/config"
	"github.com/dyluth/osechi/internal/printer"
	"github.com/dyluth/osechi/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
	seedInit  bool
	initBox   string
	initRedis string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create osechi.yml and optionally seed the box",
	Long: `Create a starter osechi.yml in the current directory.

With --seed the empty box described by the config is also written to Redis.
Seeding never touches a box that already exists, so it is safe to repeat.

Use --force to overwrite an existing osechi.yml.`,
	RunE: runInit,
}

func init() {
	// Note: Cannot use -f shorthand because it conflicts with global --config flag
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing osechi.yml")
	initCmd.Flags().BoolVar(&seedInit, "seed", false, "Seed the empty box in Redis")
	initCmd.Flags().StringVar(&initBox, "box", "", "Box name written to the config (default \"default\")")
	initCmd.Flags().StringVar(&initRedis, "redis", "", "Redis URL written to the config")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	_, statErr := os.Stat(configPath)
	if forceInit || os.IsNotExist(statErr) {
		path, err := scaffold.Initialize(filepath.Dir(configPath), scaffold.Options{BoxName: initBox, RedisURL: initRedis}, forceInit)
		if err != nil {
			return printer.Error("initialization failed", err.Error(), nil)
		}
		configPath = path
		scaffold.PrintSuccess(path)
	} else if !seedInit {
		return printer.Error(
			"box already configured",
			"Found existing: "+configPath,
			[]string{
				"Overwrite it:\n  osechi init --force",
				"Seed the box it describes:\n  osechi init --seed",
			},
		)
	}

	if !seedInit {
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return seedBox(context.Background(), cfg)
}

func seedBox(ctx context.Context, cfg *config.OsechiConfig) error {
	client, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	printer.Step("Seeding box '%s'...\n", cfg.Box.Name)
	seeded, err := client.Seed(ctx, cfg.Layout())
	if err != nil {
		return printer.Error("seed failed", err.Error(), nil)
	}

	if !seeded {
		printer.Info("Box '%s' already exists, left unchanged\n", cfg.Box.Name)
		return nil
	}
	printer.Success("Seeded %d tiers of %d slots\n", len(cfg.Box.Tiers), cfg.Box.SlotsPerTier)
	return nil
}
