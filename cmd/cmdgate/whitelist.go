package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xela07ax/spaceai-cmdgate/internal/infra"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Print the effective whitelist the gateway would start with",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := infra.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		registry, err := buildRegistry(cfg.Engine, zap.NewNop())
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(map[string]interface{}{"whitelist": registry.List()})
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(whitelistCmd)
}
