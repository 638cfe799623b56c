package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/miku1hhhh/sina-dl/internal/app"
	"github.com/miku1hhhh/sina-dl/internal/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		path := defaultConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !force {
			fail(fmt.Errorf("%s already exists (use --force to overwrite)", path))
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			fail(err)
		}
		fmt.Printf("Config written to %s\n", path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := app.LoadConfig(serverConfigPath)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Server:    %s:%d\n", config.Server.Host, config.Server.Port)
		fmt.Printf("API base:  %s\n", config.Upstream.APIBase)
		fmt.Printf("Content:   %s\n", config.Upstream.ContentBase)
		fmt.Printf("Archives:  %s\n", config.Archive.OutputDir)
		fmt.Printf("Catalog:   %s\n", config.Archive.DatabasePath)
		fmt.Printf("Logs:      %s\n", config.Logging.LogsDir)
		if config.Archive.Mirror.Enabled {
			fmt.Printf("Mirror:    %s/%s\n", config.Archive.Mirror.Endpoint, config.Archive.Mirror.Bucket)
		}
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("configs", "config.yaml")
	}
	return filepath.Join(home, ".sina-dl", "config.yaml")
}
