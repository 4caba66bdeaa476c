package cmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/config"
	"github.com/agentkernel/society/internal/ui"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialise the configuration",
		Run: func(cmd *cobra.Command, args []string) {
			configShowCmd().Run(cmd, args)
		},
	}

	cmd.AddCommand(
		configShowCmd(),
		configPathCmd(),
		configInitCmd(),
	)
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := *loadConfig()
			if cfg.Neo4j.Password != "" {
				cfg.Neo4j.Password = "********"
			}
			fmt.Println(ui.Subtle.Sprintf("# %s", config.Path()))
			if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
				fail("%v", err)
			}
		},
	}
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config, workspace and history paths",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			fmt.Printf("  %-10s %s\n", "config", config.Path())
			fmt.Printf("  %-10s %s\n", "workspace", workspacePath())
			fmt.Printf("  %-10s %s\n", "history", cfg.HistoryPath())
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			path := config.Path()
			if _, err := os.Stat(path); err == nil && !force {
				ui.Warn.Printf("  %s already exists; pass --force to overwrite\n", path)
				return
			}
			if err := config.Save(config.Default()); err != nil {
				fail("Failed to write config: %v", err)
			}
			ui.Good.Printf("  %s Wrote %s\n", ui.StatusIcon(true), path)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
