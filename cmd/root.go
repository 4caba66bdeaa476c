package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/config"
	"github.com/agentkernel/society/internal/ui"
)

var version = "0.3.0"

var (
	workspaceFlag string
	configFlag    string
	noColor       bool
)

var rootCmd = &cobra.Command{
	Use:   "society",
	Short: "society · agent graph editor",
	Long: ui.Brand.Sprint(ui.Mark+" society") + " · design the social graph of a multi-agent simulation\n" +
		ui.Subtle.Sprint("Add agents, relate them, then export, save or publish the simulation config"),
	Version:       version + " " + ui.Mark,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFlag != "" {
			config.UsePath(configFlag)
		}
		cfg := loadConfig()
		ui.SetColor(cfg.UI.Color && !noColor)
	},
}

func init() {
	rootCmd.SetVersionTemplate("society {{ .Version }}\n")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Workspace file (default $XDG_CONFIG_HOME/society/workspace.json)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default $XDG_CONFIG_HOME/society/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(
		agentCmd(),
		relationCmd(),
		relateCmd(),
		selectCmd(),
		deleteCmd(),
		clearCmd(),
		statusCmd(),
		exportCmd(),
		saveCmd(),
		importCmd(),
		historyCmd(),
		publishCmd(),
		serveCmd(),
		mcpCmd(),
		configCmd(),
		logCmd(),
		completionCmd(),
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
