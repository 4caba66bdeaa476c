package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/workspace"
)

// completionCmd generates shell completion scripts.
func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate completion scripts for your shell.

  # Bash (add to ~/.bashrc)
  eval "$(society completion bash)"

  # Zsh (add to ~/.zshrc)
  eval "$(society completion zsh)"

  # Fish
  society completion fish | source

  # PowerShell
  society completion powershell | Out-String | Invoke-Expression`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Run: func(cmd *cobra.Command, args []string) {
			switch args[0] {
			case "bash":
				_ = rootCmd.GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				_ = rootCmd.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				_ = rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				_ = rootCmd.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
		},
	}
}

// agentCompletionFunc completes agent ids with their names as descriptions.
// It reads the workspace without the session machinery so a broken file
// just yields no completions.
func agentCompletionFunc(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	st, err := workspace.Load(workspacePath())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var completions []string
	for _, n := range st.Nodes {
		completions = append(completions, n.ID+"\t"+n.Data.Name)
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
