package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/activity"
	"github.com/agentkernel/society/internal/ui"
)

func logCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:     "log",
		Aliases: []string{"activity"},
		Short:   "Show the editor activity journal",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ui.Banner("activity log")

			entries, err := activity.Read(count)
			if err != nil || len(entries) == 0 {
				fmt.Println("  No activity recorded yet.")
				return
			}
			printEntries(entries, 30)
			fmt.Printf("\n  Showing %d most recent entries\n", len(entries))
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 20, "Number of entries (0 for all)")
	cmd.AddCommand(
		logSearchCmd(),
		logClearCmd(),
		logExportCmd(),
		logStatsCmd(),
	)
	return cmd
}

func printEntries(entries []activity.Entry, width int) {
	var rows [][]string
	for _, e := range entries {
		rows = append(rows, []string{
			e.Timestamp.Format("Jan 02 15:04"),
			e.Action,
			e.Target,
			truncateLog(e.Details, width),
		})
	}
	ui.Table([]string{"Time", "Action", "Target", "Details"}, rows)
}

func logSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search activity entries",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			results, err := activity.Search(args[0], 50)
			if err != nil || len(results) == 0 {
				fmt.Printf("  No entries matching %q\n", args[0])
				return
			}

			ui.Banner("search results")
			printEntries(results, 40)
			fmt.Printf("\n  %d results\n", len(results))
		},
	}
}

func logClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the activity journal",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := activity.Clear(); err != nil {
				fail("Failed to clear: %v", err)
			}
			ui.Good.Printf("  %s Activity log cleared\n", ui.StatusIcon(true))
		},
	}
}

func logExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the activity journal as JSON",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := activity.Read(0)
			if err != nil {
				fail("%v", err)
			}
			data, _ := json.MarshalIndent(entries, "", "  ")
			fmt.Println(string(data))
		},
	}
}

func logStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count activity entries by action",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ui.Banner("activity stats")

			entries, err := activity.Read(0)
			if err != nil || len(entries) == 0 {
				fmt.Println("  No activity data")
				return
			}

			counts := make(map[string]int)
			for _, e := range entries {
				counts[e.Action]++
			}
			actions := sortedKeys(counts)
			sort.SliceStable(actions, func(i, j int) bool { return counts[actions[i]] > counts[actions[j]] })

			fmt.Printf("  Total entries: %d\n\n", len(entries))
			for _, a := range actions {
				fmt.Printf("    %-20s %d\n", a, counts[a])
			}
		},
	}
}

func truncateLog(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
