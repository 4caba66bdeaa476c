package cmd

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/codec"
	"github.com/agentkernel/society/internal/history"
	"github.com/agentkernel/society/internal/ui"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Browse, diff and restore document snapshots",
		Aliases: []string{"hist"},
		Run: func(cmd *cobra.Command, args []string) {
			historyListCmd().Run(cmd, args)
		},
	}

	cmd.AddCommand(
		historyListCmd(),
		historyShowCmd(),
		historyDiffCmd(),
		historyRestoreCmd(),
		historyPruneCmd(),
	)
	return cmd
}

// openHistory fails when snapshots are disabled.
func openHistory(s *session) *history.Store {
	if s.hist == nil {
		fail("History is disabled; set history.enabled = true in %s", ui.Subtle.Sprint("config.toml"))
	}
	return s.hist
}

func historyListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List recent snapshots",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()
			h := openHistory(s)

			snaps, err := h.List(context.Background(), limit)
			if err != nil {
				fail("%v", err)
			}

			ui.Banner("history")
			if len(snaps) == 0 {
				fmt.Println("  No snapshots yet. Export, save or import to record one.")
				return
			}

			var rows [][]string
			for _, snap := range snaps {
				rows = append(rows, []string{
					snap.ID[:8],
					snap.Action,
					strconv.Itoa(snap.Agents),
					strconv.Itoa(snap.Relations),
					formatStamp(snap.CreatedAt),
				})
			}
			ui.Table([]string{"ID", "Action", "Agents", "Relations", "When"}, rows)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of snapshots")
	return cmd
}

func formatStamp(s string) string {
	t, err := time.Parse(codec.TimeFormat, s)
	if err != nil {
		return s
	}
	return t.Local().Format("Jan 02 15:04:05")
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the document of a snapshot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()

			snap, err := openHistory(s).Get(context.Background(), args[0])
			if err != nil {
				fail("%v", err)
			}
			fmt.Println(string(snap.Document))
		},
	}
}

func historyDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <id> [id]",
		Short: "Diff a snapshot against another one or the current graph",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()
			h := openHistory(s)
			ctx := context.Background()

			from, err := h.Get(ctx, args[0])
			if err != nil {
				fail("%v", err)
			}

			var to history.Snapshot
			if len(args) == 2 {
				if to, err = h.Get(ctx, args[1]); err != nil {
					fail("%v", err)
				}
			} else {
				data, err := codec.EncodeJSON(s.ctl.Document())
				if err != nil {
					fail("%v", err)
				}
				to = history.Snapshot{ID: "current", Document: data}
			}

			res := history.Diff(from, to)
			changed := res.Changed()
			if len(changed) == 0 {
				ui.Good.Println("  No differences")
				return
			}
			for _, l := range changed {
				switch l.Op {
				case history.DiffInsert:
					ui.Good.Printf("+ %s\n", l.Text)
				case history.DiffDelete:
					ui.Bad.Printf("- %s\n", l.Text)
				}
			}
			fmt.Printf("\n  %s\n", ui.Subtle.Sprintf("%d added, %d removed", res.Added, res.Removed))
		},
	}
}

func historyRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the graph with a snapshot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()
			ctx := context.Background()

			snap, err := openHistory(s).Get(ctx, args[0])
			if err != nil {
				fail("%v", err)
			}
			doc, err := s.ctl.Import(ctx, bytes.NewReader(snap.Document))
			if err != nil {
				fail("Restore failed: %v", err)
			}
			logActivity("history.restore", snap.ID, snap.Action)
			ui.Good.Printf("  %s Restored %s %s\n", ui.StatusIcon(true), snap.ID[:8],
				ui.Subtle.Sprintf("(%d agents, %d relations)", len(doc.Agents), len(doc.Relations)))
		},
	}
}

func historyPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()

			n, err := openHistory(s).Prune(context.Background(), keep)
			if err != nil {
				fail("%v", err)
			}
			ui.Good.Printf("  %s Removed %d snapshot(s)\n", ui.StatusIcon(true), n)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 20, "Snapshots to keep")
	return cmd
}
