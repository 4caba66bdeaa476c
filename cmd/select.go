package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/editor"
	"github.com/agentkernel/society/internal/hooks"
	"github.com/agentkernel/society/internal/ui"
)

func selectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select an agent or relation for delete",
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()
			printSelection(s)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:               "node <agent>",
			Short:             "Select an agent",
			Aliases:           []string{"agent"},
			Args:              cobra.ExactArgs(1),
			ValidArgsFunction: agentCompletionFunc,
			Run: func(cmd *cobra.Command, args []string) {
				s := openSession(sessionOptions{})
				defer s.close()
				node := s.resolveAgent(args[0])
				s.ctl.ClickNode(node.ID)
				printSelection(s)
			},
		},
		&cobra.Command{
			Use:     "edge <relation-id>",
			Short:   "Select a relation",
			Aliases: []string{"relation"},
			Args:    cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				s := openSession(sessionOptions{})
				defer s.close()
				if !s.ctl.ClickEdge(args[0]) {
					fail("No relation %q", args[0])
				}
				printSelection(s)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the selection",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				s := openSession(sessionOptions{})
				defer s.close()
				s.ctl.ClickCanvas()
				printSelection(s)
			},
		},
	)
	return cmd
}

func printSelection(s *session) {
	sel := s.store.Selection()
	switch {
	case sel.NodeID != "":
		fmt.Printf("  Selected agent %s %s\n", ui.Brand.Sprint(s.agentName(sel.NodeID)), ui.Subtle.Sprint(sel.NodeID))
	case sel.EdgeID != "":
		e, _ := s.store.Edge(sel.EdgeID)
		fmt.Printf("  Selected relation %s %s\n", e.ID,
			ui.Subtle.Sprintf("(%s → %s)", s.agentName(e.Source), s.agentName(e.Target)))
	default:
		ui.Subtle.Println("  Nothing selected")
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the selected agent or relation",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()

			name := ""
			if sel := s.store.Selection(); sel.NodeID != "" {
				name = s.agentName(sel.NodeID)
			}
			d, ok := s.ctl.Delete()
			if !ok {
				ui.Subtle.Println("  Nothing selected")
				return
			}
			logActivity("delete", d.ID, d.Kind)
			if name != "" {
				ui.Good.Printf("  %s Deleted agent %s\n", ui.StatusIcon(true), ui.Brand.Sprint(name))
				return
			}
			ui.Good.Printf("  %s Deleted %s %s\n", ui.StatusIcon(true), d.Kind, d.ID)
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every agent and relation",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{confirm: terminalConfirmer(yes)})
			defer s.close()

			st := s.store.Stats()
			if err := s.ctl.ClearAll(); err != nil {
				if errors.Is(err, editor.ErrNotConfirmed) {
					ui.Warn.Println("  Cancelled; nothing removed")
					return
				}
				fail("%v", err)
			}
			logActivity("clear", "", fmt.Sprintf("%d agents, %d relations", st.Agents, st.Relations))
			ui.Good.Printf("  %s Cleared %d agents and %d relations\n", ui.StatusIcon(true), st.Agents, st.Relations)
			runHook(hooks.Event{Phase: hooks.PostClear, ConfigName: s.ctl.ConfigName()})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
