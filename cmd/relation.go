package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/graph"
	"github.com/agentkernel/society/internal/ui"
)

func relationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "relation",
		Short:   "Create, edit and list relations between agents",
		Aliases: []string{"relations", "rel", "r"},
		Run: func(cmd *cobra.Command, args []string) {
			relationListCmd().Run(cmd, args)
		},
	}

	add := connectCmd()
	add.Use = "add <source> <target>"
	cmd.AddCommand(
		add,
		relationSetCmd(),
		relationRemoveCmd(),
		relationListCmd(),
	)
	return cmd
}

// relateCmd is the top-level shortcut for "relation add".
func relateCmd() *cobra.Command {
	return connectCmd()
}

type relationFlags struct {
	kind   string
	weight float64
}

func (f *relationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "type", "", "Relation type (friend, enemy, colleague, ally, rival, mentor, family, custom, ...)")
	cmd.Flags().Float64Var(&f.weight, "weight", 0, "Weight in [-1, 1]; the sign is polarity")
}

func (f *relationFlags) patch(cmd *cobra.Command) graph.RelationPatch {
	var p graph.RelationPatch
	if cmd.Flags().Changed("type") {
		p.RelationType = graph.Ptr(f.kind)
	}
	if cmd.Flags().Changed("weight") {
		p.Weight = graph.Ptr(f.weight)
	}
	return p
}

func connectCmd() *cobra.Command {
	var f relationFlags

	cmd := &cobra.Command{
		Use:               "relate <source> <target>",
		Short:             "Create a directed relation from source to target",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: agentCompletionFunc,
		Run: func(cmd *cobra.Command, args []string) {
			patch := f.patch(cmd)
			if err := patch.Validate(); err != nil {
				fail("%v", err)
			}

			s := openSession(sessionOptions{})
			defer s.close()

			src := s.resolveAgent(args[0])
			dst := s.resolveAgent(args[1])
			edge, err := s.ctl.Connect(src.ID, dst.ID, &patch)
			if err != nil {
				fail("%v", err)
			}

			logActivity("relation.add", edge.ID, fmt.Sprintf("%s -> %s", src.Data.Name, dst.Data.Name))
			ui.Good.Printf("  %s %s %s %s %s %s\n", ui.StatusIcon(true),
				ui.Brand.Sprint(src.Data.Name), ui.Subtle.Sprint("→"), ui.Brand.Sprint(dst.Data.Name),
				edge.Data.RelationType, ui.Weight(edge.Data.Weight))
			ui.Subtle.Printf("    %s\n", edge.ID)
		},
	}

	f.register(cmd)
	return cmd
}

func relationSetCmd() *cobra.Command {
	var f relationFlags

	cmd := &cobra.Command{
		Use:     "set <relation-id>",
		Short:   "Change the type or weight of a relation",
		Aliases: []string{"edit", "update"},
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			patch := f.patch(cmd)
			if patch.RelationType == nil && patch.Weight == nil {
				fail("Nothing to change; pass --type or --weight")
			}

			s := openSession(sessionOptions{})
			defer s.close()

			if _, err := s.store.UpdateEdgeData(args[0], patch); err != nil {
				fail("%v", err)
			}
			edge, _ := s.store.Edge(args[0])
			logActivity("relation.set", edge.ID, edge.Data.RelationType)
			ui.Good.Printf("  %s %s now %s %s\n", ui.StatusIcon(true), edge.ID,
				edge.Data.RelationType, ui.Weight(edge.Data.Weight))
		},
	}

	f.register(cmd)
	return cmd
}

func relationRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <relation-id>",
		Short:   "Remove one relation",
		Aliases: []string{"remove", "delete"},
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()

			if !s.store.RemoveEdge(args[0]) {
				fail("No relation %q", args[0])
			}
			logActivity("relation.remove", args[0], "")
			ui.Good.Printf("  %s Removed %s\n", ui.StatusIcon(true), args[0])
		},
	}
}

func relationListCmd() *cobra.Command {
	var of string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List relations",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()

			edges := s.store.Edges()
			if of != "" {
				node := s.resolveAgent(of)
				out, in := s.store.RelationsOf(node.ID)
				edges = append(out, in...)
			}

			ui.Banner("relations")
			if len(edges) == 0 {
				fmt.Println("  No relations yet. Connect two agents:")
				fmt.Println()
				ui.Info.Println("  society relate Alice Bob --type friend --weight 0.7")
				return
			}

			sel := s.store.Selection()
			var rows [][]string
			seen := make(map[string]bool)
			for _, e := range edges {
				if seen[e.ID] {
					continue
				}
				seen[e.ID] = true
				marker := " "
				if sel.EdgeID == e.ID {
					marker = ui.Brand.Sprint("›")
				}
				rows = append(rows, []string{
					marker + " " + e.ID,
					s.agentName(e.Source),
					s.agentName(e.Target),
					e.Data.RelationType,
					ui.Weight(e.Data.Weight),
				})
			}
			ui.Table([]string{"  ID", "From", "To", "Type", "Weight"}, rows)
			fmt.Printf("\n  %s relations\n", strconv.Itoa(len(rows)))
		},
	}

	cmd.Flags().StringVar(&of, "of", "", "Only relations touching this agent")
	return cmd
}
