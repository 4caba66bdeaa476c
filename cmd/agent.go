package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/graph"
	"github.com/agentkernel/society/internal/ui"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agent",
		Short:   "Add, edit and inspect agents",
		Aliases: []string{"agents", "a"},
		Run: func(cmd *cobra.Command, args []string) {
			agentListCmd().Run(cmd, args)
		},
	}

	cmd.AddCommand(
		agentAddCmd(),
		agentSetCmd(),
		agentMoveCmd(),
		agentRemoveCmd(),
		agentListCmd(),
		agentShowCmd(),
	)
	return cmd
}

// agentFlags collects the attribute flags shared by add and set. Only flags
// the user passed end up in the patch.
type agentFlags struct {
	name, role, model string
	traits            []string
	memory, tools     bool
}

func (f *agentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Display name")
	cmd.Flags().StringVar(&f.role, "role", "", "Role (assistant, researcher, critic, moderator, ...)")
	cmd.Flags().StringVar(&f.model, "model", "", "Model identifier")
	cmd.Flags().StringSliceVarP(&f.traits, "trait", "t", nil, "Personality trait as name=value, repeatable (e.g. openness=0.8)")
	cmd.Flags().BoolVar(&f.memory, "memory", true, "Enable agent memory")
	cmd.Flags().BoolVar(&f.tools, "tools", true, "Enable agent tools")
}

func (f *agentFlags) patch(cmd *cobra.Command) (graph.AgentPatch, error) {
	var p graph.AgentPatch
	if cmd.Flags().Changed("name") {
		p.Name = graph.Ptr(f.name)
	}
	if cmd.Flags().Changed("role") {
		p.Role = graph.Ptr(f.role)
	}
	if cmd.Flags().Changed("model") {
		p.Model = graph.Ptr(f.model)
	}
	if cmd.Flags().Changed("memory") {
		p.MemoryEnabled = graph.Ptr(f.memory)
	}
	if cmd.Flags().Changed("tools") {
		p.ToolsEnabled = graph.Ptr(f.tools)
	}
	if len(f.traits) > 0 {
		p.Personality = &graph.PersonalityPatch{}
		for _, kv := range f.traits {
			name, raw, ok := strings.Cut(kv, "=")
			if !ok {
				return p, fmt.Errorf("trait %q: expected name=value", kv)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return p, fmt.Errorf("trait %q: %w", kv, err)
			}
			if err := p.Personality.SetTrait(strings.TrimSpace(name), v); err != nil {
				return p, err
			}
		}
	}
	return p, p.Validate()
}

func agentAddCmd() *cobra.Command {
	var f agentFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an agent near the canvas centre",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			patch, err := f.patch(cmd)
			if err != nil {
				fail("%v", err)
			}

			s := openSession(sessionOptions{})
			defer s.close()

			node := s.ctl.AddAgent()
			if !patch.Empty() {
				if _, err := s.store.UpdateNodeData(node.ID, patch); err != nil {
					fail("%v", err)
				}
				node, _ = s.store.Node(node.ID)
			}

			logActivity("agent.add", node.ID, node.Data.Name)
			ui.Good.Printf("  %s Added %s %s (%s)\n", ui.StatusIcon(true), ui.Brand.Sprint(node.Data.Name),
				ui.Subtle.Sprint(node.ID), ui.Role(node.Data.Role))
		},
	}

	f.register(cmd)
	return cmd
}

func agentSetCmd() *cobra.Command {
	var f agentFlags

	cmd := &cobra.Command{
		Use:               "set <agent>",
		Short:             "Change attributes of an agent",
		Aliases:           []string{"edit", "update"},
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: agentCompletionFunc,
		Run: func(cmd *cobra.Command, args []string) {
			patch, err := f.patch(cmd)
			if err != nil {
				fail("%v", err)
			}
			if patch.Empty() {
				fail("Nothing to change; pass --name, --role, --model, --trait, --memory or --tools")
			}

			s := openSession(sessionOptions{})
			defer s.close()

			node := s.resolveAgent(args[0])
			if _, err := s.store.UpdateNodeData(node.ID, patch); err != nil {
				fail("%v", err)
			}
			node, _ = s.store.Node(node.ID)

			logActivity("agent.set", node.ID, node.Data.Name)
			ui.Good.Printf("  %s Updated %s\n", ui.StatusIcon(true), ui.Brand.Sprint(node.Data.Name))
		},
	}

	f.register(cmd)
	return cmd
}

func agentMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "move <agent> <x> <y>",
		Short:             "Set an agent's canvas position",
		Args:              cobra.ExactArgs(3),
		ValidArgsFunction: agentCompletionFunc,
		Run: func(cmd *cobra.Command, args []string) {
			x, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				fail("Invalid x %q", args[1])
			}
			y, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				fail("Invalid y %q", args[2])
			}

			s := openSession(sessionOptions{})
			defer s.close()

			node := s.resolveAgent(args[0])
			s.store.MoveNode(node.ID, graph.Position{X: x, Y: y})
			fmt.Printf("  %s %s → (%.0f, %.0f)\n", ui.StatusIcon(true), ui.Brand.Sprint(node.Data.Name), x, y)
		},
	}
}

func agentRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "rm <agent>",
		Short:             "Remove an agent and its relations",
		Aliases:           []string{"remove", "delete"},
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: agentCompletionFunc,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()

			node := s.resolveAgent(args[0])
			out, in := s.store.RelationsOf(node.ID)
			s.store.RemoveNode(node.ID)

			logActivity("agent.remove", node.ID, node.Data.Name)
			ui.Good.Printf("  %s Removed %s", ui.StatusIcon(true), ui.Brand.Sprint(node.Data.Name))
			if n := countDistinct(out, in); n > 0 {
				fmt.Printf(" %s", ui.Subtle.Sprintf("and %d relation(s)", n))
			}
			fmt.Println()
		},
	}
}

// countDistinct counts relations across both lists; self-loops appear in
// both.
func countDistinct(lists ...[]graph.RelationEdge) int {
	seen := make(map[string]struct{})
	for _, l := range lists {
		for _, e := range l {
			seen[e.ID] = struct{}{}
		}
	}
	return len(seen)
}

func agentListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List agents",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()

			nodes := s.store.Nodes()
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(nodes)
				return
			}

			ui.Banner("agents")
			if len(nodes) == 0 {
				fmt.Println("  No agents yet. Get started:")
				fmt.Println()
				ui.Info.Println("  society agent add --name Alice --role researcher")
				return
			}

			sel := s.store.Selection()
			var rows [][]string
			for _, n := range nodes {
				out, in := s.store.RelationsOf(n.ID)
				marker := " "
				if sel.NodeID == n.ID {
					marker = ui.Brand.Sprint("›")
				}
				rows = append(rows, []string{
					marker + " " + n.ID,
					n.Data.Name,
					ui.Role(n.Data.Role),
					n.Data.Model,
					strconv.Itoa(len(out)),
					strconv.Itoa(len(in)),
				})
			}
			ui.Table([]string{"  ID", "Name", "Role", "Model", "Out", "In"}, rows)
			fmt.Printf("\n  %d agents\n", len(nodes))
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print agents as JSON")
	return cmd
}

func agentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "show <agent>",
		Short:             "Show an agent with its relations",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: agentCompletionFunc,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()

			node := s.resolveAgent(args[0])
			out, err := graph.RenderShow(s.store, node.ID,
				func(v string) string { return ui.Brand.Sprint(v) },
				func(v string) string { return ui.Subtle.Sprint(v) },
				func(v string) string { return ui.Info.Sprint(v) },
			)
			if err != nil {
				fail("%v", err)
			}
			fmt.Println()
			fmt.Print(out)
			fmt.Println()
		},
	}
}
