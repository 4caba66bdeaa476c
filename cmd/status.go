package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/graph"
	"github.com/agentkernel/society/internal/ui"
)

func statusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show graph counts, selection and session state",
		Aliases: []string{"st", "stats"},
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{})
			defer s.close()

			st := s.store.Stats()
			if jsonOut {
				out := struct {
					graph.Stats
					Selection graph.Selection `json:"selection"`
					State     string          `json:"state"`
					Config    string          `json:"config_name"`
				}{st, s.store.Selection(), string(s.ctl.State()), s.ctl.ConfigName()}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(out)
				return
			}

			ui.Banner("status")
			fmt.Printf("  %-12s %s\n", "Workspace", ui.Subtle.Sprint(s.path))
			fmt.Printf("  %-12s %s\n", "Config", s.ctl.ConfigName())
			fmt.Printf("  %-12s %s\n", "Session", ui.Session(s.store.IsDirty()))
			fmt.Printf("  %-12s %d\n", "Agents", st.Agents)
			fmt.Printf("  %-12s %d %s\n", "Relations", st.Relations,
				ui.Subtle.Sprintf("(%d positive, %d negative, %d self)", st.Positive, st.Negative, st.SelfLoops))
			fmt.Print("  Selection    ")
			printSelection(s)

			if len(st.Roles) > 0 {
				fmt.Println("\n  By role:")
				for _, k := range sortedKeys(st.Roles) {
					fmt.Printf("    %-20s %d\n", ui.Role(k), st.Roles[k])
				}
			}
			if len(st.RelationTypes) > 0 {
				fmt.Println("\n  By relation type:")
				for _, k := range sortedKeys(st.RelationTypes) {
					fmt.Printf("    %-20s %d\n", k, st.RelationTypes[k])
				}
			}
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print status as JSON")
	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
