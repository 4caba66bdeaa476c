package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/codec"
	"github.com/agentkernel/society/internal/editor"
	"github.com/agentkernel/society/internal/hooks"
	"github.com/agentkernel/society/internal/ui"
)

func exportCmd() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the graph document to a file or stdout",
		Long: `Serialize the graph as a versioned document and mark the session clean.

  society export                     # JSON to stdout
  society export -o team.yaml        # format from the extension
  society export --format dot        # Graphviz, does not mark clean`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if format == "" {
				format = formatFromPath(output)
			}
			format = strings.ToLower(format)

			s := openSession(sessionOptions{})
			defer s.close()

			w := io.Writer(os.Stdout)
			var buf bytes.Buffer
			if output != "" {
				w = &buf
			}

			if format == "dot" {
				fmt.Fprint(w, s.store.ExportDOT())
			} else {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if _, err := s.ctl.Export(ctx, w, editor.Format(format)); err != nil {
					fail("Export failed: %v", err)
				}
			}

			st := s.store.Stats()
			if output == "" {
				runHook(hooks.Event{Phase: hooks.PostExport, ConfigName: s.ctl.ConfigName(), Target: "stdout",
					Agents: st.Agents, Relations: st.Relations})
				return
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				fail("Failed to write %s: %v", output, err)
			}
			logActivity("export", output, format)
			runHook(hooks.Event{Phase: hooks.PostExport, ConfigName: s.ctl.ConfigName(), Target: output,
				Agents: st.Agents, Relations: st.Relations})
			ui.Good.Printf("  %s Exported %d agents and %d relations to %s\n",
				ui.StatusIcon(true), st.Agents, st.Relations, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "json, yaml or dot (default from the file extension, else json)")
	return cmd
}

func formatFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return string(editor.FormatYAML)
	case strings.HasSuffix(path, ".dot"), strings.HasSuffix(path, ".gv"):
		return "dot"
	}
	return string(editor.FormatJSON)
}

func saveCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the graph document to the control panel",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s := openSession(sessionOptions{configName: name})
			defer s.close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			doc, err := s.ctl.Save(ctx)
			if err != nil {
				logActivity("save.failed", s.ctl.ConfigName(), err.Error())
				fail("%v", err)
			}
			logActivity("save", s.ctl.ConfigName(), fmt.Sprintf("%d agents", len(doc.Agents)))
			runHook(hooks.Event{Phase: hooks.PostSave, ConfigName: s.ctl.ConfigName(), Target: s.ctl.ConfigName(),
				Agents: len(doc.Agents), Relations: len(doc.Relations)})
			ui.Good.Printf("  %s Saved %s %s\n", ui.StatusIcon(true), ui.Brand.Sprint(s.ctl.ConfigName()),
				ui.Subtle.Sprintf("(%d agents, %d relations)", len(doc.Agents), len(doc.Relations)))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Config name (default from config)")
	return cmd
}

func importCmd() *cobra.Command {
	var (
		repair    bool
		fromNeo4j bool
	)

	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Replace the graph with a JSON or YAML document",
		Long: `Replace the graph with a document. Invalid documents change nothing.

  society import team.json
  cat team.yaml | society import -
  society import broken.json --repair   # fix trailing commas, quotes, ...
  society import --from-neo4j           # read back what publish wrote`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var (
				data   []byte
				source string
				err    error
			)
			switch {
			case fromNeo4j:
				source = "neo4j"
				data, err = fetchFromNeo4j(ctx)
			case len(args) == 0 || args[0] == "-":
				source = "stdin"
				data, err = io.ReadAll(os.Stdin)
			default:
				source = args[0]
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				fail("Failed to read %s: %v", source, err)
			}

			if repair {
				fixed, rerr := jsonrepair.JSONRepair(string(data))
				if rerr != nil {
					fail("Could not repair %s: %v", source, rerr)
				}
				data = []byte(fixed)
			}

			s := openSession(sessionOptions{})
			defer s.close()

			doc, err := s.ctl.Import(ctx, bytes.NewReader(data))
			if err != nil {
				fail("Import failed: %v", err)
			}
			logActivity("import", source, fmt.Sprintf("%d agents", len(doc.Agents)))
			runHook(hooks.Event{Phase: hooks.PostImport, ConfigName: s.ctl.ConfigName(), Target: source,
				Agents: len(doc.Agents), Relations: len(doc.Relations)})
			ui.Good.Printf("  %s Imported %d agents and %d relations from %s\n",
				ui.StatusIcon(true), len(doc.Agents), len(doc.Relations), source)
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Repair malformed JSON before parsing")
	cmd.Flags().BoolVar(&fromNeo4j, "from-neo4j", false, "Read the graph from the configured Neo4j database")
	return cmd
}

func fetchFromNeo4j(ctx context.Context) ([]byte, error) {
	exec, pub, err := openPublisher(ctx)
	if err != nil {
		return nil, err
	}
	defer exec.Close(ctx)

	doc, err := pub.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return codec.EncodeJSON(doc)
}
