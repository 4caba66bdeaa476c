package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/graphdb"
	"github.com/agentkernel/society/internal/hooks"
	"github.com/agentkernel/society/internal/parallel"
	"github.com/agentkernel/society/internal/simdata"
	"github.com/agentkernel/society/internal/ui"
)

func publishCmd() *cobra.Command {
	var (
		toPanel   bool
		simDir    string
		toNeo4j   bool
		prune     bool
		timeoutS  int
		configArg string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the graph to the panel, simulation data files and Neo4j in parallel",
		Long: `Fan the current document out to one or more targets at once.

  society publish                          # panel, plus publish.simdata_dir if set
  society publish --simdata ./sim          # profiles, nodes, edges and config
  society publish --panel --neo4j --prune  # several targets in parallel`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if !toPanel && simDir == "" && !toNeo4j {
				toPanel = true
				simDir = cfg.Publish.SimDataDir
			}

			s := openSession(sessionOptions{configName: configArg})
			defer s.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutS)*time.Second)
			defer cancel()

			doc := s.ctl.Document()
			var tasks []parallel.Task

			if toPanel {
				tasks = append(tasks, parallel.Task{
					Name: "panel",
					Fn: func(ctx context.Context) (string, error) {
						saved, err := s.ctl.Save(ctx)
						if err != nil {
							return "", err
						}
						return fmt.Sprintf("%s (%d agents)", s.ctl.ConfigName(), len(saved.Agents)), nil
					},
				})
			}

			if simDir != "" {
				tasks = append(tasks, parallel.Task{
					Name: "simdata",
					Fn: func(ctx context.Context) (string, error) {
						w, err := simdata.Write(ctx, simDir, doc)
						if err != nil {
							return "", err
						}
						return fmt.Sprintf("%d files in %s", len(w.Files), simDir), nil
					},
				})
			}

			if toNeo4j {
				tasks = append(tasks, parallel.Task{
					Name: "neo4j",
					Fn: func(ctx context.Context) (string, error) {
						exec, pub, err := openPublisher(ctx)
						if err != nil {
							return "", err
						}
						defer exec.Close(ctx)

						res, err := pub.Publish(ctx, doc, graphdb.PublishOptions{Prune: prune})
						if err != nil {
							return "", err
						}
						summary := fmt.Sprintf("%d agents, %d relations", res.Agents, res.Relations)
						if prune {
							summary += fmt.Sprintf(", %d pruned", res.Pruned)
						}
						return summary, nil
					},
				})
			}

			ui.Banner("publish")
			results := parallel.Run(ctx, tasks, cfg.Publish.Concurrency, os.Stdout)
			for _, r := range results {
				if r.OK {
					logActivity("publish", r.Name, r.Summary)
				} else {
					logActivity("publish.failed", r.Name, r.Err.Error())
				}
			}

			if failed := parallel.Failed(results); len(failed) > 0 {
				fmt.Println()
				fail("%d of %d targets failed", len(failed), len(results))
			}
			fmt.Printf("\n  %s Published to %d target(s)\n", ui.StatusIcon(true), len(results))

			names := make([]string, len(results))
			for i, r := range results {
				names[i] = r.Name
			}
			runHook(hooks.Event{Phase: hooks.PostPublish, ConfigName: s.ctl.ConfigName(), Target: strings.Join(names, ","),
				Agents: len(doc.Agents), Relations: len(doc.Relations)})
		},
	}

	cmd.Flags().BoolVar(&toPanel, "panel", false, "Save to the control panel (default when no target is given, together with publish.simdata_dir)")
	cmd.Flags().StringVar(&simDir, "simdata", "", "Write simulation data files to this directory")
	cmd.Flags().BoolVar(&toNeo4j, "neo4j", false, "Publish to the configured Neo4j database")
	cmd.Flags().BoolVar(&prune, "prune", false, "With --neo4j, delete agents that are no longer in the graph")
	cmd.Flags().IntVar(&timeoutS, "timeout", 60, "Overall timeout in seconds")
	cmd.Flags().StringVar(&configArg, "name", "", "Panel config name (default from config)")
	return cmd
}

// openPublisher connects to the configured Neo4j database.
func openPublisher(ctx context.Context) (*graphdb.Executor, *graphdb.Publisher, error) {
	n := loadConfig().Neo4j
	exec, err := graphdb.NewExecutor(n.URI, n.User, n.Password, n.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := exec.Verify(ctx); err != nil {
		exec.Close(ctx)
		return nil, nil, err
	}
	pub, err := graphdb.NewPublisher(exec, n.NodeLabel, n.EdgeLabel)
	if err != nil {
		exec.Close(ctx)
		return nil, nil, err
	}
	return exec, pub, nil
}
