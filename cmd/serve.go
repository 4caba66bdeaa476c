package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/agentkernel/society/internal/logging"
	"github.com/agentkernel/society/internal/server"
	"github.com/agentkernel/society/internal/ui"
)

func serveCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the editor over HTTP with a live event stream",
		Long: `Start the editor API. Every successful change is written back to the
workspace, and /api/events streams changes to websocket clients.

  society serve
  society serve --port 9000
  curl localhost:8090/api/graph`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if port == 0 {
				port = cfg.Server.Port
			}
			log := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

			s := openSession(sessionOptions{logger: log})
			defer s.close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			srv := server.New(server.Options{
				Controller: s.ctl,
				Logger:     log,
				Registry:   reg,
				CORSOrigin: cfg.Server.CORSOrigin,
				Persist:    s.persist,
				Version:    version,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := fmt.Sprintf("%s:%d", host, port)
			fmt.Printf("  %s %s editor api on %s\n", ui.Mark, ui.Brand.Sprint("society"), ui.Info.Sprintf("http://%s", displayAddr(host, port)))
			logActivity("serve", addr, "")
			if err := srv.Run(ctx, addr); err != nil {
				fail("%v", err)
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port (default from config)")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Listen address")
	return cmd
}

func displayAddr(host string, port int) string {
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, port)
}
