package main

import (
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/sawpanic/crewrun/internal/interfaces/http"
	"github.com/sawpanic/crewrun/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and change feed",
	Long: `Serve the JSON API, XLSX exports, /metrics, /health and the /ws/events
change feed. With --watch the data directory is watched and edits made by
other tools are announced as external changes.`,
	RunE: runServe,
}

var (
	serveHost  string
	servePort  int
	serveWatch bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Watch the data directory for external edits")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	return withApp(ctx, true, func(a *app) error {
		sc := httpapi.DefaultServerConfig()
		sc.Host = a.cfg.Server.Host
		sc.Port = a.cfg.Server.Port
		if serveHost != "" {
			sc.Host = serveHost
		}
		if servePort != 0 {
			sc.Port = servePort
		}
		if a.cfg.Server.ReadTimeout > 0 {
			sc.ReadTimeout = a.cfg.Server.ReadTimeout
		}
		if a.cfg.Server.WriteTimeout > 0 {
			sc.WriteTimeout = a.cfg.Server.WriteTimeout
		}
		sc.RequestTimeout = a.cfg.Server.RequestTimeout
		sc.MaxUploadBytes = a.cfg.Server.MaxUploadBytes

		metrics := httpapi.NewMetricsRegistry()
		health := httpapi.NewHealthHandler(a.svc, version).WithMirror(a.mirror.Health())
		if a.remote != nil {
			health.WithRemote(a.remote)
		}
		srv := httpapi.NewServer(sc, a.svc, metrics, nil, health)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(ctx) })

		if serveWatch || a.cfg.Server.Watch {
			paths := a.svc.Store().Paths()
			names := make([]string, len(paths))
			for i, p := range paths {
				names[i] = filepath.Base(p)
			}
			w := watch.New(a.svc.Store().Dir, names, a.svc.ExternalChange)
			g.Go(func() error { return w.Run(ctx) })
		}

		log.Info().Str("addr", srv.Address()).Str("version", version).Msg("crewrun serving")
		return g.Wait()
	})
}
