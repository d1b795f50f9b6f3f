package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
	"vendorsync/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard views as JSON over HTTP",
	Long: `Start an HTTP server exposing every dashboard view under /api, plus
/healthz and Prometheus metrics on /metrics. Data is loaded from the vendor
API on the first request and reloaded by POST /api/refresh or, with
--refresh-every, on a timer.

The server runs until interrupted; --timeout does not apply.`,
	Example: `  vendorsync serve
  vendorsync serve --addr :9090 --refresh-every 5m`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from SERVER_ADDR)")
	serveCmd.Flags().Duration("refresh-every", 0, "Reload data from the API at this interval (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")
	addr, _ := cmd.Flags().GetString("addr")
	every, _ := cmd.Flags().GetDuration("refresh-every")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr == "" {
		addr = a.cfg.ServerAddr
	}

	if every > 0 {
		go refreshLoop(ctx, a, every)
	}

	log.Info().
		Str("addr", addr).
		Str("api_base", a.client.BaseURL()).
		Dur("refresh_every", every).
		Msg("Starting JSON server")

	return server.New(a.svc, a.metrics).Run(ctx, addr)
}

// refreshLoop reloads the dashboard until ctx is done. A failed reload is
// logged and retried by the next API request.
func refreshLoop(ctx context.Context, a *app, every time.Duration) {
	log := logger.WithComponent("serve")
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.svc.Refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("Scheduled refresh failed")
				continue
			}
			log.Debug().Msg("Scheduled refresh completed")
		}
	}
}
