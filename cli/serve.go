package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nse-screener/api"
	"nse-screener/models"
	"nse-screener/search"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the screener web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				o.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.serve(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func (o *rootOptions) serve(ctx context.Context) error {
	gw := o.newGateway()
	catalog := o.loadCatalog(ctx, gw, "")
	o.logger.Info("equity list loaded", "status", catalog.Status(), "records", len(catalog.Records()))

	var engine search.SearchEngine
	if be, err := search.NewBleveEngine(catalog.Records(), o.logger); err != nil {
		o.logger.Warn("search index unavailable, using in-memory search", "err", err)
		engine = search.NewInMemoryEngine(catalog.Records())
	} else {
		defer be.Close()
		engine = be
	}

	unsubscribe := catalog.Subscribe(func(records []models.EquityRecord) {
		if err := engine.Rebuild(records); err != nil {
			o.logger.Warn("search index rebuild failed", "err", err)
		}
	})
	defer unsubscribe()

	if err := catalog.StartRefresh(ctx, o.cfg.Data.RefreshCron); err != nil {
		return err
	}
	defer catalog.Stop()

	handler := api.NewHandler(engine, catalog, gw, api.Options{
		PageSize:   o.cfg.View.PageSize,
		ChartWidth: o.cfg.Chart.Width,
		Logger:     o.logger,
	})
	return api.NewServer(handler, o.cfg.Server).ListenAndServe(ctx)
}
