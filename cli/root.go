// Package cli is the screener command line: the web server plus one-shot
// terminal commands over the same data pipeline.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"nse-screener/config"
	"nse-screener/gateway"
	"nse-screener/logging"
	"nse-screener/session"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootOptions is shared by every subcommand. cfg and logger are filled in
// before any command runs.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "screener",
		Short: "NSE equity screener",
		Long: `Browse, filter and chart NSE-listed equities.

Serves the browser screener, or prints tables, quotes and charts straight
to the terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if o.logLevel != "" {
				cfg.Logging.Level = o.logLevel
			}
			o.cfg = cfg
			o.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
			slog.SetDefault(o.logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "config file path (default: ./config/screener.yaml)")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(o),
		newListCmd(o),
		newChartCmd(o),
		newQuoteCmd(o),
		newExportCmd(o),
		newConfigCmd(o),
		newVersionCmd(),
	)
	return cmd
}

// newGateway builds the data gateway the configuration asks for.
func (o *rootOptions) newGateway() *gateway.Gateway {
	gc := o.cfg.Gateway

	var src gateway.Source
	if gc.Mode == config.ModeProxy {
		src = gateway.NewProxy(gc.ProxyURL, &http.Client{})
	} else {
		src = gateway.NewUpstream(gateway.UpstreamConfig{
			ChartHosts:    gc.ChartHosts,
			EquityListURL: gc.EquityListURL,
			UserAgent:     gc.UserAgent,
		})
	}

	opts := gateway.Options{
		Timeout:     gc.Timeout,
		ListTimeout: gc.ListTimeout,
		Logger:      o.logger,
	}
	if gc.QuoteFallback {
		opts.Fallback = gateway.NewFinanceGo()
	}
	return gateway.New(src, opts)
}

// loadCatalog fetches the equity list once. With file set, the file is the
// only source.
func (o *rootOptions) loadCatalog(ctx context.Context, gw *gateway.Gateway, file string) *session.Catalog {
	opts := session.CatalogOptions{FallbackCSV: o.cfg.Data.FallbackCSV, Logger: o.logger}
	var src session.EquityLister = gw
	if file != "" {
		src = nil
		opts.FallbackCSV = file
	}
	c := session.NewCatalog(src, opts)
	c.Reload(ctx)
	return c
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "screener %s\n", version)
			fmt.Fprintf(out, "  commit:  %s\n", commit)
			fmt.Fprintf(out, "  built:   %s\n", date)
		},
	}
}

func newConfigCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := o.cfg.YAML()
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
