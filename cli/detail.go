package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"nse-screener/chart"
	"nse-screener/format"
	"nse-screener/loader"
	"nse-screener/models"
	"nse-screener/quote"
	"nse-screener/screener"
	"nse-screener/session"
)

func newChartCmd(o *rootOptions) *cobra.Command {
	var (
		rng    string
		width  int
		out    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "chart SYMBOL",
		Short: "Render a candlestick chart as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 {
				width = o.cfg.Chart.Width
			}
			r := models.ParseRange(rng)
			points, err := o.newGateway().Chart(cmd.Context(), args[0], r)
			if err != nil {
				o.logger.Warn("chart unavailable", "symbol", args[0], "range", r, "err", err)
			}
			panel := session.NewChartPanel(&models.ChartSession{Symbol: args[0], Range: r, Points: points}, width)

			var data []byte
			if asJSON {
				if data, err = json.MarshalIndent(panel, "", "  "); err != nil {
					return err
				}
			} else {
				data = []byte(chart.EncodeSVG(*panel.Scene))
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %s\n", args[0], r, panelStatus(panel))
			return nil
		},
	}
	cmd.Flags().StringVarP(&rng, "range", "r", string(models.DefaultRange), "range: 1mo, 3mo, 6mo, 1y, 2y, 5y")
	cmd.Flags().IntVarP(&width, "width", "w", 0, "chart width in pixels (default chart.width)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the draw commands as JSON instead of SVG")
	return cmd
}

func panelStatus(p *session.ChartPanel) string {
	if p.State == session.PanelOK {
		return p.Status
	}
	return chart.UnavailableMsg
}

func newQuoteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Print the price header and fundamentals for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := o.newGateway().Quote(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("no quote data for %s: %w", args[0], err)
			}
			renderQuote(cmd, session.NewQuotePanel(args[0], q))
			return nil
		},
	}
}

func renderQuote(cmd *cobra.Command, p *session.QuotePanel) {
	w := cmd.OutOrStdout()
	q := p.Quote
	fmt.Fprintf(w, "%s  %s  %s\n", p.Symbol, p.Price, p.Change)
	if p.Stats != "" {
		fmt.Fprintln(w, p.Stats)
	}
	if p.MarketCap != "" {
		fmt.Fprintf(w, "MC %s", p.MarketCap)
		if q.Sector != "" {
			fmt.Fprintf(w, " · %s", q.Sector)
		}
		fmt.Fprintln(w)
	}
	if q.WeekHigh52 > 0 {
		fmt.Fprintf(w, "52W %s – %s (%.0f%%)\n", format.INR(q.WeekLow52, 2), format.INR(q.WeekHigh52, 2), q.Position52)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Fundamental", "Value"})
	for _, f := range q.Fundamentals {
		tw.AppendRow(table.Row{f.Label, f.Value})
	}
	tw.Render()

	if a := q.Analyst; a != nil {
		fmt.Fprintf(w, "Analysts: %d buy · %d hold · %d sell", a.Buy, a.Hold, a.Sell)
		if a.TargetPrice > 0 {
			fmt.Fprintf(w, " · target %s (%s%%)", format.INR(a.TargetPrice, 2), format.Signed(a.UpsidePct, 1))
		}
		fmt.Fprintln(w)
	}
	if q.Source == quote.SourcePrice {
		fmt.Fprintln(w, "(price-only quote)")
	}
}

func newExportCmd(o *rootOptions) *cobra.Command {
	l := listOptions{}
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered equity list as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := o.loadCatalog(cmd.Context(), o.newGateway(), l.file)
			if catalog.Status() == session.StatusError {
				return fmt.Errorf("equity list unavailable: %s", catalog.Info().Error)
			}
			filtered := screener.Apply(catalog.Records(), l.view(o.cfg.View.PageSize))

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := loader.WriteEquityCSV(w, filtered); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records to %s\n", len(filtered), out)
			}
			return nil
		},
	}
	l.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
