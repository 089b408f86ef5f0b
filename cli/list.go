package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"nse-screener/format"
	"nse-screener/screener"
	"nse-screener/session"
)

type listOptions struct {
	series string
	query  string
	sort   string
	desc   bool
	page   int
	size   int
	file   string
}

func (l listOptions) view(defaultSize int) screener.ViewState {
	v := screener.DefaultView(defaultSize)
	if l.series != "" {
		v.Series = l.series
	}
	v.Query = l.query
	v.SortKey = screener.ParseSortKey(l.sort)
	if l.desc {
		v.SortDir = -1
	}
	if l.size > 0 {
		v.PageSize = l.size
	}
	return v
}

func (l *listOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&l.series, "series", "s", screener.AllSeries, "series filter (EQ, BE, SM, ...)")
	f.StringVarP(&l.query, "query", "q", "", "search symbol, name or ISIN")
	f.StringVar(&l.sort, "sort", "symbol", "sort key: symbol, name, date, faceValue")
	f.BoolVar(&l.desc, "desc", false, "sort descending")
	f.StringVar(&l.file, "file", "", "read the equity list from a CSV file instead of the network")
}

func newListCmd(o *rootOptions) *cobra.Command {
	l := listOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of the filtered equity list",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := o.loadCatalog(cmd.Context(), o.newGateway(), l.file)
			if catalog.Status() == session.StatusError {
				return fmt.Errorf("equity list unavailable: %s", catalog.Info().Error)
			}

			st := screener.NewState(catalog.Records(), o.cfg.View.PageSize)
			v := l.view(o.cfg.View.PageSize)
			st.SetSeries(v.Series)
			st.SetQuery(v.Query)
			st.SetSort(v.SortKey, v.SortDir)
			st.SetPageSize(v.PageSize)
			if l.page != 1 && !st.GoPage(l.page) {
				return fmt.Errorf("page %d out of range 1..%d", l.page, st.Pages())
			}

			renderTable(cmd.OutOrStdout(), st.Snapshot(), catalog.Info())
			return nil
		},
	}
	l.bind(cmd)
	cmd.Flags().IntVar(&l.page, "page", 1, "page number")
	cmd.Flags().IntVar(&l.size, "size", 0, "rows per page (default view.page_size)")
	return cmd
}

func renderTable(w io.Writer, t screener.Table, info session.Info) {
	o := info.Overview
	fmt.Fprintf(w, "%s list · %s stocks · EQ %s · BE %s · SME %s · other %s\n",
		info.Status, format.Count(o.Total), format.Count(o.EQ), format.Count(o.BE),
		format.Count(o.SME), format.Count(o.Other))

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(table.Row{"#", "Symbol", "Name", "Series", "Listed", "Face Value", "ISIN", "Lot", "Paid-Up"})
	for _, r := range t.Rows {
		tw.AppendRow(table.Row{
			r.Number, r.Symbol, r.Name, r.Series,
			format.ListingDate(r.ListedDate),
			format.INR(r.FaceValue, 2),
			r.ISIN,
			format.Lot(r.MarketLot),
			format.Compact(r.PaidUpCapital),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})
	if t.Matched == 0 {
		tw.AppendFooter(table.Row{"", "No stocks match"})
	} else {
		tw.AppendFooter(table.Row{"", fmt.Sprintf("%d–%d of %s", t.Start, t.End, format.Count(t.Matched)),
			fmt.Sprintf("page %d/%d", t.View.Page, t.Pages)})
	}
	tw.Render()
}
