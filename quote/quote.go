// Package quote decodes Yahoo Finance quoteSummary payloads into the detail
// view's price header, fundamentals grid and analyst block.
package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"nse-screener/format"
	"nse-screener/models"
)

// ErrNoData means the payload carried no usable price. A missing module or
// field anywhere else only blanks the affected cells.
var ErrNoData = errors.New("quote: no price data")

// Modules is the quoteSummary module list requested upstream.
const Modules = "price,summaryDetail,financialData,defaultKeyStatistics,recommendationTrend"

// Source names which upstream shape a Quote came from.
const (
	SourceSummary = "quoteSummary"
	SourcePrice   = "quote"
)

// FundamentalLabels is the fixed order of the fundamentals grid.
var FundamentalLabels = []string{
	"P/E Ratio", "Forward P/E", "P/B Ratio", "EPS (TTM)", "ROE", "ROA",
	"Revenue", "Net Income", "Profit Margin", "Gross Margin", "Debt/Equity",
	"Current Ratio", "Div Yield", "Beta", "Avg Volume",
}

// --- Yahoo Finance v10 quoteSummary payload ---

// value is Yahoo's {"raw": 1.23, "fmt": "1.23"} wrapper. Absent values come
// back as {} or are omitted entirely.
type value struct {
	Raw *float64 `json:"raw"`
}

func (v *value) get() *float64 {
	if v == nil || v.Raw == nil || math.IsNaN(*v.Raw) {
		return nil
	}
	return v.Raw
}

// num treats absent and zero alike.
func (v *value) num() float64 {
	if p := v.get(); p != nil {
		return *p
	}
	return 0
}

type Response struct {
	QuoteSummary struct {
		Result []Result `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

type Result struct {
	Price                *priceModule       `json:"price"`
	SummaryDetail        *summaryDetail     `json:"summaryDetail"`
	FinancialData        *financialData     `json:"financialData"`
	DefaultKeyStatistics *keyStatistics     `json:"defaultKeyStatistics"`
	RecommendationTrend  *recommendationSet `json:"recommendationTrend"`
}

type priceModule struct {
	Symbol                     string `json:"symbol"`
	Sector                     string `json:"sector"`
	RegularMarketPrice         *value `json:"regularMarketPrice"`
	RegularMarketPreviousClose *value `json:"regularMarketPreviousClose"`
	RegularMarketOpen          *value `json:"regularMarketOpen"`
	RegularMarketDayHigh       *value `json:"regularMarketDayHigh"`
	RegularMarketDayLow        *value `json:"regularMarketDayLow"`
	RegularMarketVolume        *value `json:"regularMarketVolume"`
	MarketCap                  *value `json:"marketCap"`
}

type summaryDetail struct {
	TrailingPE       *value `json:"trailingPE"`
	ForwardPE        *value `json:"forwardPE"`
	DividendYield    *value `json:"dividendYield"`
	Beta             *value `json:"beta"`
	AverageVolume    *value `json:"averageVolume"`
	FiftyTwoWeekHigh *value `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  *value `json:"fiftyTwoWeekLow"`
}

type financialData struct {
	ReturnOnEquity    *value `json:"returnOnEquity"`
	ReturnOnAssets    *value `json:"returnOnAssets"`
	TotalRevenue      *value `json:"totalRevenue"`
	NetIncomeToCommon *value `json:"netIncomeToCommon"`
	ProfitMargins     *value `json:"profitMargins"`
	GrossMargins      *value `json:"grossMargins"`
	DebtToEquity      *value `json:"debtToEquity"`
	CurrentRatio      *value `json:"currentRatio"`
	TargetMeanPrice   *value `json:"targetMeanPrice"`
}

type keyStatistics struct {
	PriceToBook      *value `json:"priceToBook"`
	TrailingEps      *value `json:"trailingEps"`
	FiftyTwoWeekHigh *value `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  *value `json:"fiftyTwoWeekLow"`
}

type recommendationSet struct {
	Trend []struct {
		Period     string `json:"period"`
		StrongBuy  int    `json:"strongBuy"`
		Buy        int    `json:"buy"`
		Hold       int    `json:"hold"`
		Sell       int    `json:"sell"`
		StrongSell int    `json:"strongSell"`
	} `json:"trend"`
}

// Decode parses a raw quoteSummary payload.
func Decode(symbol string, data []byte) (*models.Quote, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	return FromResponse(symbol, resp)
}

// FromResponse builds the detail view's quote. Only the current price is
// required; every other field degrades to a blank cell.
func FromResponse(symbol string, resp Response) (*models.Quote, error) {
	if e := resp.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, ErrNoData
	}
	res := resp.QuoteSummary.Result[0]
	pr := res.Price
	if pr == nil || pr.RegularMarketPrice.num() == 0 {
		return nil, ErrNoData
	}

	sd := res.SummaryDetail
	if sd == nil {
		sd = &summaryDetail{}
	}
	fd := res.FinancialData
	if fd == nil {
		fd = &financialData{}
	}
	ks := res.DefaultKeyStatistics
	if ks == nil {
		ks = &keyStatistics{}
	}

	price := pr.RegularMarketPrice.num()
	prev := pr.RegularMarketPreviousClose.num()
	if prev == 0 {
		prev = price
	}

	q := &models.Quote{
		Symbol:        strings.TrimSuffix(symbol, ".NS"),
		Price:         price,
		PreviousClose: prev,
		Change:        price - prev,
		ChangePct:     (price - prev) / prev * 100,
		Open:          pr.RegularMarketOpen.num(),
		DayHigh:       pr.RegularMarketDayHigh.num(),
		DayLow:        pr.RegularMarketDayLow.num(),
		Volume:        int64(pr.RegularMarketVolume.num()),
		MarketCap:     pr.MarketCap.num(),
		Sector:        pr.Sector,
		Beta:          sd.Beta.num(),
		Source:        SourceSummary,
	}

	hi := firstNonZero(ks.FiftyTwoWeekHigh.num(), sd.FiftyTwoWeekHigh.num())
	lo := firstNonZero(ks.FiftyTwoWeekLow.num(), sd.FiftyTwoWeekLow.num())
	if hi != 0 && lo != 0 {
		q.WeekHigh52, q.WeekLow52 = hi, lo
		q.Position52 = BandPosition(price, lo, hi)
	}

	q.Fundamentals = fundamentals(sd, fd, ks)

	if rt := res.RecommendationTrend; rt != nil && len(rt.Trend) > 0 {
		t := rt.Trend[0]
		a := &models.AnalystTrend{
			Buy:  t.StrongBuy + t.Buy,
			Hold: t.Hold,
			Sell: t.Sell + t.StrongSell,
		}
		if tgt := fd.TargetMeanPrice.num(); tgt != 0 {
			a.TargetPrice = tgt
			a.UpsidePct = (tgt - price) / price * 100
		}
		q.Analyst = a
	}

	return q, nil
}

func firstNonZero(vals ...float64) float64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// BandPosition is where price sits in [lo, hi] as a percentage, clamped to
// 0-100. A degenerate band reports 0.
func BandPosition(price, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return math.Min(100, math.Max(0, (price-lo)/(hi-lo)*100))
}

func fundamentals(sd *summaryDetail, fd *financialData, ks *keyStatistics) []models.Fundamental {
	rupees := func(v *value, render func(float64) string) string {
		if n := v.num(); n != 0 {
			return "₹" + render(n)
		}
		return format.Missing
	}
	eps := func(n float64) string { return format.Ratio(&n) }

	values := []string{
		format.Ratio(sd.TrailingPE.get()),
		format.Ratio(sd.ForwardPE.get()),
		format.Ratio(ks.PriceToBook.get()),
		rupees(ks.TrailingEps, eps),
		format.Percent(fd.ReturnOnEquity.get()),
		format.Percent(fd.ReturnOnAssets.get()),
		rupees(fd.TotalRevenue, format.Amount),
		rupees(fd.NetIncomeToCommon, format.Amount),
		format.Percent(fd.ProfitMargins.get()),
		format.Percent(fd.GrossMargins.get()),
		format.Ratio(fd.DebtToEquity.get()),
		format.Ratio(fd.CurrentRatio.get()),
		dividendYield(sd.DividendYield),
		format.Ratio(sd.Beta.get()),
		format.Volume(int64(sd.AverageVolume.num())),
	}

	out := make([]models.Fundamental, len(FundamentalLabels))
	for i, label := range FundamentalLabels {
		out[i] = models.Fundamental{Label: label, Value: values[i]}
	}
	return out
}

func dividendYield(v *value) string {
	if v.num() == 0 {
		return format.Missing
	}
	return format.Percent(v.get())
}

// BlankFundamentals returns the grid with every cell missing, for quotes that
// carry a price only.
func BlankFundamentals() []models.Fundamental {
	out := make([]models.Fundamental, len(FundamentalLabels))
	for i, label := range FundamentalLabels {
		out[i] = models.Fundamental{Label: label, Value: format.Missing}
	}
	return out
}
