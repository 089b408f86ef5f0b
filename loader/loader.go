package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"nse-screener/models"
)

// ErrNoSymbolColumn is returned when the header has no column that looks
// like a symbol. The record set is empty and callers should fall back.
var ErrNoSymbolColumn = errors.New("loader: no symbol column in header")

type field int

const (
	fieldSymbol field = iota
	fieldName
	fieldSeries
	fieldListedDate
	fieldFaceValue
	fieldISIN
	fieldPaidUp
	fieldMarketLot
	numFields
)

// headerRules lists, per field, the keyword predicates tried against each
// normalized header name. The first header that satisfies any predicate wins.
var headerRules = [numFields][]func(h string) bool{
	fieldSymbol:     {contains("SYMBOL")},
	fieldName:       {contains("NAME"), contains("COMPANY")},
	fieldSeries:     {contains("SERIES")},
	fieldListedDate: {func(h string) bool { return strings.Contains(h, "DATE") && strings.Contains(h, "LIST") }},
	fieldFaceValue:  {contains("FACE")},
	fieldISIN:       {contains("ISIN")},
	fieldPaidUp:     {contains("PAID")},
	fieldMarketLot:  {contains("LOT"), contains("MARKET")},
}

func contains(keyword string) func(string) bool {
	return func(h string) bool { return strings.Contains(h, keyword) }
}

// columns maps each field to its index in a data line, -1 when absent.
type columns [numFields]int

func resolveColumns(header []string) columns {
	var cols columns
	for f := range cols {
		cols[f] = -1
	}
	for f, rules := range headerRules {
	scan:
		for i, h := range header {
			h = strings.ToUpper(strings.TrimSpace(h))
			for _, match := range rules {
				if match(h) {
					cols[f] = i
					break scan
				}
			}
		}
	}
	return cols
}

func (c columns) get(values []string, f field) string {
	i := c[f]
	if i < 0 || i >= len(values) {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(values[i], `"`, ""))
}

// SplitLine splits one delimited line on commas that are not inside double
// quotes. Quote characters are dropped from the emitted fields and each
// field is trimmed.
func SplitLine(line string) []string {
	var (
		out []string
		cur strings.Builder
		inQ bool
	)
	for _, ch := range line {
		switch {
		case ch == '"':
			inQ = !inQ
		case ch == ',' && !inQ:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(ch)
		}
	}
	return append(out, strings.TrimSpace(cur.String()))
}

// ParseEquityCSV turns the raw equity list into records. The first non-empty
// line is the header; columns are located by keyword so renamed or reordered
// source columns still parse. Lines whose symbol resolves to empty are
// skipped.
func ParseEquityCSV(text string) ([]models.EquityRecord, error) {
	lines := strings.Split(text, "\n")

	headerAt := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return []models.EquityRecord{}, ErrNoSymbolColumn
	}

	cols := resolveColumns(SplitLine(strings.TrimRight(lines[headerAt], "\r")))
	if cols[fieldSymbol] < 0 {
		return []models.EquityRecord{}, ErrNoSymbolColumn
	}

	records := make([]models.EquityRecord, 0, len(lines)-headerAt-1)
	for _, raw := range lines[headerAt+1:] {
		raw = strings.TrimRight(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		values := SplitLine(raw)

		symbol := cols.get(values, fieldSymbol)
		if symbol == "" {
			continue
		}
		name := cols.get(values, fieldName)
		if name == "" {
			name = symbol
		}

		records = append(records, models.EquityRecord{
			Symbol:        symbol,
			Name:          name,
			Series:        strings.ToUpper(cols.get(values, fieldSeries)),
			ListedDate:    cols.get(values, fieldListedDate),
			FaceValue:     parseNumber(cols.get(values, fieldFaceValue)),
			ISIN:          cols.get(values, fieldISIN),
			PaidUpCapital: parseNumber(cols.get(values, fieldPaidUp)),
			MarketLot:     parseLot(cols.get(values, fieldMarketLot)),
		})
	}
	return records, nil
}

// parseNumber falls back to 0 for anything that is not a finite number.
func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// parseLot falls back to 1; a lot below 1 is never valid.
func parseLot(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		f := parseNumber(s)
		if f < 1 || f > math.MaxInt32 {
			return 1
		}
		n = int(f)
	}
	if n < 1 {
		return 1
	}
	return n
}

// LoadEquityReader parses an equity list from r.
func LoadEquityReader(r io.Reader) ([]models.EquityRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read equity list: %w", err)
	}
	return ParseEquityCSV(string(data))
}

// LoadEquityFile parses the equity list stored at filePath.
func LoadEquityFile(filePath string) ([]models.EquityRecord, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadEquityReader(f)
}

// ExportHeader is the header row written by WriteEquityCSV.
var ExportHeader = []string{"Symbol", "Name", "Series", "Listed Date", "Face Value", "ISIN", "Market Lot", "Paid-Up Capital"}

// WriteEquityCSV writes records in export order. The output parses back with
// ParseEquityCSV.
func WriteEquityCSV(w io.Writer, records []models.EquityRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Symbol,
			r.Name,
			r.Series,
			r.ListedDate,
			strconv.FormatFloat(r.FaceValue, 'f', -1, 64),
			r.ISIN,
			strconv.Itoa(r.MarketLot),
			strconv.FormatFloat(r.PaidUpCapital, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
