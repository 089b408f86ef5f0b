package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-screener/models"
)

const nseSample = `SYMBOL,NAME OF COMPANY, SERIES, DATE OF LISTING, PAID UP VALUE, MARKET LOT, ISIN NUMBER, FACE VALUE
20MICRONS,20 Microns Limited,EQ,06-OCT-2008,5,1,INE144J01027,5
ADANIPORTS,"Adani Ports and Special Economic Zone, Limited",EQ,27-NOV-2007,2,1,INE742F01042,2
TCS,Tata Consultancy Services Limited,EQ,25-AUG-2004,1,1,INE467B01029,1
`

func TestParseEquityCSVMinimal(t *testing.T) {
	records, err := ParseEquityCSV("SYMBOL,NAME,SERIES\nTCS,Tata Consultancy,EQ\n")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, models.EquityRecord{
		Symbol:    "TCS",
		Name:      "Tata Consultancy",
		Series:    "EQ",
		FaceValue: 0,
		MarketLot: 1,
	}, records[0])
}

func TestParseEquityCSVNSEHeader(t *testing.T) {
	records, err := ParseEquityCSV(nseSample)
	require.NoError(t, err)
	require.Len(t, records, 3)

	r := records[1]
	assert.Equal(t, "ADANIPORTS", r.Symbol)
	assert.Equal(t, "Adani Ports and Special Economic Zone, Limited", r.Name)
	assert.Equal(t, "EQ", r.Series)
	assert.Equal(t, "27-NOV-2007", r.ListedDate)
	assert.Equal(t, 2.0, r.FaceValue)
	assert.Equal(t, 2.0, r.PaidUpCapital)
	assert.Equal(t, 1, r.MarketLot)
	assert.Equal(t, "INE742F01042", r.ISIN)
}

func TestParseEquityCSVReorderedColumns(t *testing.T) {
	text := "isin code,Face Val,Company Name,Trading Symbol,series,Listing Date,Mkt Lot\n" +
		"INE009A01021,5,Infosys Limited,INFY,eq,08-FEB-1995,25\n"

	records, err := ParseEquityCSV(text)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "INFY", r.Symbol)
	assert.Equal(t, "Infosys Limited", r.Name)
	assert.Equal(t, "EQ", r.Series)
	assert.Equal(t, "08-FEB-1995", r.ListedDate)
	assert.Equal(t, 5.0, r.FaceValue)
	assert.Equal(t, "INE009A01021", r.ISIN)
	assert.Equal(t, 25, r.MarketLot)
}

func TestParseEquityCSVSkipsBlankAndSymbolless(t *testing.T) {
	text := "\n\nSYMBOL,NAME,SERIES\r\n" +
		"RELIANCE,Reliance Industries,EQ\r\n" +
		"   \r\n" +
		",No Symbol Ltd,EQ\r\n" +
		"\"\",Quoted Empty,BE\r\n" +
		"INFY,Infosys,EQ\r\n"

	records, err := ParseEquityCSV(text)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "RELIANCE", records[0].Symbol)
	assert.Equal(t, "INFY", records[1].Symbol)
}

func TestParseEquityCSVNoSymbolColumn(t *testing.T) {
	for _, text := range []string{"", "\n  \n", "NAME,SERIES\nTata,EQ\n"} {
		records, err := ParseEquityCSV(text)
		assert.ErrorIs(t, err, ErrNoSymbolColumn)
		assert.Empty(t, records)
	}
}

func TestParseEquityCSVNumericFallbacks(t *testing.T) {
	text := "SYMBOL,FACE VALUE,PAID UP VALUE,MARKET LOT\n" +
		"A,abc,,0\n" +
		"B,10,\"1,000\",-5\n" +
		"C,2.5,NaN,xyz\n"

	records, err := ParseEquityCSV(text)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 0.0, records[0].FaceValue)
	assert.Equal(t, 0.0, records[0].PaidUpCapital)
	assert.Equal(t, 1, records[0].MarketLot)

	assert.Equal(t, 10.0, records[1].FaceValue)
	assert.Equal(t, 1000.0, records[1].PaidUpCapital)
	assert.Equal(t, 1, records[1].MarketLot)

	assert.Equal(t, 2.5, records[2].FaceValue)
	assert.Equal(t, 0.0, records[2].PaidUpCapital)
	assert.Equal(t, 1, records[2].MarketLot)
}

func TestParseEquityCSVNameFallsBackToSymbol(t *testing.T) {
	records, err := ParseEquityCSV("SYMBOL,NAME\nXYZ,\n")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "XYZ", records[0].Name)
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`a,b,c`, []string{"a", "b", "c"}},
		{`"a,b",c`, []string{"a,b", "c"}},
		{` a , "b" ,`, []string{"a", "b", ""}},
		{`x"y"z,1`, []string{"xyz", "1"}},
		{``, []string{""}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitLine(tt.line), tt.line)
	}
}

func TestLoadEquityFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nse_equity.csv")
	require.NoError(t, os.WriteFile(path, []byte(nseSample), 0o644))

	records, err := LoadEquityFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, err = LoadEquityFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestWriteEquityCSVParsesBack(t *testing.T) {
	in, err := ParseEquityCSV(nseSample)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteEquityCSV(&buf, in))

	out, err := ParseEquityCSV(buf.String())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseLot(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"25", 25},
		{"50.0", 50},
		{"1,500", 1500},
		{"0", 1},
		{"-4", 1},
		{"", 1},
		{"lot", 1},
		{"1e30", 1},
		{"99999999999999999999", 1},
		{"NaN", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLot(tt.in), "parseLot(%q)", tt.in)
	}
}
