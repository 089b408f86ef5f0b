// Package format renders numbers and dates the way Indian market screens show
// them: lakh/crore compaction, 2-digit digit grouping above the thousands,
// and the rupee sign.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"nse-screener/models"
)

// Missing is shown wherever a value is absent.
const Missing = "—"

// Grouped formats v with Indian digit grouping (12,34,567) and at most
// decimals fraction digits, dropping trailing zeros.
func Grouped(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	neg := v < 0
	s := strconv.FormatFloat(math.Abs(v), 'f', max(decimals, 0), 64)

	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")

	out := groupIndian(intPart)
	if frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// groupIndian inserts separators: the last three digits, then pairs.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	result := digits[len(digits)-3:]
	rest := digits[:len(digits)-3]
	for len(rest) > 2 {
		result = rest[len(rest)-2:] + "," + result
		rest = rest[:len(rest)-2]
	}
	return rest + "," + result
}

// Count formats an integer count with Indian grouping.
func Count(n int) string {
	return Grouped(float64(n), 0)
}

// INR prefixes a grouped amount with the rupee sign.
func INR(v float64, decimals int) string {
	if v < 0 {
		return "-₹" + Grouped(-v, decimals)
	}
	return "₹" + Grouped(v, decimals)
}

// Compact abbreviates a rupee amount for table cells: 1.23L, 4.56Cr, 7.89L
// for lakh crores. Zero means unknown.
func Compact(v float64) string {
	if v == 0 || math.IsNaN(v) {
		return Missing
	}
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.2fL", v/1e12)
	case v >= 1e7:
		return fmt.Sprintf("%.2fCr", v/1e7)
	case v >= 1e5:
		return fmt.Sprintf("%.2fL", v/1e5)
	default:
		return Grouped(v, 3)
	}
}

// Amount is Compact with spaced units, used for revenue and income figures.
func Amount(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.2fL Cr", v/1e12)
	case v >= 1e7:
		return fmt.Sprintf("%.2f Cr", v/1e7)
	case v >= 1e5:
		return fmt.Sprintf("%.2fL", v/1e5)
	default:
		return Grouped(v, 3)
	}
}

// Volume abbreviates a share count.
func Volume(v int64) string {
	f := float64(v)
	switch {
	case v == 0:
		return Missing
	case f >= 1e7:
		return fmt.Sprintf("%.2fCr", f/1e7)
	case f >= 1e5:
		return fmt.Sprintf("%.2fL", f/1e5)
	case f >= 1e3:
		return fmt.Sprintf("%.0fK", f/1e3)
	default:
		return strconv.FormatInt(v, 10)
	}
}

// MarketCap renders a market capitalisation in crore, e.g. "MC ₹14.20L Cr".
func MarketCap(v float64) string {
	cr := math.Round(v / 1e7)
	var s string
	switch {
	case cr >= 1e5:
		s = fmt.Sprintf("%.2fL", cr/1e5)
	case cr >= 1e3:
		s = fmt.Sprintf("%.1fK", cr/1e3)
	default:
		s = strconv.FormatFloat(cr, 'f', -1, 64)
	}
	return "₹" + s + " Cr"
}

// Lot renders a market lot; lots of one are shown plainly.
func Lot(n int) string {
	if n <= 1 {
		return "1"
	}
	return Count(n)
}

var months = map[string]string{
	"jan": "Jan", "feb": "Feb", "mar": "Mar", "apr": "Apr", "may": "May", "jun": "Jun",
	"jul": "Jul", "aug": "Aug", "sep": "Sep", "oct": "Oct", "nov": "Nov", "dec": "Dec",
}

// ListingDate turns the exchange's "06-OCT-2008" into "06 Oct 2008". Anything
// it cannot read is returned unchanged; an empty date becomes Missing.
func ListingDate(s string) string {
	if s == "" {
		return Missing
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	m, ok := months[strings.ToLower(parts[1])]
	if !ok {
		return s
	}
	return parts[0] + " " + m + " " + parts[2]
}

// Ratio renders an optional value with two decimals.
func Ratio(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return Missing
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// Percent renders an optional fraction (0.123) as "12.3%".
func Percent(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return Missing
	}
	return strconv.FormatFloat(*v*100, 'f', 1, 64) + "%"
}

// Signed renders a change with an explicit sign: "+12.40", "-3.10".
func Signed(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if v >= 0 {
		return "+" + s
	}
	return s
}

// AxisDate is the short label under the chart: "15 Jan".
func AxisDate(t time.Time) string {
	return t.In(models.IST).Format("2 Jan")
}

// TooltipDate is the long form shown in the chart tooltip: "15 Jan 2024".
func TooltipDate(t time.Time) string {
	return t.In(models.IST).Format("2 Jan 2006")
}
