package screener

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"nse-screener/models"
)

// Matches reports whether a record passes the series filter and the search
// query. query must already be lower-cased.
func Matches(r models.EquityRecord, series, query string) bool {
	if series != AllSeries && r.Series != series {
		return false
	}
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Symbol), query) ||
		strings.Contains(strings.ToLower(r.Name), query) ||
		(r.ISIN != "" && strings.Contains(strings.ToLower(r.ISIN), query))
}

// Filter returns the records that pass the view's series filter and query,
// in their original order.
func Filter(records []models.EquityRecord, v ViewState) []models.EquityRecord {
	v = v.normalized()
	q := strings.ToLower(v.Query)

	out := make([]models.EquityRecord, 0, len(records))
	for _, r := range records {
		if Matches(r, v.Series, q) {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders records in place by the view's key and direction. Ties keep
// their input order.
func Sort(records []models.EquityRecord, key SortKey, dir int) {
	if dir < 0 {
		dir = -1
	} else {
		dir = 1
	}

	if key == SortFaceValue {
		slices.SortStableFunc(records, func(a, b models.EquityRecord) int {
			return cmp.Compare(a.FaceValue, b.FaceValue) * dir
		})
		return
	}

	// A collator is not safe for concurrent use; each sort gets its own.
	col := collate.New(language.English)
	text := sortText(key)
	slices.SortStableFunc(records, func(a, b models.EquityRecord) int {
		return col.CompareString(text(a), text(b)) * dir
	})
}

func sortText(key SortKey) func(models.EquityRecord) string {
	switch key {
	case SortName:
		return func(r models.EquityRecord) string { return r.Name }
	case SortDate:
		return func(r models.EquityRecord) string { return r.ListedDate }
	default:
		return func(r models.EquityRecord) string { return r.Symbol }
	}
}

// Apply recomputes the full filtered view. It never mutates records.
func Apply(records []models.EquityRecord, v ViewState) []models.EquityRecord {
	v = v.normalized()
	out := Filter(records, v)
	Sort(out, v.SortKey, v.SortDir)
	return out
}

// PageCount is ceil(total/pageSize); zero when there is nothing to show.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// PageBounds returns the half-open index range [start, end) of page p. The
// range is clamped to the view, so an out-of-range page yields start == end.
func PageBounds(total, page, pageSize int) (start, end int) {
	if page < 1 || pageSize <= 0 {
		return 0, 0
	}
	start = min((page-1)*pageSize, total)
	end = min(start+pageSize, total)
	return start, end
}

// PageSlice returns the records shown on page p of filtered.
func PageSlice(filtered []models.EquityRecord, page, pageSize int) []models.EquityRecord {
	start, end := PageBounds(len(filtered), page, pageSize)
	return filtered[start:end]
}

// Span marks the first case-insensitive occurrence of the query in a cell.
type Span struct {
	Start int `json:"start"`
	Len   int `json:"len"`
}

// Highlight locates query (already lower-cased) inside text. Offsets are
// byte offsets into text, so they stay valid when lower-casing changes a
// rune's encoded length.
func Highlight(text, query string) *Span {
	if query == "" {
		return nil
	}
	for i := range text {
		if n := foldPrefix(text[i:], query); n > 0 {
			return &Span{Start: i, Len: n}
		}
	}
	return nil
}

// foldPrefix returns how many bytes of s match query rune by rune after
// lower-casing, or 0 when s does not start with query.
func foldPrefix(s, query string) int {
	n := 0
	for _, q := range query {
		if n >= len(s) {
			return 0
		}
		r, size := utf8.DecodeRuneInString(s[n:])
		if unicode.ToLower(r) != q {
			return 0
		}
		n += size
	}
	return n
}
