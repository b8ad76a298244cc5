package analysis

import (
	"math"
	"sort"
)

// Entry is one row of the published table.
type Entry struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// Table is ordered by Value descending, then Text ascending.
type Table []Entry

// Rank drops stopwords and words counted fewer than minCount times, then
// sorts the rest.
func Rank(freq Frequencies, stop StopwordSet, minCount int) Table {
	if minCount < 1 {
		minCount = 1
	}
	table := make(Table, 0, len(freq))
	for text, n := range freq {
		if n < minCount || stop.Contains(text) {
			continue
		}
		table = append(table, Entry{Text: text, Value: n})
	}
	sort.Slice(table, func(i, j int) bool {
		if table[i].Value != table[j].Value {
			return table[i].Value > table[j].Value
		}
		return table[i].Text < table[j].Text
	})
	return table
}

// Quantile returns the q-quantile of values using linear interpolation
// between closest ranks. values need not be sorted.
func Quantile(values []int, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	if q <= 0 {
		return float64(sorted[0])
	}
	if q >= 1 {
		return float64(sorted[len(sorted)-1])
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[hi]-sorted[lo])
}
