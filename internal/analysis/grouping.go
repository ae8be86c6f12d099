package analysis

import "sort"

// Grouping maps a bucket key (category, year_month, ...) to an amount sum.
type Grouping map[string]int64

// Entry is one bucket of a Grouping.
type Entry struct {
	Key    string `json:"key"`
	Amount int64  `json:"amount"`
}

// ByValue returns entries by amount descending, ties broken by key ascending.
func (g Grouping) ByValue() []Entry {
	out := g.entries()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ByKey returns entries by key ascending.
func (g Grouping) ByKey() []Entry {
	out := g.entries()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Total sums every bucket.
func (g Grouping) Total() int64 {
	var total int64
	for _, v := range g {
		total += v
	}
	return total
}

func (g Grouping) entries() []Entry {
	out := make([]Entry, 0, len(g))
	for k, v := range g {
		out = append(out, Entry{Key: k, Amount: v})
	}
	return out
}

// Share returns part as a percentage of total, or 0 when total is not positive.
func Share(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
