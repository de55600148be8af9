package history

import (
	"math"
	"sort"
	"time"

	"factor-trading-bot/internal/types"
)

// Dedupe drops bars whose timestamp was already seen, keeping the first.
func Dedupe(s types.Series) types.Series {
	seen := make(map[int64]struct{}, len(s))
	out := make(types.Series, 0, len(s))
	for _, b := range s {
		key := b.Time.UnixNano()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

// SortByTime orders bars ascending by timestamp in place.
func SortByTime(s types.Series) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
}

// ForwardFill replaces missing values with the previous bar's value, per
// field and per factor. Leading gaps stay NaN.
func ForwardFill(s types.Series) {
	if len(s) == 0 {
		return
	}
	names := s.FactorNames()
	for i := 1; i < len(s); i++ {
		prev, cur := &s[i-1], &s[i]
		fill(&cur.Open, prev.Open)
		fill(&cur.High, prev.High)
		fill(&cur.Low, prev.Low)
		fill(&cur.Close, prev.Close)
		fill(&cur.Volume, prev.Volume)

		for _, name := range names {
			if v, ok := cur.Factors[name]; ok && !math.IsNaN(v) {
				continue
			}
			pv, ok := prev.Factors[name]
			if !ok || math.IsNaN(pv) {
				continue
			}
			if cur.Factors == nil {
				cur.Factors = make(map[string]float64, len(names))
			}
			cur.Factors[name] = pv
		}
	}
}

func fill(dst *float64, prev float64) {
	if math.IsNaN(*dst) {
		*dst = prev
	}
}

// Merge appends window onto existing and re-establishes the series
// invariants: unique timestamps (existing bars win), ascending order and
// forward-filled gaps. Inputs are not modified.
func Merge(existing, window types.Series) types.Series {
	combined := make(types.Series, 0, len(existing)+len(window))
	for _, b := range existing {
		combined = append(combined, b.Clone())
	}
	for _, b := range window {
		combined = append(combined, b.Clone())
	}
	combined = Dedupe(combined)
	SortByTime(combined)
	ForwardFill(combined)
	return combined
}

// JoinColumns outer-joins factor series on timestamp, concatenating their
// factor columns. Each part is deduplicated first; when two parts report the
// same factor at the same timestamp the earlier part wins.
func JoinColumns(parts ...types.Series) types.Series {
	byTime := map[int64]*types.Bar{}
	var order []int64
	for _, part := range parts {
		for _, b := range Dedupe(part) {
			key := b.Time.UnixNano()
			row, ok := byTime[key]
			if !ok {
				nb := types.NaNBar(b.Time)
				nb.Factors = map[string]float64{}
				row = &nb
				byTime[key] = row
				order = append(order, key)
			}
			for k, v := range b.Factors {
				if _, taken := row.Factors[k]; !taken {
					row.Factors[k] = v
				}
			}
		}
	}

	out := make(types.Series, 0, len(order))
	for _, key := range order {
		out = append(out, *byTime[key])
	}
	SortByTime(out)
	ForwardFill(out)
	return out
}

// Trim evicts bars older than retention before the newest bar. A zero
// retention keeps everything.
func Trim(s types.Series, retention time.Duration) types.Series {
	last, ok := s.Last()
	if !ok || retention <= 0 {
		return s
	}
	cutoff := last.Time.Add(-retention)
	idx := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(cutoff) })
	if idx == 0 {
		return s
	}
	return append(types.Series(nil), s[idx:]...)
}

// Valid reports whether timestamps are strictly increasing.
func Valid(s types.Series) bool {
	for i := 1; i < len(s); i++ {
		if !s[i].Time.After(s[i-1].Time) {
			return false
		}
	}
	return true
}
