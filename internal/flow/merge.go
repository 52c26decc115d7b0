package flow

// MergedBefore counts disbursements of all patterns strictly before t.
func MergedBefore(patterns []Pattern, t int64) int64 {
	var n int64
	for _, p := range patterns {
		n += p.NumDisbursedBefore(t)
	}
	return n
}

// MergedNth returns the time of disbursement n of the merged stream of
// patterns, and the index of the pattern it belongs to. Simultaneous
// disbursements are ordered by pattern index.
func MergedNth(patterns []Pattern, n int64) (int64, int, bool) {
	if n < 0 {
		return 0, 0, false
	}
	lo, hi := int64(0), int64(0)
	found := false
	for _, p := range patterns {
		if p.Rate == 0 {
			continue
		}
		t, _ := p.NthDisbursementTime(n)
		if !found || t < hi {
			hi = t
		}
		if !found || p.StartTime < lo {
			lo = p.StartTime
		}
		found = true
	}
	if !found {
		return 0, 0, false
	}
	// smallest t with MergedBefore(t+1) > n
	for lo < hi {
		mid := lo + (hi-lo)/2
		if MergedBefore(patterns, mid+1) > n {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	k := n - MergedBefore(patterns, lo)
	for i, p := range patterns {
		if p.Rate == 0 {
			continue
		}
		if p.NumDisbursedBetween(lo, lo+1) == 1 {
			if k == 0 {
				return lo, i, true
			}
			k--
		}
	}
	// unreachable for valid patterns: some pattern disburses at lo
	panic("flow: merged stream lost a disbursement")
}

// mergeCursor walks the merged stream of patterns in order. Every pattern
// must have a nonzero rate.
type mergeCursor struct {
	patterns []Pattern
	next     []int64
}

// newMergeCursor returns a cursor whose first pop is disbursement n.
func newMergeCursor(patterns []Pattern, n int64) *mergeCursor {
	c := &mergeCursor{patterns: patterns, next: make([]int64, len(patterns))}
	at, _, ok := MergedNth(patterns, n)
	if !ok {
		return c
	}
	var before int64
	for i, p := range patterns {
		c.next[i] = p.NumDisbursedBefore(at)
		before += c.next[i]
	}
	// simultaneous disbursements at the same tick come out in pattern order
	for ; before < n; before++ {
		c.pop()
	}
	return c
}

// pop returns the time of the next disbursement and advances past it.
func (c *mergeCursor) pop() int64 {
	best := -1
	var at int64
	for i, p := range c.patterns {
		t, _ := p.NthDisbursementTime(c.next[i])
		if best < 0 || t < at {
			best, at = i, t
		}
	}
	c.next[best]++
	return at
}
