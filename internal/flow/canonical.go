package flow

import "sort"

// CanonicalRates is the sorted table of rates a module input may run at.
// Real input rates are rounded down to the nearest entry, which keeps the
// number of distinct module futures small.
var CanonicalRates = buildCanonicalRates()

func buildCanonicalRates() []int64 {
	fractions := [][2]int64{
		{1, 96}, {1, 80}, {1, 64}, {1, 48}, {1, 40}, {1, 32}, {1, 24},
		{1, 20}, {1, 16}, {1, 12}, {1, 10}, {1, 8}, {1, 6}, {1, 5},
		{1, 4}, {1, 3}, {1, 2}, {2, 3}, {3, 4}, {1, 1},
	}
	rates := make([]int64, len(fractions))
	for i, f := range fractions {
		if StandardRate*f[0]%f[1] != 0 {
			panic("flow: canonical rate is not exact")
		}
		rates[i] = StandardRate * f[0] / f[1]
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })
	return rates
}

// RoundDownToCanonical returns the largest canonical rate not above rate.
// It reports false when rate is below the smallest canonical rate.
func RoundDownToCanonical(rate int64) (int64, bool) {
	i := sort.Search(len(CanonicalRates), func(i int) bool { return CanonicalRates[i] > rate })
	if i == 0 {
		return 0, false
	}
	return CanonicalRates[i-1], true
}
