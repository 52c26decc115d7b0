// Package flow implements exact integer schedules of discrete material
// disbursements.
//
// A Pattern disburses one unit at StartTime and then Rate units per
// RateDivisor ticks: the nth disbursement (counting from zero) happens at
// StartTime + ⌊n·RateDivisor/Rate⌋. No floating point is used anywhere; all
// products are checked and overflow panics.
package flow

import (
	"fmt"
	"math"
)

const (
	// TimeToMoveMaterial is the transport latency between adjacent machines.
	TimeToMoveMaterial int64 = 60

	// RateDivisor is the denominator of every rate. It admits the common
	// fractions of TimeToMoveMaterial exactly.
	RateDivisor int64 = TimeToMoveMaterial * 64 * 27 * 25

	// StandardRate is one unit per TimeToMoveMaterial ticks, the highest
	// rate any single machine output may reach.
	StandardRate int64 = RateDivisor / TimeToMoveMaterial

	// MinTime and MaxTime bound the tick range. They are sentinels and are
	// never used as operands.
	MinTime int64 = math.MinInt64
	MaxTime int64 = math.MaxInt64
)

// Pattern is a periodic disbursement schedule.
type Pattern struct {
	StartTime int64 `json:"start_time"`
	Rate      int64 `json:"rate"`
}

// NewPattern returns a pattern, panicking on a rate outside [0, RateDivisor].
func NewPattern(start, rate int64) Pattern {
	if rate < 0 || rate > RateDivisor {
		panic(fmt.Sprintf("flow: rate %d outside [0, %d]", rate, RateDivisor))
	}
	return Pattern{StartTime: start, Rate: rate}
}

// Equal reports whether two patterns disburse at the same times. All rate-0
// patterns are equal.
func (p Pattern) Equal(o Pattern) bool {
	if p.Rate == 0 && o.Rate == 0 {
		return true
	}
	return p == o
}

// IsZero reports whether p never disburses.
func (p Pattern) IsZero() bool {
	return p.Rate == 0
}

// NumDisbursedBefore counts disbursements strictly before t.
func (p Pattern) NumDisbursedBefore(t int64) int64 {
	if p.Rate == 0 || t <= p.StartTime {
		return 0
	}
	return mulDivCeil(checkedSub(t, p.StartTime), p.Rate, RateDivisor)
}

// NumDisbursedBetween counts disbursements in [a, b).
func (p Pattern) NumDisbursedBetween(a, b int64) int64 {
	if b <= a {
		return 0
	}
	return p.NumDisbursedBefore(b) - p.NumDisbursedBefore(a)
}

// NthDisbursementTime returns the time of disbursement n (zero based).
func (p Pattern) NthDisbursementTime(n int64) (int64, bool) {
	if p.Rate == 0 || n < 0 {
		return 0, false
	}
	return checkedAdd(p.StartTime, mulDivFloor(n, RateDivisor, p.Rate)), true
}

// FirstDisbursementTimeGEQ returns the first disbursement at or after t.
func (p Pattern) FirstDisbursementTimeGEQ(t int64) (int64, bool) {
	return p.NthDisbursementTime(p.NumDisbursedBefore(t))
}

// LastDisbursementTimeLT returns the last disbursement strictly before t.
func (p Pattern) LastDisbursementTimeLT(t int64) (int64, bool) {
	n := p.NumDisbursedBefore(t)
	if n == 0 {
		return 0, false
	}
	return p.NthDisbursementTime(n - 1)
}

// TimeFromWhichAlwaysDisbursesAtLeastAmountPlusIdealRate returns the
// smallest t such that for every t' ≥ t
//
//	NumDisbursedBefore(t'+1) ≥ amount + ⌈Rate·(t'-t+1)/RateDivisor⌉.
//
// That is the earliest moment from which a consumer drawing at the ideal
// rate, with amount units already buffered, never runs dry. The answer is
// StartTime + ⌈amount·RateDivisor/Rate⌉. One tick earlier the condition
// fails for some t' less than RateDivisor ticks later, though not always
// soon: for rates that do not divide RateDivisor the first failure can be
// tens of thousands of ticks out. For rate 0 the answer is MinTime when
// amount ≤ 0 and does not exist otherwise.
func (p Pattern) TimeFromWhichAlwaysDisbursesAtLeastAmountPlusIdealRate(amount int64) (int64, bool) {
	if p.Rate == 0 {
		if amount <= 0 {
			return MinTime, true
		}
		return 0, false
	}
	return checkedAdd(p.StartTime, mulDivCeil(amount, RateDivisor, p.Rate)), true
}

// AggregateTimeFromWhichAlwaysDisbursesAtLeastAmountPlusIdealRate is the
// set version of TimeFromWhichAlwaysDisbursesAtLeastAmountPlusIdealRate: the
// earliest t such that for every t' ≥ t the merged stream has disbursed at
// least amount + ⌈R·(t'-t+1)/RateDivisor⌉ units before t'+1, where R is the
// combined rate.
//
// The ideal count first reaches j at t' = t + ⌊(j-1)·RateDivisor/R⌋, so the
// answer is the largest MergedNth(amount+j-1) - ⌊(j-1)·RateDivisor/R⌋ over
// j ≥ 1. Once every pattern has started these terms repeat with the joint
// period of the rates, so the walk stops one period past the last start.
func AggregateTimeFromWhichAlwaysDisbursesAtLeastAmountPlusIdealRate(patterns []Pattern, amount int64) (int64, bool) {
	var live []Pattern
	var total int64
	for _, p := range patterns {
		if p.Rate == 0 {
			continue
		}
		live = append(live, p)
		total = checkedAdd(total, p.Rate)
	}
	if total == 0 {
		if amount <= 0 {
			return MinTime, true
		}
		return 0, false
	}

	period := int64(1)
	lastStart := live[0].StartTime
	for _, p := range live {
		rp := ratePeriod(p.Rate)
		period = period / gcd(period, rp) * rp
		lastStart = max(lastStart, p.StartTime)
	}
	// disbursements of the merged stream per period; at least one per pattern
	perPeriod := mulDivFloor(total, period, RateDivisor)

	n := max(amount, 0)
	c := newMergeCursor(live, n)
	best := MinTime
	for seen := int64(0); seen < perPeriod; n++ {
		at := c.pop()
		j := checkedSub(n, amount) + 1
		best = max(best, checkedSub(at, mulDivFloor(j-1, RateDivisor, total)))
		if at >= lastStart {
			seen++
		}
	}
	return best, true
}

// Delayed returns p shifted later by d ticks.
func (p Pattern) Delayed(d int64) Pattern {
	return Pattern{StartTime: checkedAdd(p.StartTime, d), Rate: p.Rate}
}

func (p Pattern) String() string {
	return fmt.Sprintf("{start=%d rate=%d}", p.StartTime, p.Rate)
}

// MaterialFlow is a pattern carrying one material.
type MaterialFlow struct {
	Pattern  Pattern  `json:"flow"`
	Material Material `json:"material"`
}

// Delayed returns f shifted later by d ticks.
func (f MaterialFlow) Delayed(d int64) MaterialFlow {
	return MaterialFlow{Pattern: f.Pattern.Delayed(d), Material: f.Material}
}

// Equal reports whether two flows carry the same material on equal patterns.
func (f MaterialFlow) Equal(o MaterialFlow) bool {
	return f.Material == o.Material && f.Pattern.Equal(o.Pattern)
}

func (f MaterialFlow) String() string {
	return fmt.Sprintf("%s%s", f.Material, f.Pattern)
}
