package allocation

// Prorate distributes amount across weights in proportion to each weight's
// share of the total, using largest-remainder rounding so the returned parts
// always sum to exactly amount. Receipt-level tax and tip are prorated onto
// line items this way, weighted by price.
//
// A zero weight sum splits nothing: all parts are zero except that the full
// amount goes to the first entry, if any, so no cents are dropped.
func Prorate(amount int64, weights []int64) []int64 {
	parts := make([]int64, len(weights))
	if len(weights) == 0 || amount == 0 {
		return parts
	}
	var total int64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		parts[0] = amount
		return parts
	}

	type rem struct {
		idx int
		r   int64
	}
	var assigned int64
	rems := make([]rem, len(weights))
	for i, w := range weights {
		parts[i] = amount * w / total
		rems[i] = rem{idx: i, r: (amount * w) % total}
		assigned += parts[i]
	}

	// Hand the leftover cents to the largest remainders, stably.
	for assigned < amount {
		best := -1
		for i := range rems {
			if rems[i].r == 0 {
				continue
			}
			if best == -1 || rems[i].r > rems[best].r {
				best = i
			}
		}
		if best == -1 {
			best = 0
		}
		parts[rems[best].idx]++
		rems[best].r = 0
		assigned++
	}
	return parts
}
