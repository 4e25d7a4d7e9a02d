package receipttext

import "errors"

var errEmptyAmount = errors.New("empty amount")

// CorrectTotal reconciles the total a receipt reports with the sum of its
// parsed line items. OCR totals are the least reliable number on a receipt
// (smudged bold print, currency glyphs), so the summed items win unless the
// reported value agrees closely.
//
// Rules, in order:
//   - no reported total, or no items: take whichever side exists;
//   - exact agreement: the reported value;
//   - reported off from the sum by a factor of exactly 100 in either
//     direction (a missed or hallucinated decimal point): the sum;
//   - within 1% of the sum or within 50 cents: the reported value, which
//     then absorbs sub-cent rounding on the printed receipt;
//   - anything else: the sum.
func CorrectTotal(items []ParsedItem, reportedCents int64) int64 {
	var sum int64
	for _, it := range items {
		sum += it.TotalCents
	}
	if reportedCents <= 0 {
		return sum
	}
	if sum == 0 {
		return reportedCents
	}
	if reportedCents == sum {
		return reportedCents
	}
	if reportedCents == sum*100 || sum == reportedCents*100 {
		return sum
	}
	diff := reportedCents - sum
	if diff < 0 {
		diff = -diff
	}
	if diff <= 50 || diff*100 <= sum {
		return reportedCents
	}
	return sum
}
