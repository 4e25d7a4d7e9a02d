// Package receipttext turns raw receipt text (the output of an external OCR
// or vision step) into candidate line items and a reported total. It owns no
// image handling; input is plain text, one physical receipt line per line.
package receipttext

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedItem is one candidate line item extracted from the text.
type ParsedItem struct {
	Name       string
	Quantity   int64
	TotalCents int64
}

// Parsed is the result of a parse: the items found and the total the receipt
// itself reports, 0 when none was recognized.
type Parsed struct {
	Items              []ParsedItem
	ReportedTotalCents int64
}

var (
	// "2 x Burger 24.00", "2x Burger 24.00", "Burger 12.00"
	itemRE  = regexp.MustCompile(`^(?:(\d{1,3})\s*[xX]\s+)?(.+?)\s+(\d[\d.,]*)$`)
	centsRE = regexp.MustCompile(`[.,]\d{2}$`)
	// lines that never describe claimable items
	skipRE  = regexp.MustCompile(`(?i)^(subtotal|sub-total|tax|vat|tip|gratuity|service|cash|change|card|visa|mastercard|thank|date|time|table|server|cashier|order)\b`)
	totalRE = regexp.MustCompile(`(?i)^total\b[^0-9]*(\d[\d.,]*)$`)
)

// Parse scans text line by line. A line is an item when it ends in a
// plausible amount and is not a recognized non-item line; the last line
// reading "Total <amount>" becomes the reported total.
func Parse(text string) Parsed {
	var out Parsed
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := totalRE.FindStringSubmatch(line); m != nil {
			if cents, err := ParseAmountCents(m[1]); err == nil {
				out.ReportedTotalCents = cents
			}
			continue
		}
		if skipRE.MatchString(line) {
			continue
		}
		m := itemRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !isPlausibleAmount(m[3]) {
			continue
		}
		cents, err := ParseAmountCents(m[3])
		if err != nil {
			continue
		}
		qty := int64(1)
		if m[1] != "" {
			if q, err := strconv.ParseInt(m[1], 10, 64); err == nil && q >= 1 {
				qty = q
			}
		}
		name := strings.TrimSpace(m[2])
		if name == "" {
			continue
		}
		out.Items = append(out.Items, ParsedItem{Name: name, Quantity: qty, TotalCents: cents})
	}
	return out
}

// ParseAmountCents normalizes a matched numeric substring into cents. A
// trailing separator followed by exactly two digits is read as a decimal
// part ("12.50" -> 1250); any other separators are treated as grouping
// ("12,500" -> 1250000).
func ParseAmountCents(found string) (int64, error) {
	found = strings.TrimSpace(found)
	if found == "" {
		return 0, errEmptyAmount
	}
	var intPart, decPart string
	if centsRE.MatchString(found) {
		sep := strings.LastIndexAny(found, ".,")
		intPart = onlyDigits(found[:sep])
		decPart = found[sep+1:]
	} else {
		intPart = onlyDigits(found)
		decPart = "00"
	}
	if intPart == "" {
		intPart = "0"
	}
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, err
	}
	dec, err := strconv.ParseInt(decPart, 10, 64)
	if err != nil {
		return 0, err
	}
	return units*100 + dec, nil
}

// isPlausibleAmount applies lightweight heuristics to decide whether a
// numeric substring likely represents money rather than a phone number,
// order id, or timestamp: prefer strings with a decimal part, reject very
// long digit runs and leading zeros.
func isPlausibleAmount(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	d := onlyDigits(s)
	if d == "" || d[0] == '0' {
		return false
	}
	if centsRE.MatchString(s) {
		return len(d) <= 9
	}
	return len(d) <= 6
}

// onlyDigits extracts decimal digits from a string.
func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
