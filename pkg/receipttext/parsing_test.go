package receipttext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"12.50", 1250},
		{"12,50", 1250},
		{"1,234.56", 123456},
		{"12", 1200},
		{"12,500", 1250000}, // grouping separator, not cents
	}
	for _, c := range cases {
		got, err := ParseAmountCents(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	_, err := ParseAmountCents("")
	assert.Error(t, err)
}

func TestParseItems(t *testing.T) {
	text := `Joe's Diner
Table 4 Server Amy
2 x Burger 24.00
Fries 6.50
1x Lemonade 3.00
Subtotal 33.50
Tax 2.68
Total 36.18
Thank you!`

	parsed := Parse(text)
	require.Len(t, parsed.Items, 3)

	assert.Equal(t, "Burger", parsed.Items[0].Name)
	assert.Equal(t, int64(2), parsed.Items[0].Quantity)
	assert.Equal(t, int64(2400), parsed.Items[0].TotalCents)

	assert.Equal(t, "Fries", parsed.Items[1].Name)
	assert.Equal(t, int64(1), parsed.Items[1].Quantity)
	assert.Equal(t, int64(650), parsed.Items[1].TotalCents)

	assert.Equal(t, "Lemonade", parsed.Items[2].Name)
	assert.Equal(t, int64(300), parsed.Items[2].TotalCents)

	assert.Equal(t, int64(3618), parsed.ReportedTotalCents)
}

func TestParseSkipsImplausibleNumbers(t *testing.T) {
	text := `Burger 12.00
Order 0012345
Phone 5551234567
Ref 123456789012`
	parsed := Parse(text)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "Burger", parsed.Items[0].Name)
}

func TestCorrectTotal(t *testing.T) {
	items := []ParsedItem{
		{Name: "Burger", Quantity: 2, TotalCents: 2400},
		{Name: "Fries", Quantity: 1, TotalCents: 650},
	}
	sum := int64(3050)

	// no reported total: the sum wins
	assert.Equal(t, sum, CorrectTotal(items, 0))
	// exact agreement
	assert.Equal(t, sum, CorrectTotal(items, 3050))
	// close agreement: trust the printed total
	assert.Equal(t, int64(3049), CorrectTotal(items, 3049))
	// a missed decimal point: 3050.00 read as 305000
	assert.Equal(t, sum, CorrectTotal(items, 305000))
	// wildly off: the items win
	assert.Equal(t, sum, CorrectTotal(items, 9999))
	// no items at all: nothing to cross-check against
	assert.Equal(t, int64(1234), CorrectTotal(nil, 1234))
}
