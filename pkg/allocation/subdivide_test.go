package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billsplit/models"
)

func itemWithQuantity(num, den int64) *models.LineItem {
	return &models.LineItem{ID: 42, QuantityNumerator: num, QuantityDenominator: den}
}

func TestPlanResplitNoClaims(t *testing.T) {
	// An unclaimed item is redefined as one whole unit in targetParts parts.
	plan, err := PlanResplit(3, 1, nil, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), plan.QuantityNumerator)
	assert.Equal(t, int64(8), plan.QuantityDenominator)
	assert.Empty(t, plan.ClaimNumerators)
}

func TestPlanResplitDoublesParts(t *testing.T) {
	// Three parts, two claimed one each; doubling to six parts doubles every
	// claim and leaves two of six unclaimed.
	claims := map[uint]int64{1: 1, 2: 1}
	plan, err := PlanResplit(3, 1, claims, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), plan.QuantityNumerator)
	assert.Equal(t, int64(2), plan.QuantityDenominator)
	assert.Equal(t, int64(2), plan.ClaimNumerators[1])
	assert.Equal(t, int64(2), plan.ClaimNumerators[2])

	// real fractions are preserved: 1/3 == 2/6
	assert.Equal(t, float64(1)/3, float64(plan.ClaimNumerators[1])/float64(plan.QuantityNumerator))
	// and so is the item's real quantity: 3/1 == 6/2
	assert.Equal(t, int64(3), plan.QuantityNumerator/plan.QuantityDenominator)
}

func TestPlanResplitCoarsensWhenClaimsShareAFactor(t *testing.T) {
	// 4 parts with a single claim of 2: everything is divisible by 2, so the
	// coarsest compatible granularity is 2 parts and 3 is not a valid target.
	claims := map[uint]int64{7: 2}
	_, err := PlanResplit(4, 1, claims, 3)
	var invalid *InvalidSubdivisionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, int64(2), invalid.MinParts)
	assert.Equal(t, []int64{2, 4, 6, 8, 10}, invalid.ValidTargets)

	// 6 is a multiple of 2 and works: scale = 3.
	plan, err := PlanResplit(4, 1, claims, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), plan.QuantityNumerator)
	assert.Equal(t, int64(3), plan.ClaimNumerators[7])
}

func TestPlanResplitRejectsNonMultiple(t *testing.T) {
	claims := map[uint]int64{1: 1, 2: 1}
	_, err := PlanResplit(3, 1, claims, 4)
	var invalid *InvalidSubdivisionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, int64(3), invalid.MinParts)
	assert.Contains(t, invalid.ValidTargets, int64(3))
	assert.Contains(t, invalid.ValidTargets, int64(6))
}

func TestPlanResplitRejectsZeroTarget(t *testing.T) {
	_, err := PlanResplit(3, 1, nil, 0)
	var invalid *InvalidSubdivisionError
	require.ErrorAs(t, err, &invalid)
}

func TestPlanResplitIncludesUnclaimedRemainderInGCD(t *testing.T) {
	// 6 parts, one claim of 4: remainder 2, gcd(6,1,4,2)=1, so min stays 6.
	claims := map[uint]int64{1: 4}
	_, err := PlanResplit(6, 1, claims, 4)
	var invalid *InvalidSubdivisionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, int64(6), invalid.MinParts)

	// Fully claimed in one claim of 6: gcd is 6, one part is enough.
	full := map[uint]int64{1: 6}
	plan, err := PlanResplit(6, 1, full, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), plan.QuantityNumerator)
	assert.Equal(t, int64(1), plan.ClaimNumerators[1])
}

func TestRescaleRequest(t *testing.T) {
	item := itemWithQuantity(6, 2)

	// matching denominator passes through
	n, err := rescaleRequest(item, ClaimRequest{LineItemID: item.ID, QuantityNumerator: 3, QuantityDenominator: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// stale denominator from before a doubling: 1/1 == 2/2
	n, err = rescaleRequest(item, ClaimRequest{LineItemID: item.ID, QuantityNumerator: 1, QuantityDenominator: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// a fraction that cannot land on an integer numerator is rejected
	_, err = rescaleRequest(item, ClaimRequest{LineItemID: item.ID, QuantityNumerator: 1, QuantityDenominator: 3})
	var invalid *InvalidQuantityError
	require.ErrorAs(t, err, &invalid)

	// negative quantities are rejected outright
	_, err = rescaleRequest(item, ClaimRequest{LineItemID: item.ID, QuantityNumerator: -1, QuantityDenominator: 1})
	require.ErrorAs(t, err, &invalid)
}
