package fraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReduces(t *testing.T) {
	cases := []struct {
		num, den         int64
		wantNum, wantDen int64
	}{
		{2, 4, 1, 2},
		{6, 3, 2, 1},
		{0, 5, 0, 1},
		{-2, 4, -1, 2},
		{2, -4, -1, 2},
		{7, 1, 7, 1},
	}
	for _, c := range cases {
		got := New(c.num, c.den)
		assert.Equal(t, c.wantNum, got.Num, "New(%d,%d)", c.num, c.den)
		assert.Equal(t, c.wantDen, got.Den, "New(%d,%d)", c.num, c.den)
	}
}

func TestAddMul(t *testing.T) {
	// 1/3 + 1/6 = 1/2
	assert.Equal(t, New(1, 2), New(1, 3).Add(New(1, 6)))
	// 2/3 * 3/4 = 1/2
	assert.Equal(t, New(1, 2), New(2, 3).Mul(New(3, 4)))
	// (1/3) * 2400 = 800
	assert.Equal(t, New(800, 1), New(1, 3).MulInt(2400))
	// zero value is usable as additive identity
	var z Frac
	assert.Equal(t, New(1, 3), z.Add(New(1, 3)))
}

func TestCentsRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		f    Frac
		want int64
	}{
		{New(2400, 3), 800},
		{New(100, 3), 33},   // 33.33...
		{New(200, 3), 67},   // 66.66...
		{New(1, 2), 1},      // exactly half rounds up
		{New(-1, 2), -1},    // and away from zero
		{New(7, 1), 7},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.f.Cents(), "%s", c.f)
	}
}

func TestCmp(t *testing.T) {
	assert.Equal(t, -1, New(1, 3).Cmp(New(1, 2)))
	assert.Equal(t, 0, New(2, 6).Cmp(New(1, 3)))
	assert.Equal(t, 1, New(3, 4).Cmp(New(2, 3)))
}

func TestGCD(t *testing.T) {
	assert.Equal(t, int64(6), GCD(12, 18))
	assert.Equal(t, int64(12), GCD(0, 12))
	assert.Equal(t, int64(0), GCD(0, 0))
	assert.Equal(t, int64(4), GCD(-8, 12))
}

func TestGCDAll(t *testing.T) {
	assert.Equal(t, int64(2), GCDAll(6, 0, 4))
	assert.Equal(t, int64(1), GCDAll(3, 1, 1, 1))
	assert.Equal(t, int64(3), GCDAll(3, 6, 9))
}
