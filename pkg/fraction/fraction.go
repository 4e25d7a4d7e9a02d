// Package fraction implements exact rational arithmetic for quantities and
// money shares. Binary floating point is never used for either; amounts are
// converted to fixed-point cents only at the final rounding boundary.
package fraction

import "fmt"

// Frac is a rational number. The zero value is 0/1 after normalization; all
// constructors and operations return a reduced fraction with a positive
// denominator.
type Frac struct {
	Num int64
	Den int64
}

// New returns num/den reduced to lowest terms. A zero denominator is treated
// as 1 so the zero value of callers stays usable.
func New(num, den int64) Frac {
	if den == 0 {
		den = 1
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := GCD(abs(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	return Frac{Num: num, Den: den}
}

// Zero is the additive identity.
func Zero() Frac { return Frac{Num: 0, Den: 1} }

// FromInt returns n as a fraction.
func FromInt(n int64) Frac { return Frac{Num: n, Den: 1} }

// Add returns f+g reduced.
func (f Frac) Add(g Frac) Frac {
	f, g = f.norm(), g.norm()
	return New(f.Num*g.Den+g.Num*f.Den, f.Den*g.Den)
}

// Mul returns f*g reduced. Cross-reducing before multiplying keeps the
// intermediate products small.
func (f Frac) Mul(g Frac) Frac {
	f, g = f.norm(), g.norm()
	g1 := GCD(abs(f.Num), g.Den)
	g2 := GCD(abs(g.Num), f.Den)
	if g1 > 1 {
		f.Num /= g1
		g.Den /= g1
	}
	if g2 > 1 {
		g.Num /= g2
		f.Den /= g2
	}
	return New(f.Num*g.Num, f.Den*g.Den)
}

// MulInt returns f*n reduced.
func (f Frac) MulInt(n int64) Frac { return f.Mul(FromInt(n)) }

// Cmp compares f and g, returning -1, 0 or 1.
func (f Frac) Cmp(g Frac) int {
	f, g = f.norm(), g.norm()
	l, r := f.Num*g.Den, g.Num*f.Den
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether f equals zero.
func (f Frac) IsZero() bool { return f.Num == 0 }

// Cents rounds f to the nearest integer, half away from zero. Callers use it
// to land an exact rational money share on a whole number of cents.
func (f Frac) Cents() int64 {
	f = f.norm()
	q := f.Num / f.Den
	rem := f.Num % f.Den
	if rem < 0 {
		rem = -rem
	}
	if 2*rem >= f.Den {
		if f.Num < 0 {
			return q - 1
		}
		return q + 1
	}
	return q
}

func (f Frac) String() string { return fmt.Sprintf("%d/%d", f.Num, f.Den) }

func (f Frac) norm() Frac {
	if f.Den == 0 {
		f.Den = 1
	}
	return f
}

// GCD returns the greatest common divisor of a and b; GCD(0, 0) is 0.
func GCD(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// GCDAll folds GCD over vs, ignoring nothing: zeros are identity elements,
// so GCDAll(6, 0, 4) == 2.
func GCDAll(vs ...int64) int64 {
	var g int64
	for _, v := range vs {
		g = GCD(g, v)
	}
	return g
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
