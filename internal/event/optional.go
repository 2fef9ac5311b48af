package event

import "math"

// avgOption implements the spec's intentionally-not-a-true-mean running average:
// (old + new) / 2. If either value is absent the other is returned unchanged; if
// both are absent the result is absent. Do not "fix" this into a true mean — it is
// locked for parity with downstream consumers that expect this exact behavior.
func avgOption(old, new_ *float64) *float64 {
	switch {
	case old == nil && new_ == nil:
		return nil
	case old == nil:
		return new_
	case new_ == nil:
		return old
	default:
		v := (*old + *new_) / 2
		return &v
	}
}

// maxOptionFloor returns floor(max(old, new)), matching the original
// floor-of-extrema semantics used for speed_max/power_max.
func maxOptionFloor(old, new_ *float64) *float64 {
	switch {
	case old == nil && new_ == nil:
		return nil
	case old == nil:
		v := math.Floor(*new_)
		return &v
	case new_ == nil:
		v := math.Floor(*old)
		return &v
	default:
		v := math.Floor(math.Max(*old, *new_))
		return &v
	}
}

// minOptionFloor returns floor(min(old, new)), matching the original
// floor-of-extrema semantics used for power_min.
func minOptionFloor(old, new_ *float64) *float64 {
	switch {
	case old == nil && new_ == nil:
		return nil
	case old == nil:
		v := math.Floor(*new_)
		return &v
	case new_ == nil:
		v := math.Floor(*old)
		return &v
	default:
		v := math.Floor(math.Min(*old, *new_))
		return &v
	}
}

// subOption returns a-b when both are present, else nil.
func subOption(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	v := *a - *b
	return &v
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
