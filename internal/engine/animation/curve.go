// Package animation bakes sparse keyframe channels into fixed-rate sampled
// curves and plays them back onto document properties.
package animation

import (
	gomath "math"
	"sort"

	"github.com/Faultbox/asset3d/pkg/math"
)

// Animatable is a value a curve can interpolate: a vector of components.
// Rotations are four components in (w, x, y, z) order.
type Animatable []float32

// Lerp interpolates component-wise. Both values must have the same length.
func (a Animatable) Lerp(b Animatable, t float32) Animatable {
	out := make(Animatable, len(a))
	for i := range a {
		out[i] = a[i] + t*(b[i]-a[i])
	}
	return out
}

// Interpolation selects how a keyframe curve blends between keys.
type Interpolation int

const (
	// Linear blends component-wise.
	Linear Interpolation = iota
	// Spherical slerps (w, x, y, z) quaternions. Other values fall back to Linear.
	Spherical
)

// Key is a keyframe. Time is in seconds.
type Key struct {
	Time  float64
	Value Animatable
}

// LinearKeyFrameCurve interpolates between sorted keys and clamps to the
// first and last key outside their range.
type LinearKeyFrameCurve struct {
	Keys          []Key
	Interpolation Interpolation
}

// NewLinearKeyFrameCurve sorts keys by time. Keys sharing a time keep their
// input order.
func NewLinearKeyFrameCurve(keys []Key, interp Interpolation) LinearKeyFrameCurve {
	sorted := append([]Key(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return LinearKeyFrameCurve{Keys: sorted, Interpolation: interp}
}

// At evaluates the curve at time t. It returns nil for a curve with no keys.
func (c LinearKeyFrameCurve) At(t float64) Animatable {
	keys := c.Keys
	switch {
	case len(keys) == 0:
		return nil
	case t <= keys[0].Time:
		return keys[0].Value
	case t >= keys[len(keys)-1].Time:
		return keys[len(keys)-1].Value
	}

	// first key strictly after t
	next := sort.Search(len(keys), func(i int) bool { return keys[i].Time > t })
	k0, k1 := keys[next-1], keys[next]
	span := k1.Time - k0.Time
	if span <= 0 {
		return k0.Value
	}
	f := float32((t - k0.Time) / span)

	if c.Interpolation == Spherical && len(k0.Value) == 4 && len(k1.Value) == 4 {
		q0 := math.QuatFromWXYZ([4]float32(k0.Value))
		q1 := math.QuatFromWXYZ([4]float32(k1.Value))
		wxyz := q0.Slerp(q1, f).WXYZ()
		return wxyz[:]
	}
	return k0.Value.Lerp(k1.Value, f)
}

// DiscreteCurve is a curve sampled at evenly spaced times over
// [0, Duration] seconds. The first sample is at 0 and the last at Duration.
type DiscreteCurve struct {
	Samples  []Animatable
	Duration float64
}

// Discretize samples c at n = round(duration*rate) evenly spaced times, at
// least one. With one sample the curve holds the value at time 0.
func Discretize(c LinearKeyFrameCurve, duration, rate float64) DiscreteCurve {
	n := SampleCount(duration, rate)
	dc := DiscreteCurve{Samples: make([]Animatable, n), Duration: duration}
	for i, t := range dc.SampleTimes() {
		dc.Samples[i] = c.At(t)
	}
	return dc
}

// SampleCount returns round(duration*rate), at least one.
func SampleCount(duration, rate float64) int {
	n := int(gomath.Round(duration * rate))
	if n < 1 {
		n = 1
	}
	return n
}

// SampleTimes returns the time in seconds of each sample.
func (c DiscreteCurve) SampleTimes() []float64 {
	n := len(c.Samples)
	times := make([]float64, n)
	if n < 2 {
		return times
	}
	step := c.Duration / float64(n-1)
	for i := range times {
		times[i] = float64(i) * step
	}
	times[n-1] = c.Duration
	return times
}

// Sample interpolates linearly between the samples bracketing t, clamping
// outside [0, Duration].
func (c DiscreteCurve) Sample(t float64) Animatable {
	n := len(c.Samples)
	if n == 0 {
		return nil
	}
	if n == 1 || t <= 0 || c.Duration <= 0 {
		return c.Samples[0]
	}
	if t >= c.Duration {
		return c.Samples[n-1]
	}
	pos := t / c.Duration * float64(n-1)
	i := int(pos)
	if i >= n-1 {
		return c.Samples[n-1]
	}
	return c.Samples[i].Lerp(c.Samples[i+1], float32(pos-float64(i)))
}
