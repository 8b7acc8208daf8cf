package animation

import (
	"time"

	"github.com/Faultbox/asset3d/internal/document"
	"github.com/Faultbox/asset3d/pkg/scene"
)

// DefaultSampleRate is the baking rate in samples per second.
const DefaultSampleRate = 60

// Properties written by baked tracks.
const (
	PropTranslation = "translation"
	PropRotation    = "rotation"
	PropScale       = "scale"
)

// BakeOptions controls curve baking.
type BakeOptions struct {
	// SampleRate in samples per second. Zero means DefaultSampleRate.
	SampleRate float64
	// SlerpRotation interpolates rotation keys spherically instead of
	// component-wise.
	SlerpRotation bool
}

var (
	identityTranslation = Animatable{0, 0, 0}
	identityRotation    = Animatable{1, 0, 0, 0}
	identityScale       = Animatable{1, 1, 1}
)

// Bake converts every channel of anim into translation, rotation and scale
// tracks, in that order. Each track targets the entity named after the
// channel's node, searched from the entity that owns the track set.
func Bake(anim *scene.Animation, opts BakeOptions) *TrackSet {
	rate := opts.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	tps := anim.TicksPerSecond
	if tps <= 0 {
		tps = 1
	}

	// Truncated to whole milliseconds.
	durationMs := int64(anim.Duration * 1000 / tps)
	duration := time.Duration(durationMs) * time.Millisecond
	seconds := float64(durationMs) / 1000

	rotInterp := Linear
	if opts.SlerpRotation {
		rotInterp = Spherical
	}

	ts := &TrackSet{Name: anim.Name}
	for _, ch := range anim.Channels {
		target := document.Search{Base: document.This{}, Name: ch.NodeName}
		add := func(keys []Key, interp Interpolation, identity Animatable, prop string) {
			if len(keys) == 0 {
				keys = []Key{{Time: 0, Value: identity}}
			}
			curve := NewLinearKeyFrameCurve(keys, interp)
			ts.Tracks = append(ts.Tracks, CurveTrack{
				Curve:     Discretize(curve, seconds, rate),
				Property:  document.NamedPropRef{Entity: target, Property: prop},
				Loop:      LoopForever,
				Duration:  duration,
				CurveTime: CurveTimeAbsolute,
			})
		}
		add(vectorKeys(ch.PositionKeys, tps), Linear, identityTranslation, PropTranslation)
		add(quatKeys(ch.RotationKeys, tps), rotInterp, identityRotation, PropRotation)
		add(vectorKeys(ch.ScalingKeys, tps), Linear, identityScale, PropScale)
	}
	return ts
}

func vectorKeys(keys []scene.VectorKey, tps float64) []Key {
	out := make([]Key, len(keys))
	for i, k := range keys {
		out[i] = Key{Time: k.Time / tps, Value: Animatable{k.Value.X, k.Value.Y, k.Value.Z}}
	}
	return out
}

func quatKeys(keys []scene.QuatKey, tps float64) []Key {
	out := make([]Key, len(keys))
	for i, k := range keys {
		wxyz := k.Value.WXYZ()
		out[i] = Key{Time: k.Time / tps, Value: wxyz[:]}
	}
	return out
}
