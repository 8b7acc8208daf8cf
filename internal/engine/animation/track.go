package animation

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/Faultbox/asset3d/internal/document"
)

// Loop is a track's repeat mode.
type Loop int

const (
	// LoopForever wraps playback time around the track duration.
	LoopForever Loop = iota
	// LoopOnce holds the last sample after the duration has elapsed.
	LoopOnce
)

func (l Loop) String() string {
	switch l {
	case LoopForever:
		return "Forever"
	case LoopOnce:
		return "Once"
	}
	return fmt.Sprintf("Loop(%d)", int(l))
}

// CurveTime is a track's time base.
type CurveTime int

const (
	// CurveTimeAbsolute samples at the elapsed playback time.
	CurveTimeAbsolute CurveTime = iota
	// CurveTimeRelative samples at the elapsed time minus the track offset.
	CurveTimeRelative
)

func (c CurveTime) String() string {
	switch c {
	case CurveTimeAbsolute:
		return "Absolute"
	case CurveTimeRelative:
		return "Relative"
	}
	return fmt.Sprintf("CurveTime(%d)", int(c))
}

// CurveTrack drives one property with a sampled curve. The target entity is
// located through Property's path from the entity that owns the track set
// each time the track is applied.
type CurveTrack struct {
	Curve     DiscreteCurve
	Offset    time.Duration
	Property  document.NamedPropRef
	Loop      Loop
	Duration  time.Duration
	CurveTime CurveTime
}

// localTime maps elapsed playback time onto the curve in seconds.
func (t *CurveTrack) localTime(elapsed time.Duration) float64 {
	if t.CurveTime == CurveTimeRelative {
		elapsed -= t.Offset
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if t.Duration <= 0 {
		return 0
	}
	if t.Loop == LoopForever {
		elapsed %= t.Duration
	} else if elapsed > t.Duration {
		elapsed = t.Duration
	}
	return elapsed.Seconds()
}

// ValueAt returns the track's value after elapsed playback time.
func (t *CurveTrack) ValueAt(elapsed time.Duration) document.Value {
	return toValue(t.Curve.Sample(t.localTime(elapsed)))
}

func toValue(a Animatable) document.Value {
	switch len(a) {
	case 1:
		return document.Float(a[0])
	case 3:
		return document.Vector3{a[0], a[1], a[2]}
	case 4:
		return document.Vector4{a[0], a[1], a[2], a[3]}
	}
	arr := make(document.Array, len(a))
	for i, f := range a {
		arr[i] = document.Float(f)
	}
	return arr
}

// TrackSet is one named animation: an ordered list of tracks.
type TrackSet struct {
	Name   string
	Tracks []CurveTrack
}

// Duration returns the longest track duration.
func (ts *TrackSet) Duration() time.Duration {
	var d time.Duration
	for i := range ts.Tracks {
		if ts.Tracks[i].Duration > d {
			d = ts.Tracks[i].Duration
		}
	}
	return d
}

// Apply writes every track's value at elapsed into its target property.
// Tracks whose target cannot be found from owner are skipped; their errors
// are combined into the returned error.
func (ts *TrackSet) Apply(doc *document.Document, owner document.EntityID, elapsed time.Duration) error {
	var errs error
	for i := range ts.Tracks {
		tr := &ts.Tracks[i]
		target, err := doc.ResolvePath(owner, tr.Property.Entity)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("track %d (%s): %w", i, tr.Property, err))
			continue
		}
		if err := doc.SetProperty(target, tr.Property.Property, tr.ValueAt(elapsed)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
