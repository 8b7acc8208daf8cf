// Package system implements the host tick loop that drives subsystems over
// a document.
package system

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/asset3d/internal/asset3d"
	"github.com/Faultbox/asset3d/internal/document"
	"github.com/Faultbox/asset3d/internal/engine/animation"
	"github.com/Faultbox/asset3d/internal/logger"
)

// Subsystem reacts to changes of one property key and does deferred work
// once per tick.
type Subsystem interface {
	PropertyKey() string
	OnPropertyValueChange(doc *document.Document, refs []document.PropRef)
	Update(doc *document.Document)
	Close()
}

type playback struct {
	owner document.EntityID
	set   *animation.TrackSet
	start time.Duration
}

// System owns a document and the subsystems attached to it.
type System struct {
	doc        *document.Document
	subsystems []Subsystem
	playing    []playback
	elapsed    time.Duration
	ticks      int
	log        *zap.Logger
}

// New creates a system around an empty document.
func New(log *zap.Logger) *System {
	if log == nil {
		log = logger.Named("system")
	}
	return &System{doc: document.New(), log: log}
}

// Document returns the owned document.
func (s *System) Document() *document.Document {
	return s.doc
}

// Add attaches a subsystem.
func (s *System) Add(sub Subsystem) {
	s.subsystems = append(s.subsystems, sub)
}

// Elapsed returns the simulated time since the first tick.
func (s *System) Elapsed() time.Duration {
	return s.elapsed
}

// Tick advances the system by dt:
//  1. property changes since the last tick go to the subsystems watching them
//  2. every subsystem updates
//  3. playing animations are sampled into their targets
//
// Tracks whose target cannot be found are logged and skipped.
func (s *System) Tick(dt time.Duration) {
	s.elapsed += dt
	s.ticks++

	changes := s.doc.TakeChanges()
	for _, sub := range s.subsystems {
		var refs []document.PropRef
		for _, ref := range changes {
			if ref.Property == sub.PropertyKey() {
				refs = append(refs, ref)
			}
		}
		if len(refs) > 0 {
			sub.OnPropertyValueChange(s.doc, refs)
		}
	}

	for _, sub := range s.subsystems {
		sub.Update(s.doc)
	}

	for _, p := range s.playing {
		// unresolved targets are skipped, the rest of the set still applies
		if err := p.set.Apply(s.doc, p.owner, s.elapsed-p.start); err != nil {
			s.log.Warn("Animation tracks not applied",
				zap.String("animation", p.set.Name),
				zap.Int64("entity", int64(p.owner)),
				zap.Error(err))
		}
	}
}

// Play starts the named animation bound on owner. Its clock starts at the
// current elapsed time.
func (s *System) Play(owner document.EntityID, name string) error {
	v, err := s.doc.Eval(owner, asset3d.PropAnimation+name)
	if err != nil {
		return err
	}
	rv, ok := v.(document.ResourceValue)
	if !ok {
		return fmt.Errorf("animation %s: not a resource: %s", name, document.Describe(v))
	}
	set, ok := rv.Data.(*animation.TrackSet)
	if !ok {
		return fmt.Errorf("animation %s: resource %s is %T", name, rv.Key, rv.Data)
	}

	s.playing = append(s.playing, playback{owner: owner, set: set, start: s.elapsed})
	s.log.Debug("Playing animation",
		zap.String("name", name),
		zap.Int64("entity", int64(owner)),
		zap.Duration("duration", set.Duration()))
	return nil
}

// Run ticks every interval until ctx is done or done reports true.
func (s *System) Run(ctx context.Context, interval time.Duration, done func() bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Starting tick loop", zap.Duration("interval", interval))
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			s.Tick(dt)
			if done != nil && done() {
				s.log.Debug("Tick loop finished", zap.Int("ticks", s.ticks))
				return nil
			}
		}
	}
}

// Close closes every subsystem.
func (s *System) Close() {
	for _, sub := range s.subsystems {
		sub.Close()
	}
	s.subsystems = nil
}
