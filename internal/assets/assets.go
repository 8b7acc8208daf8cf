// Package assets loads 3D assets requested through entity properties.
//
// An entity requests an asset by setting the configured property key to a
// path. The first request for a path dispatches import, extraction and
// baking to a worker pool; later requests for the same path wait on that
// load or, once it has finished, are served from the cache. Finished loads
// are applied to the document on the next Update, from the goroutine that
// owns the document.
package assets

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/asset3d/internal/asset3d"
	"github.com/Faultbox/asset3d/internal/async"
	"github.com/Faultbox/asset3d/internal/config"
	"github.com/Faultbox/asset3d/internal/document"
	"github.com/Faultbox/asset3d/internal/engine/animation"
	"github.com/Faultbox/asset3d/internal/importer"
	"github.com/Faultbox/asset3d/internal/logger"
)

// ErrDuplicateLoad is returned when an entity that already carries the
// loaded marker requests a different asset.
var ErrDuplicateLoad = errors.New("entity already has an asset loaded")

// LoadFunc produces an asset from a resolved path. It runs on a worker.
type LoadFunc func(path string) (*asset3d.Asset3d, error)

// Options configures a Manager.
type Options struct {
	// Root is the directory relative request paths are resolved against.
	Root string
	// PropertyKey is the property whose changes request loads.
	PropertyKey string
	// LoadedMarker is set on an entity once its request is accepted.
	LoadedMarker string
	Workers      int
	Bake         animation.BakeOptions

	// Loader replaces the default import pipeline.
	Loader LoadFunc
	Log    *zap.Logger
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Root:         cfg.Assets.Root,
		PropertyKey:  cfg.Assets.PropertyKey,
		LoadedMarker: cfg.Assets.LoadedMarker,
		Workers:      cfg.Assets.Workers,
		Bake: animation.BakeOptions{
			SampleRate:    cfg.Animation.SampleRate,
			SlerpRotation: cfg.Animation.SlerpRotation,
		},
	}
}

// Manager is the asset loading subsystem. Apart from the workers it starts,
// it is used only from the goroutine that owns the document.
type Manager struct {
	opts   Options
	cache  *Cache
	runner *async.Runner
	log    *zap.Logger
	closed bool
}

// NewManager creates a manager and starts its worker pool. Empty options
// take the config defaults.
func NewManager(opts Options) *Manager {
	def := config.Default()
	if opts.PropertyKey == "" {
		opts.PropertyKey = def.Assets.PropertyKey
	}
	if opts.LoadedMarker == "" {
		opts.LoadedMarker = def.Assets.LoadedMarker
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Assets.Workers
	}
	if opts.Log == nil {
		opts.Log = logger.Named("assets")
	}
	if opts.Loader == nil {
		im := importer.New(opts.Log.Named("importer"))
		bake := asset3d.Options{Bake: opts.Bake}
		opts.Loader = func(path string) (*asset3d.Asset3d, error) {
			return asset3d.Load(im, path, bake)
		}
	}

	return &Manager{
		opts:   opts,
		cache:  NewCache(),
		runner: async.NewPooled(opts.Workers, opts.Log.Named("pool")),
		log:    opts.Log,
	}
}

// PropertyKey returns the property that requests loads.
func (m *Manager) PropertyKey() string {
	return m.opts.PropertyKey
}

// Resolve maps a requested path to its cache key.
func (m *Manager) Resolve(path string) string {
	if filepath.IsAbs(path) || m.opts.Root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(m.opts.Root, path)
}

// OnPropertyValueChange handles a batch of changed properties. Changes to
// other properties are ignored. Rejected requests are logged.
func (m *Manager) OnPropertyValueChange(doc *document.Document, refs []document.PropRef) {
	for _, ref := range refs {
		if ref.Property != m.opts.PropertyKey {
			continue
		}
		v, err := doc.Property(ref.Entity, ref.Property)
		if err != nil {
			m.log.Warn("Load request vanished", zap.Int64("entity", int64(ref.Entity)), zap.Error(err))
			continue
		}
		path, ok := v.(document.String)
		if !ok {
			m.log.Warn("Load request is not a path",
				zap.Int64("entity", int64(ref.Entity)),
				zap.String("value", document.Describe(v)))
			continue
		}
		// duplicates are already logged by Request
		if err := m.Request(doc, ref.Entity, string(path)); err != nil && !errors.Is(err, ErrDuplicateLoad) {
			m.log.Warn("Load request not applied",
				zap.Int64("entity", int64(ref.Entity)),
				zap.String("path", string(path)),
				zap.Error(err))
		}
	}
}

// Request loads path into entity. Depending on the cache state it starts a
// background load, joins one in flight, or applies the cached asset now.
//
// An entity whose marker already names path is left alone. One whose marker
// names another path gets ErrDuplicateLoad and keeps its bindings. A path
// whose earlier load failed returns that failure without retrying.
func (m *Manager) Request(doc *document.Document, entity document.EntityID, path string) error {
	key := m.Resolve(path)

	if marked, err := doc.Property(entity, m.opts.LoadedMarker); err == nil {
		if prev, ok := marked.(document.String); ok && string(prev) == key {
			return nil
		}
		m.log.Warn("Duplicate load ignored",
			zap.Int64("entity", int64(entity)),
			zap.String("property", m.opts.PropertyKey),
			zap.String("loaded", document.Describe(marked)),
			zap.String("requested", key))
		return fmt.Errorf("entity %d: %w", entity, ErrDuplicateLoad)
	} else if !errors.Is(err, document.ErrPropertyNotFound) {
		return err
	}

	if err := doc.SetProperty(entity, m.opts.LoadedMarker, document.String(key)); err != nil {
		return err
	}
	m.cache.stats.Requests++

	e, ok := m.cache.get(key)
	if !ok {
		m.log.Debug("Dispatching load", zap.String("path", key))
		p := async.Spawn(m.runner, func() (*asset3d.Asset3d, error) {
			return m.opts.Loader(key)
		})
		e = m.cache.startLoading(key, p)
		e.pending = append(e.pending, entity)
		return nil
	}

	switch e.state {
	case StateLoading:
		e.pending = append(e.pending, entity)
		return nil
	case StateLoaded:
		return m.apply(doc, e, entity)
	default:
		return fmt.Errorf("load %s failed earlier: %w", key, e.err)
	}
}

// Update polls loads in flight and applies every finished one to the
// entities waiting for it. It never blocks on a load and does nothing
// after Close.
func (m *Manager) Update(doc *document.Document) {
	if m.closed {
		return
	}
	still := m.cache.loading[:0]
	for _, key := range m.cache.loading {
		e := m.cache.entries[key]
		if !e.promise.TryResolve() {
			still = append(still, key)
			continue
		}

		a, err := e.promise.Result()
		pending := e.pending
		e.promise, e.pending = nil, nil
		if err != nil {
			e.state, e.err = StateFailed, err
			m.cache.stats.Failures++
			m.log.Error("Asset load failed", zap.String("path", key), zap.Error(err))
			continue
		}

		e.state, e.asset = StateLoaded, a
		m.log.Info("Asset loaded",
			zap.String("path", key),
			zap.Int("meshes", len(a.Meshes)),
			zap.Int("animations", len(a.Animations)),
			zap.Int("entities", len(pending)))
		for _, entity := range pending {
			if err := m.apply(doc, e, entity); err != nil {
				m.log.Error("Applying asset failed",
					zap.String("path", key),
					zap.Int64("entity", int64(entity)),
					zap.Error(err))
			}
		}
	}
	m.cache.loading = still
}

// apply registers the asset's resources once and maps its scene below
// entity in a single document transaction.
func (m *Manager) apply(doc *document.Document, e *entry, entity document.EntityID) error {
	if !e.resources {
		e.asset.AddResources(doc)
		e.resources = true
	}
	return doc.Update(func(tx *document.Tx) error {
		_, err := e.asset.AppendToDocument(tx, entity)
		return err
	})
}

// State returns the cache state of a requested path.
func (m *Manager) State(path string) State {
	return m.cache.State(m.Resolve(path))
}

// Asset returns the loaded asset for path.
func (m *Manager) Asset(path string) (*asset3d.Asset3d, bool) {
	e, ok := m.cache.entries[m.Resolve(path)]
	if !ok || e.state != StateLoaded {
		return nil, false
	}
	return e.asset, true
}

// Loading reports whether any load is still in flight.
func (m *Manager) Loading() bool {
	return len(m.cache.loading) > 0
}

// Stats returns activity counters.
func (m *Manager) Stats() Stats {
	return m.cache.Stats()
}

// Close stops the worker pool without waiting for in-flight loads. Queued
// loads are dropped and no result is applied after Close.
func (m *Manager) Close() {
	m.closed = true
	m.runner.Close()
}
