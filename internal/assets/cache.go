package assets

import (
	"github.com/Faultbox/asset3d/internal/asset3d"
	"github.com/Faultbox/asset3d/internal/async"
	"github.com/Faultbox/asset3d/internal/document"
)

// State is the load state of a cache key.
type State int

const (
	StateUnrequested State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unrequested"
	}
}

// entry is one cache slot. Loading entries hold the promise and the
// entities waiting for it; Loaded and Failed are terminal.
type entry struct {
	state   State
	promise *async.Promise[*asset3d.Asset3d]
	pending []document.EntityID

	asset *asset3d.Asset3d
	err   error

	// resources is set once the asset's resources are in the document.
	resources bool
}

// Cache maps resolved load paths to entries. Nothing is ever evicted.
type Cache struct {
	entries map[string]*entry
	// loading preserves dispatch order for polling.
	loading []string

	stats Stats
}

// Stats counts subsystem activity since creation.
type Stats struct {
	// Requests is the number of accepted load requests.
	Requests int
	// Imports is the number of background loads dispatched.
	Imports int
	// Hits is the number of requests served by an existing entry.
	Hits int
	// Failures is the number of background loads that failed.
	Failures int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
	}
}

// get returns the entry for key, counting a hit when it exists.
func (c *Cache) get(key string) (*entry, bool) {
	e, ok := c.entries[key]
	if ok {
		c.stats.Hits++
	}
	return e, ok
}

func (c *Cache) startLoading(key string, p *async.Promise[*asset3d.Asset3d]) *entry {
	e := &entry{state: StateLoading, promise: p}
	c.entries[key] = e
	c.loading = append(c.loading, key)
	c.stats.Imports++
	return e
}

// State returns the state of key.
func (c *Cache) State(key string) State {
	if e, ok := c.entries[key]; ok {
		return e.state
	}
	return StateUnrequested
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	return c.stats
}
