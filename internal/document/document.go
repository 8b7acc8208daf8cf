// Package document implements the entity/property graph assets are loaded
// into.
//
// A Document holds a forest of named entities. Each entity carries string
// keyed properties whose values are literals, dependency references to other
// entities' properties, or typed invocations over sub-values. References are
// resolved only when a property is evaluated, so changes to an ancestor are
// visible to every descendant that refers to it.
//
// A Document is not safe for concurrent use. It is owned by the goroutine
// that drives the host tick.
package document

import (
	"errors"
	"fmt"
	"sort"
)

// EntityID identifies an entity within a Document.
type EntityID int64

// NoEntity is the zero EntityID. It is used as the parent of root entities.
const NoEntity EntityID = 0

var (
	// ErrEntityNotFound is returned for unknown entity ids and unresolvable paths.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrPropertyNotFound is returned when an entity has no such property.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrCycle is returned when evaluating a property depends on itself.
	ErrCycle = errors.New("dependency cycle")
)

// ResourceNotFoundError reports a lookup of an unregistered resource key.
type ResourceNotFoundError struct {
	Key string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Key)
}

type entity struct {
	id       EntityID
	parent   EntityID
	kind     string
	name     string
	children []EntityID
	props    map[string]Value
}

// Document is an entity/property graph with a resource registry.
type Document struct {
	entities  map[EntityID]*entity
	roots     []EntityID
	nextID    EntityID
	resources map[string]any
	funcs     map[string]Func
	changes   []PropRef

	// tx is the open transaction, if any.
	tx *Tx
}

// New creates an empty document with the builtin typed functions registered.
func New() *Document {
	d := &Document{
		entities:  make(map[EntityID]*entity),
		nextID:    1,
		resources: make(map[string]any),
		funcs:     make(map[string]Func),
	}
	registerBuiltins(d)
	return d
}

// AppendEntity creates an entity as the last child of parent, or as a root
// when parent is NoEntity.
func (d *Document) AppendEntity(parent EntityID, kind, name string) (EntityID, error) {
	var p *entity
	if parent != NoEntity {
		var ok bool
		if p, ok = d.entities[parent]; !ok {
			return NoEntity, fmt.Errorf("%w: parent %d", ErrEntityNotFound, parent)
		}
	}

	id := d.nextID
	d.nextID++
	d.entities[id] = &entity{
		id:     id,
		parent: parent,
		kind:   kind,
		name:   name,
		props:  make(map[string]Value),
	}
	if p != nil {
		p.children = append(p.children, id)
	} else {
		d.roots = append(d.roots, id)
	}
	if d.tx != nil {
		d.tx.created = append(d.tx.created, id)
	}
	return id, nil
}

// removeEntity deletes a childless entity. Only used for rollback.
func (d *Document) removeEntity(id EntityID) {
	e, ok := d.entities[id]
	if !ok {
		return
	}
	delete(d.entities, id)
	if e.parent == NoEntity {
		d.roots = removeID(d.roots, id)
		return
	}
	if p, ok := d.entities[e.parent]; ok {
		p.children = removeID(p.children, id)
	}
}

func removeID(ids []EntityID, id EntityID) []EntityID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// SetProperty assigns a property and records the change.
func (d *Document) SetProperty(id EntityID, key string, v Value) error {
	e, ok := d.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	if d.tx != nil {
		old, had := e.props[key]
		d.tx.undo = append(d.tx.undo, propUndo{entity: id, key: key, old: old, had: had})
	}
	e.props[key] = v
	d.changes = append(d.changes, PropRef{Entity: id, Property: key})
	return nil
}

// Property returns the raw, unevaluated value of a property.
func (d *Document) Property(id EntityID, key string) (Value, error) {
	e, ok := d.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	v, ok := e.props[key]
	if !ok {
		return nil, fmt.Errorf("%w: %d.%s", ErrPropertyNotFound, id, key)
	}
	return v, nil
}

// HasProperty reports whether the entity has the property.
func (d *Document) HasProperty(id EntityID, key string) bool {
	e, ok := d.entities[id]
	if !ok {
		return false
	}
	_, ok = e.props[key]
	return ok
}

// Properties returns the entity's property keys, sorted.
func (d *Document) Properties(id EntityID) []string {
	e, ok := d.entities[id]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(e.props))
	for k := range e.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Exists reports whether id names a live entity.
func (d *Document) Exists(id EntityID) bool {
	_, ok := d.entities[id]
	return ok
}

// Name returns the entity's name.
func (d *Document) Name(id EntityID) string {
	if e, ok := d.entities[id]; ok {
		return e.name
	}
	return ""
}

// Kind returns the entity's kind.
func (d *Document) Kind(id EntityID) string {
	if e, ok := d.entities[id]; ok {
		return e.kind
	}
	return ""
}

// Parent returns the entity's parent, or NoEntity for roots.
func (d *Document) Parent(id EntityID) EntityID {
	if e, ok := d.entities[id]; ok {
		return e.parent
	}
	return NoEntity
}

// Children returns a copy of the entity's child list.
func (d *Document) Children(id EntityID) []EntityID {
	e, ok := d.entities[id]
	if !ok {
		return nil
	}
	return append([]EntityID(nil), e.children...)
}

// Roots returns the root entities in creation order.
func (d *Document) Roots() []EntityID {
	return append([]EntityID(nil), d.roots...)
}

// Len returns the number of entities.
func (d *Document) Len() int {
	return len(d.entities)
}

// RegisterResource stores a shared resource under key, replacing any
// previous value.
func (d *Document) RegisterResource(key string, v any) {
	d.resources[key] = v
}

// Resource looks up a registered resource.
func (d *Document) Resource(key string) (any, error) {
	v, ok := d.resources[key]
	if !ok {
		return nil, &ResourceNotFoundError{Key: key}
	}
	return v, nil
}

// ResourceKeys returns every registered key, sorted.
func (d *Document) ResourceKeys() []string {
	keys := make([]string, 0, len(d.resources))
	for k := range d.resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TakeChanges returns the properties set since the last call and clears the
// list. A property set several times appears once per assignment.
func (d *Document) TakeChanges() []PropRef {
	changes := d.changes
	d.changes = nil
	return changes
}
