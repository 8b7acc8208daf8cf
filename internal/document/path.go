package document

import "fmt"

// EntityPath locates an entity relative to the entity that owns a property.
type EntityPath interface {
	fmt.Stringer
	isPath()
}

// This is the owning entity.
type This struct{}

// Parent is the owning entity's parent.
type Parent struct{}

// Search finds the first entity named Name in Base or its descendants,
// depth-first, Base itself included.
type Search struct {
	Base EntityPath
	Name string
}

func (This) String() string   { return "this" }
func (Parent) String() string { return "parent" }
func (s Search) String() string {
	base := "this"
	if s.Base != nil {
		base = s.Base.String()
	}
	return fmt.Sprintf("%s:%s", base, s.Name)
}

func (This) isPath()   {}
func (Parent) isPath() {}
func (Search) isPath() {}

// NamedPropRef names a property of an entity located by path.
type NamedPropRef struct {
	Entity   EntityPath
	Property string
}

func (r NamedPropRef) String() string {
	return fmt.Sprintf("%s.%s", r.Entity, r.Property)
}

// PropRef names a property of a concrete entity.
type PropRef struct {
	Entity   EntityID
	Property string
}

// ResolvePath returns the entity path points at when evaluated from from.
func (d *Document) ResolvePath(from EntityID, path EntityPath) (EntityID, error) {
	e, ok := d.entities[from]
	if !ok {
		return NoEntity, fmt.Errorf("%w: %d", ErrEntityNotFound, from)
	}

	switch p := path.(type) {
	case nil, This:
		return from, nil
	case Parent:
		if e.parent == NoEntity {
			return NoEntity, fmt.Errorf("%w: entity %d has no parent", ErrEntityNotFound, from)
		}
		return e.parent, nil
	case Search:
		base, err := d.ResolvePath(from, p.Base)
		if err != nil {
			return NoEntity, err
		}
		if id, ok := d.Search(base, p.Name); ok {
			return id, nil
		}
		return NoEntity, fmt.Errorf("%w: no entity named %q below %d", ErrEntityNotFound, p.Name, base)
	}
	return NoEntity, fmt.Errorf("unknown entity path %T", path)
}

// Search returns the first entity named name in from's subtree, depth-first,
// from itself included.
func (d *Document) Search(from EntityID, name string) (EntityID, bool) {
	e, ok := d.entities[from]
	if !ok {
		return NoEntity, false
	}
	if e.name == name {
		return from, true
	}
	for _, c := range e.children {
		if id, ok := d.Search(c, name); ok {
			return id, true
		}
	}
	return NoEntity, false
}

// FindByName searches every root in creation order.
func (d *Document) FindByName(name string) (EntityID, bool) {
	for _, r := range d.roots {
		if id, ok := d.Search(r, name); ok {
			return id, true
		}
	}
	return NoEntity, false
}
