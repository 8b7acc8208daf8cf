package document

import "errors"

// ErrNestedUpdate is returned by Update when called from inside an update.
var ErrNestedUpdate = errors.New("document: nested update")

// Writer is the mutating subset shared by Document and Tx.
type Writer interface {
	AppendEntity(parent EntityID, kind, name string) (EntityID, error)
	SetProperty(id EntityID, key string, v Value) error
}

var (
	_ Writer = (*Document)(nil)
	_ Writer = (*Tx)(nil)
)

type propUndo struct {
	entity EntityID
	key    string
	old    Value
	had    bool
}

// Tx is an open batch of mutations. It is only valid inside the Update
// callback that received it.
type Tx struct {
	doc        *Document
	created    []EntityID
	undo       []propUndo
	changeMark int
}

// Update runs fn as one batch. If fn returns an error every entity it created
// and every property it set is rolled back, and the error is returned.
func (d *Document) Update(fn func(tx *Tx) error) (err error) {
	if d.tx != nil {
		return ErrNestedUpdate
	}
	tx := &Tx{doc: d, changeMark: len(d.changes)}
	d.tx = tx

	defer func() {
		d.tx = nil
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
		if err != nil {
			tx.rollback()
		}
	}()
	return fn(tx)
}

func (tx *Tx) rollback() {
	d := tx.doc
	for i := len(tx.undo) - 1; i >= 0; i-- {
		u := tx.undo[i]
		e, ok := d.entities[u.entity]
		if !ok {
			continue
		}
		if u.had {
			e.props[u.key] = u.old
		} else {
			delete(e.props, u.key)
		}
	}
	for i := len(tx.created) - 1; i >= 0; i-- {
		d.removeEntity(tx.created[i])
	}
	if tx.changeMark <= len(d.changes) {
		d.changes = d.changes[:tx.changeMark]
	}
}

// AppendEntity creates an entity that is removed again on rollback.
func (tx *Tx) AppendEntity(parent EntityID, kind, name string) (EntityID, error) {
	return tx.doc.AppendEntity(parent, kind, name)
}

// SetProperty assigns a property that is restored on rollback.
func (tx *Tx) SetProperty(id EntityID, key string, v Value) error {
	return tx.doc.SetProperty(id, key, v)
}

// Property reads a raw property, including writes made in this batch.
func (tx *Tx) Property(id EntityID, key string) (Value, error) {
	return tx.doc.Property(id, key)
}
