package document

import (
	"fmt"
	"strings"

	"github.com/Faultbox/asset3d/pkg/math"
)

// Value is a property value. The set of implementations is closed.
type Value interface {
	Kind() string
	isValue()
}

// String is a literal string.
type String string

// Float is a literal number.
type Float float32

// Bool is a literal boolean.
type Bool bool

// Vector3 is a literal 3-vector.
type Vector3 [3]float32

// Vector4 is a literal 4-vector. Rotations are stored as (w, x, y, z).
type Vector4 [4]float32

// Matrix4 is a literal column-major 4x4 matrix.
type Matrix4 math.Mat4

// Array is an ordered list of values.
type Array []Value

// Reference resolves to another entity's property when evaluated.
type Reference struct {
	NamedPropRef
}

// Typed is an invocation of a registered function on an argument.
type Typed struct {
	Type string
	Data Value
}

// ResourceValue is the result of resolving a resource key.
type ResourceValue struct {
	Key  string
	Data any
}

func (String) Kind() string        { return "string" }
func (Float) Kind() string         { return "float" }
func (Bool) Kind() string          { return "bool" }
func (Vector3) Kind() string       { return "vec3" }
func (Vector4) Kind() string       { return "vec4" }
func (Matrix4) Kind() string       { return "mat4" }
func (Array) Kind() string         { return "array" }
func (Reference) Kind() string     { return "reference" }
func (Typed) Kind() string         { return "typed" }
func (ResourceValue) Kind() string { return "resource" }

func (String) isValue()        {}
func (Float) isValue()         {}
func (Bool) isValue()          {}
func (Vector3) isValue()       {}
func (Vector4) isValue()       {}
func (Matrix4) isValue()       {}
func (Array) isValue()         {}
func (Reference) isValue()     {}
func (Typed) isValue()         {}
func (ResourceValue) isValue() {}

// Ref builds a dependency reference.
func Ref(path EntityPath, property string) Reference {
	return Reference{NamedPropRef{Entity: path, Property: property}}
}

// NewTyped builds a typed invocation.
func NewTyped(typ string, data Value) Typed {
	return Typed{Type: typ, Data: data}
}

// Describe formats a value for display.
func Describe(v Value) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case String:
		return fmt.Sprintf("%q", string(x))
	case Float:
		return fmt.Sprintf("%g", float32(x))
	case Bool:
		return fmt.Sprintf("%t", bool(x))
	case Vector3:
		return fmt.Sprintf("vec3(%g, %g, %g)", x[0], x[1], x[2])
	case Vector4:
		return fmt.Sprintf("vec4(%g, %g, %g, %g)", x[0], x[1], x[2], x[3])
	case Matrix4:
		return fmt.Sprintf("mat4%v", [16]float32(x))
	case Array:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Describe(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Reference:
		return "@" + x.NamedPropRef.String()
	case Typed:
		return x.Type + " " + Describe(x.Data)
	case ResourceValue:
		return fmt.Sprintf("resource(%s: %T)", x.Key, x.Data)
	}
	return fmt.Sprintf("%v", v)
}
