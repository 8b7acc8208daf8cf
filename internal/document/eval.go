package document

import (
	"fmt"

	"github.com/Faultbox/asset3d/pkg/math"
)

// Func implements a typed invocation. arg is already evaluated.
type Func func(d *Document, arg Value) (Value, error)

// RegisterFunc makes fn available to Typed values named name.
func (d *Document) RegisterFunc(name string, fn Func) {
	d.funcs[name] = fn
}

// Eval resolves a property to a value containing no references or typed
// invocations.
func (d *Document) Eval(id EntityID, key string) (Value, error) {
	return d.evalProp(PropRef{Entity: id, Property: key}, make(map[PropRef]bool))
}

func (d *Document) evalProp(ref PropRef, visiting map[PropRef]bool) (Value, error) {
	if visiting[ref] {
		return nil, fmt.Errorf("%w at %d.%s", ErrCycle, ref.Entity, ref.Property)
	}
	v, err := d.Property(ref.Entity, ref.Property)
	if err != nil {
		return nil, err
	}
	visiting[ref] = true
	defer delete(visiting, ref)
	return d.eval(ref.Entity, v, visiting)
}

func (d *Document) eval(owner EntityID, v Value, visiting map[PropRef]bool) (Value, error) {
	switch x := v.(type) {
	case Reference:
		target, err := d.ResolvePath(owner, x.Entity)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", x.NamedPropRef, err)
		}
		return d.evalProp(PropRef{Entity: target, Property: x.Property}, visiting)
	case Typed:
		fn, ok := d.funcs[x.Type]
		if !ok {
			return nil, fmt.Errorf("unknown typed function %q", x.Type)
		}
		arg, err := d.eval(owner, x.Data, visiting)
		if err != nil {
			return nil, err
		}
		out, err := fn(d, arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", x.Type, err)
		}
		return out, nil
	case Array:
		out := make(Array, len(x))
		for i, e := range x {
			r, err := d.eval(owner, e, visiting)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

func registerBuiltins(d *Document) {
	d.RegisterFunc("mul", evalMul)
	d.RegisterFunc("translate", func(_ *Document, arg Value) (Value, error) {
		v, ok := arg.(Vector3)
		if !ok {
			return nil, typeError("vec3", arg)
		}
		return Matrix4(math.Translate(v[0], v[1], v[2])), nil
	})
	d.RegisterFunc("scale", func(_ *Document, arg Value) (Value, error) {
		v, ok := arg.(Vector3)
		if !ok {
			return nil, typeError("vec3", arg)
		}
		return Matrix4(math.Scale(v[0], v[1], v[2])), nil
	})
	d.RegisterFunc("rotate_quaternion", func(_ *Document, arg Value) (Value, error) {
		v, ok := arg.(Vector4)
		if !ok {
			return nil, typeError("vec4", arg)
		}
		return Matrix4(math.QuatFromWXYZ(v).ToMat4()), nil
	})
	d.RegisterFunc("mesh_from_resource", resourceFunc)
	d.RegisterFunc("track_set_from_resource", resourceFunc)
}

// evalMul multiplies an array of matrices left to right.
func evalMul(_ *Document, arg Value) (Value, error) {
	arr, ok := arg.(Array)
	if !ok {
		return nil, typeError("array", arg)
	}
	out := math.Identity()
	for i, e := range arr {
		m, ok := e.(Matrix4)
		if !ok {
			return nil, fmt.Errorf("element %d: %w", i, typeError("mat4", e))
		}
		out = out.Mul(math.Mat4(m))
	}
	return Matrix4(out), nil
}

func resourceFunc(d *Document, arg Value) (Value, error) {
	key, ok := arg.(String)
	if !ok {
		return nil, typeError("string", arg)
	}
	data, err := d.Resource(string(key))
	if err != nil {
		return nil, err
	}
	return ResourceValue{Key: string(key), Data: data}, nil
}

func typeError(want string, got Value) error {
	if got == nil {
		return fmt.Errorf("expected %s, got nil", want)
	}
	return fmt.Errorf("expected %s, got %s", want, got.Kind())
}
