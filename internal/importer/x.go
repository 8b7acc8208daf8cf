package importer

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Faultbox/asset3d/pkg/formats"
	"github.com/Faultbox/asset3d/pkg/math"
	"github.com/Faultbox/asset3d/pkg/scene"
)

// defaultXTicksPerSecond applies when a file has no AnimTicksPerSecond.
const defaultXTicksPerSecond = 4800

type xBackend struct{}

func (xBackend) Formats() []string { return []string{"x"} }

func (xBackend) ImportFile(path string) (*scene.Scene, error) {
	x, err := formats.LoadX(path)
	if err != nil {
		return nil, err
	}
	return sceneFromX(x)
}

func (xBackend) ImportBytes(data []byte, _ string) (*scene.Scene, error) {
	x, err := formats.ParseX(data)
	if err != nil {
		return nil, err
	}
	return sceneFromX(x)
}

func sceneFromX(x *formats.XFile) (*scene.Scene, error) {
	if len(x.Frames) == 0 && len(x.Meshes) == 0 {
		return nil, errors.New("file contains no frames or meshes")
	}

	sc := &scene.Scene{}

	addMeshes := func(node *scene.Node, meshes []*formats.XMesh) error {
		for _, xm := range meshes {
			m, err := meshFromX(xm)
			if err != nil {
				return err
			}
			node.Meshes = append(node.Meshes, len(sc.Meshes))
			sc.Meshes = append(sc.Meshes, m)
		}
		return nil
	}

	var convert func(f *formats.XFrame) (*scene.Node, error)
	convert = func(f *formats.XFrame) (*scene.Node, error) {
		node := &scene.Node{Name: f.Name, Transform: math.Mat4(f.Transform)}
		if err := addMeshes(node, f.Meshes); err != nil {
			return nil, errors.Wrapf(err, "frame %q", f.Name)
		}
		for _, c := range f.Children {
			child, err := convert(c)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
		return node, nil
	}

	if len(x.Frames) == 1 && len(x.Meshes) == 0 {
		root, err := convert(x.Frames[0])
		if err != nil {
			return nil, err
		}
		sc.Root = root
	} else {
		sc.Root = &scene.Node{Name: "$dummy_root", Transform: math.Identity()}
		for _, f := range x.Frames {
			child, err := convert(f)
			if err != nil {
				return nil, err
			}
			sc.Root.Children = append(sc.Root.Children, child)
		}
		if err := addMeshes(sc.Root, x.Meshes); err != nil {
			return nil, err
		}
	}

	tps := x.TicksPerSecond
	if tps <= 0 {
		tps = defaultXTicksPerSecond
	}
	for i, set := range x.AnimationSets {
		sc.Animations = append(sc.Animations, animationFromX(set, i, tps))
	}
	return sc, nil
}

// meshFromX expands the mesh to one vertex per face corner, since normals
// are indexed separately from positions.
func meshFromX(xm *formats.XMesh) (*scene.Mesh, error) {
	hasNormals := len(xm.Normals) > 0
	if hasNormals && len(xm.NormalFaces) != len(xm.Faces) {
		return nil, errors.Errorf("mesh %q: %d normal faces for %d faces", xm.Name, len(xm.NormalFaces), len(xm.Faces))
	}
	hasTexCoords := len(xm.TexCoords) > 0
	if hasTexCoords && len(xm.TexCoords) != len(xm.Positions) {
		return nil, errors.Errorf("mesh %q: %d texture coordinates for %d positions", xm.Name, len(xm.TexCoords), len(xm.Positions))
	}

	m := &scene.Mesh{Name: xm.Name}
	for fi, face := range xm.Faces {
		if hasNormals && len(xm.NormalFaces[fi]) != len(face) {
			return nil, errors.Errorf("mesh %q face %d: normal face has %d corners, want %d", xm.Name, fi, len(xm.NormalFaces[fi]), len(face))
		}
		out := make([]uint32, len(face))
		for ci, idx := range face {
			out[ci] = uint32(len(m.Vertices))
			m.Vertices = append(m.Vertices, math.Vec3FromArray(xm.Positions[idx]))
			if hasNormals {
				ni := xm.NormalFaces[fi][ci]
				if int(ni) >= len(xm.Normals) {
					return nil, errors.Errorf("mesh %q face %d: normal index %d out of range", xm.Name, fi, ni)
				}
				m.Normals = append(m.Normals, math.Vec3FromArray(xm.Normals[ni]))
			}
			if hasTexCoords {
				m.TexCoords = append(m.TexCoords, xm.TexCoords[idx])
			}
		}
		m.Faces = append(m.Faces, out)
	}
	return m, nil
}

func animationFromX(set *formats.XAnimationSet, index int, tps float64) *scene.Animation {
	anim := &scene.Animation{
		Name:           set.Name,
		TicksPerSecond: tps,
	}
	if anim.Name == "" {
		anim.Name = fmt.Sprintf("anim%d", index)
	}

	for _, xa := range set.Animations {
		ch := &scene.NodeAnimation{NodeName: xa.FrameName}
		for _, key := range xa.Keys {
			for _, k := range key.Keys {
				if k.Time > anim.Duration {
					anim.Duration = k.Time
				}
				v := k.Values
				switch key.Type {
				case formats.XKeyRotation:
					ch.RotationKeys = append(ch.RotationKeys, scene.QuatKey{
						Time: k.Time, Value: math.QuatFromWXYZ([4]float32{v[0], v[1], v[2], v[3]}),
					})
				case formats.XKeyScale:
					ch.ScalingKeys = append(ch.ScalingKeys, scene.VectorKey{Time: k.Time, Value: math.Vec3{X: v[0], Y: v[1], Z: v[2]}})
				case formats.XKeyPosition:
					ch.PositionKeys = append(ch.PositionKeys, scene.VectorKey{Time: k.Time, Value: math.Vec3{X: v[0], Y: v[1], Z: v[2]}})
				case formats.XKeyMatrix:
					var m math.Mat4
					copy(m[:], v)
					t, r, s := m.Decompose()
					ch.PositionKeys = append(ch.PositionKeys, scene.VectorKey{Time: k.Time, Value: t})
					ch.RotationKeys = append(ch.RotationKeys, scene.QuatKey{Time: k.Time, Value: r})
					ch.ScalingKeys = append(ch.ScalingKeys, scene.VectorKey{Time: k.Time, Value: s})
				}
			}
		}
		anim.Channels = append(anim.Channels, ch)
	}
	return anim
}
