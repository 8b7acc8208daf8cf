package importer

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/asset3d/pkg/math"
	"github.com/Faultbox/asset3d/pkg/scene"
)

// gltfTicksPerSecond is the tick rate used for glTF keyframe times, which
// are stored in seconds.
const gltfTicksPerSecond = 1000

type gltfBackend struct{}

func (gltfBackend) Formats() []string { return []string{"gltf", "glb"} }

func (gltfBackend) ImportFile(path string) (*scene.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening glTF document")
	}
	return sceneFromGLTF(doc)
}

func (gltfBackend) ImportBytes(data []byte, _ string) (*scene.Scene, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "decoding glTF document")
	}
	return sceneFromGLTF(doc)
}

// optionalIndex reads an index field the document may omit.
func optionalIndex(p *uint32) (int, bool) {
	if p == nil {
		return 0, false
	}
	return int(*p), true
}

func sceneFromGLTF(doc *gltf.Document) (*scene.Scene, error) {
	sc := &scene.Scene{}

	// One scene mesh per primitive.
	meshMap := make([][]int, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			m, err := meshFromPrimitive(doc, prim)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %d (%s) primitive %d", mi, gm.Name, pi)
			}
			m.Name = gm.Name
			meshMap[mi] = append(meshMap[mi], len(sc.Meshes))
			sc.Meshes = append(sc.Meshes, m)
		}
	}

	roots, err := gltfRoots(doc)
	if err != nil {
		return nil, err
	}

	visiting := make(map[int]bool)
	var convert func(idx int) (*scene.Node, error)
	convert = func(idx int) (*scene.Node, error) {
		if idx < 0 || idx >= len(doc.Nodes) {
			return nil, errors.Errorf("node index %d out of range", idx)
		}
		if visiting[idx] {
			return nil, errors.Errorf("node %d is its own ancestor", idx)
		}
		visiting[idx] = true
		defer delete(visiting, idx)

		gn := doc.Nodes[idx]
		node := &scene.Node{Name: gn.Name, Transform: gltfNodeTransform(gn)}
		if node.Name == "" {
			node.Name = fmt.Sprintf("node%d", idx)
		}
		if mi, ok := optionalIndex(gn.Mesh); ok {
			if mi >= len(meshMap) {
				return nil, errors.Errorf("node %d: mesh index %d out of range", idx, mi)
			}
			node.Meshes = append(node.Meshes, meshMap[mi]...)
		}
		for _, c := range gn.Children {
			child, err := convert(int(c))
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
		return node, nil
	}

	if len(roots) == 1 {
		if sc.Root, err = convert(roots[0]); err != nil {
			return nil, err
		}
	} else {
		sc.Root = &scene.Node{Name: "$root", Transform: math.Identity()}
		for _, r := range roots {
			child, err := convert(r)
			if err != nil {
				return nil, err
			}
			sc.Root.Children = append(sc.Root.Children, child)
		}
	}

	for ai, ga := range doc.Animations {
		anim, err := animationFromGLTF(doc, ga, ai)
		if err != nil {
			return nil, errors.Wrapf(err, "animation %d (%s)", ai, ga.Name)
		}
		sc.Animations = append(sc.Animations, anim)
	}
	return sc, nil
}

// gltfRoots returns the root nodes of the default scene, or every parentless
// node when the document declares no scenes.
func gltfRoots(doc *gltf.Document) ([]int, error) {
	if len(doc.Scenes) > 0 {
		si := 0
		if doc.Scene != nil {
			si = int(*doc.Scene)
		}
		if si >= len(doc.Scenes) {
			return nil, errors.Errorf("default scene %d out of range", si)
		}
		roots := make([]int, 0, len(doc.Scenes[si].Nodes))
		for _, n := range doc.Scenes[si].Nodes {
			roots = append(roots, int(n))
		}
		if len(roots) == 0 {
			return nil, errors.New("default scene has no nodes")
		}
		return roots, nil
	}

	isChild := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[int(c)] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	if len(roots) == 0 {
		return nil, errors.New("document has no nodes")
	}
	return roots, nil
}

func gltfNodeTransform(n *gltf.Node) math.Mat4 {
	m := math.Mat4(n.Matrix)
	if m != (math.Mat4{}) && m != math.Identity() {
		return m
	}

	t := n.Translation
	s := n.Scale
	if s == [3]float32{} {
		s = [3]float32{1, 1, 1}
	}
	r := math.Quat{X: n.Rotation[0], Y: n.Rotation[1], Z: n.Rotation[2], W: n.Rotation[3]}
	if r == (math.Quat{}) {
		r = math.QuatIdentity()
	}
	return math.MulAll(math.Translate(t[0], t[1], t[2]), r.ToMat4(), math.Scale(s[0], s[1], s[2]))
}

func gltfAccessor(doc *gltf.Document, idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, errors.Errorf("accessor %d out of range", idx)
	}
	return doc.Accessors[idx], nil
}

// meshFromPrimitive reads positions, normals, the first texture coordinate
// set and indices. Missing normals or texcoords are left empty.
func meshFromPrimitive(doc *gltf.Document, prim *gltf.Primitive) (*scene.Mesh, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, errors.Errorf("unsupported primitive mode %v", prim.Mode)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, errors.New("primitive has no POSITION attribute")
	}
	acr, err := gltfAccessor(doc, int(posIdx))
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "reading positions")
	}

	m := &scene.Mesh{Vertices: make([]math.Vec3, len(positions))}
	for i, p := range positions {
		m.Vertices[i] = math.Vec3FromArray(p)
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acr, err := gltfAccessor(doc, int(idx))
		if err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrap(err, "reading normals")
		}
		m.Normals = make([]math.Vec3, len(normals))
		for i, n := range normals {
			m.Normals[i] = math.Vec3FromArray(n)
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acr, err := gltfAccessor(doc, int(idx))
		if err != nil {
			return nil, err
		}
		if m.TexCoords, err = modeler.ReadTextureCoord(doc, acr, nil); err != nil {
			return nil, errors.Wrap(err, "reading texture coordinates")
		}
	}

	var indices []uint32
	if idx, ok := optionalIndex(prim.Indices); ok {
		acr, err := gltfAccessor(doc, idx)
		if err != nil {
			return nil, err
		}
		if indices, err = modeler.ReadIndices(doc, acr, nil); err != nil {
			return nil, errors.Wrap(err, "reading indices")
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return nil, errors.Errorf("%d indices is not a triangle list", len(indices))
	}
	for i := 0; i < len(indices); i += 3 {
		m.Faces = append(m.Faces, []uint32{indices[i], indices[i+1], indices[i+2]})
	}
	return m, nil
}

func animationFromGLTF(doc *gltf.Document, ga *gltf.Animation, index int) (*scene.Animation, error) {
	anim := &scene.Animation{Name: ga.Name, TicksPerSecond: gltfTicksPerSecond}
	if anim.Name == "" {
		anim.Name = fmt.Sprintf("anim%d", index)
	}

	channels := make(map[int]*scene.NodeAnimation)
	for ci, ch := range ga.Channels {
		// channels without a node target an extension
		nodeIdx, ok := optionalIndex(ch.Target.Node)
		if !ok {
			continue
		}
		if nodeIdx >= len(doc.Nodes) {
			return nil, errors.Errorf("channel %d: node %d out of range", ci, nodeIdx)
		}
		si, ok := optionalIndex(ch.Sampler)
		if !ok || si >= len(ga.Samplers) {
			return nil, errors.Errorf("channel %d: invalid sampler", ci)
		}
		sampler := ga.Samplers[si]

		inIdx, ok := optionalIndex(sampler.Input)
		if !ok {
			return nil, errors.Errorf("channel %d: sampler has no input", ci)
		}
		outIdx, ok := optionalIndex(sampler.Output)
		if !ok {
			return nil, errors.Errorf("channel %d: sampler has no output", ci)
		}
		times, err := readGLTFAccessor[[]float32](doc, inIdx)
		if err != nil {
			return nil, errors.Wrapf(err, "channel %d input", ci)
		}
		cubic := sampler.Interpolation == gltf.InterpolationCubicSpline

		target, ok := channels[nodeIdx]
		if !ok {
			name := doc.Nodes[nodeIdx].Name
			if name == "" {
				name = fmt.Sprintf("node%d", nodeIdx)
			}
			target = &scene.NodeAnimation{NodeName: name}
			channels[nodeIdx] = target
			anim.Channels = append(anim.Channels, target)
		}

		switch ch.Target.Path {
		case gltf.TRSTranslation, gltf.TRSScale:
			values, err := readGLTFAccessor[[][3]float32](doc, outIdx)
			if err != nil {
				return nil, errors.Wrapf(err, "channel %d output", ci)
			}
			values = splineValues(values, cubic)
			if len(values) != len(times) {
				return nil, errors.Errorf("channel %d: %d times for %d values", ci, len(times), len(values))
			}
			keys := make([]scene.VectorKey, len(times))
			for i := range times {
				keys[i] = scene.VectorKey{Time: float64(times[i]) * gltfTicksPerSecond, Value: math.Vec3FromArray(values[i])}
			}
			if ch.Target.Path == gltf.TRSTranslation {
				target.PositionKeys = keys
			} else {
				target.ScalingKeys = keys
			}
		case gltf.TRSRotation:
			values, err := readGLTFAccessor[[][4]float32](doc, outIdx)
			if err != nil {
				return nil, errors.Wrapf(err, "channel %d output", ci)
			}
			values = splineValues(values, cubic)
			if len(values) != len(times) {
				return nil, errors.Errorf("channel %d: %d times for %d values", ci, len(times), len(values))
			}
			keys := make([]scene.QuatKey, len(times))
			for i := range times {
				v := values[i]
				keys[i] = scene.QuatKey{Time: float64(times[i]) * gltfTicksPerSecond, Value: math.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}}
			}
			target.RotationKeys = keys
		default:
			// morph target weights are not animated
			continue
		}

		for _, t := range times {
			if ticks := float64(t) * gltfTicksPerSecond; ticks > anim.Duration {
				anim.Duration = ticks
			}
		}
	}
	return anim, nil
}

func readGLTFAccessor[T any](doc *gltf.Document, idx int) (T, error) {
	var zero T
	acr, err := gltfAccessor(doc, idx)
	if err != nil {
		return zero, err
	}
	data, err := modeler.ReadAccessor(doc, acr, nil)
	if err != nil {
		return zero, err
	}
	v, ok := data.(T)
	if !ok {
		return zero, errors.Errorf("accessor %d holds %T, want %T", idx, data, zero)
	}
	return v, nil
}

// splineValues keeps the value element of each in-tangent/value/out-tangent
// triple of a cubic-spline sampler.
func splineValues[T any](values []T, cubic bool) []T {
	if !cubic {
		return values
	}
	out := make([]T, 0, len(values)/3)
	for i := 1; i < len(values); i += 3 {
		out = append(out, values[i])
	}
	return out
}
