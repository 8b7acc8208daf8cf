// Package scene defines the in-memory scene graph produced by the importers:
// a node hierarchy, flat mesh and animation lists, and keyframe tracks.
//
// A Scene is built once by an importer and then only read. Nothing in this
// package mutates a Scene after construction.
package scene

import "github.com/Faultbox/asset3d/pkg/math"

// Scene is an imported asset's scene graph.
type Scene struct {
	Root       *Node
	Meshes     []*Mesh
	Animations []*Animation
}

// Node is a named element of the hierarchy with a local transform.
type Node struct {
	Name string
	// Transform is the node's local matrix relative to its parent (column-major).
	Transform math.Mat4
	// Meshes indexes into Scene.Meshes.
	Meshes   []int
	Children []*Node
}

// Mesh is a triangulated polygon mesh. Normals and TexCoords, when present,
// have one entry per vertex.
type Mesh struct {
	Name      string
	Vertices  []math.Vec3
	Normals   []math.Vec3
	TexCoords [][2]float32
	// Faces lists polygon corner indices. After import every face has
	// exactly three corners.
	Faces [][]uint32
}

// HasNormals reports whether every vertex carries a normal.
func (m *Mesh) HasNormals() bool {
	return len(m.Normals) > 0 && len(m.Normals) == len(m.Vertices)
}

// HasTexCoords reports whether every vertex carries a texture coordinate.
func (m *Mesh) HasTexCoords() bool {
	return len(m.TexCoords) > 0 && len(m.TexCoords) == len(m.Vertices)
}

// VectorKey is a keyframe holding a 3D vector. Time is in ticks.
type VectorKey struct {
	Time  float64
	Value math.Vec3
}

// QuatKey is a keyframe holding a rotation. Time is in ticks.
type QuatKey struct {
	Time  float64
	Value math.Quat
}

// NodeAnimation is one animation channel: the keyframes that drive a single
// node. The three key lists are timed independently and may differ in length.
type NodeAnimation struct {
	NodeName     string
	PositionKeys []VectorKey
	RotationKeys []QuatKey
	ScalingKeys  []VectorKey
}

// Animation is a named set of channels sharing a tick rate and duration.
type Animation struct {
	Name           string
	Duration       float64 // in ticks
	TicksPerSecond float64
	Channels       []*NodeAnimation
}

// FindNode returns the first node named name in depth-first pre-order.
func (s *Scene) FindNode(name string) *Node {
	if s.Root == nil {
		return nil
	}
	var found *Node
	s.Walk(func(n *Node, _ *Node) bool {
		if n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk visits every node depth-first, pre-order. fn receives the node and its
// parent (nil for the root) and returns false to stop the walk.
func (s *Scene) Walk(fn func(node, parent *Node) bool) {
	if s.Root == nil {
		return
	}
	walk(s.Root, nil, fn)
}

func walk(n, parent *Node, fn func(node, parent *Node) bool) bool {
	if !fn(n, parent) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, n, fn) {
			return false
		}
	}
	return true
}

// NodeCount returns the number of nodes in the hierarchy.
func (s *Scene) NodeCount() int {
	count := 0
	s.Walk(func(*Node, *Node) bool {
		count++
		return true
	})
	return count
}
