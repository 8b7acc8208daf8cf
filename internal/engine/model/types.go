// Package model converts imported meshes into interleaved vertex buffers.
package model

import "fmt"

// Attribute is one named component group of an interleaved vertex.
type Attribute struct {
	Name       string
	Components int
	// Offset is in floats from the start of the vertex.
	Offset int
}

// Layout describes the interleaved vertex format of a buffer.
type Layout []Attribute

// PositionTexcoordNormal is the layout every extracted mesh uses.
var PositionTexcoordNormal = Layout{
	{Name: "position", Components: 3, Offset: 0},
	{Name: "texcoord", Components: 2, Offset: 3},
	{Name: "normal", Components: 3, Offset: 5},
}

// Stride returns the vertex size in floats.
func (l Layout) Stride() int {
	n := 0
	for _, a := range l {
		n += a.Components
	}
	return n
}

// Attribute looks up an attribute by name.
func (l Layout) Attribute(name string) (Attribute, bool) {
	for _, a := range l {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Vertex is a decoded vertex of the default layout.
type Vertex struct {
	Position [3]float32
	TexCoord [2]float32
	Normal   [3]float32
}

// Bounds holds the axis-aligned bounding box of a mesh.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// VertexBuffer holds interleaved vertex data and a triangle index list.
type VertexBuffer struct {
	Layout      Layout
	Data        []float32
	Indices     []uint32
	VertexCount int
	Bounds      Bounds
}

// MeshExtractionError reports a mesh that lacks a per-vertex attribute the
// layout requires.
type MeshExtractionError struct {
	Mesh      string
	Attribute string
}

func (e *MeshExtractionError) Error() string {
	return fmt.Sprintf("mesh %q: missing per-vertex %s data", e.Mesh, e.Attribute)
}
