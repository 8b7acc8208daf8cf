package model

import (
	"fmt"

	"github.com/Faultbox/asset3d/pkg/scene"
)

// Extract copies a triangulated mesh into a PositionTexcoordNormal buffer.
// When invertY is set the V texture coordinate is stored as 1-v.
// Vertices are not welded and faces keep their source order.
func Extract(m *scene.Mesh, invertY bool) (*VertexBuffer, error) {
	if !m.HasTexCoords() {
		return nil, &MeshExtractionError{Mesh: m.Name, Attribute: "texcoord"}
	}
	if !m.HasNormals() {
		return nil, &MeshExtractionError{Mesh: m.Name, Attribute: "normal"}
	}

	layout := PositionTexcoordNormal
	stride := layout.Stride()
	vb := &VertexBuffer{
		Layout:      layout,
		Data:        make([]float32, len(m.Vertices)*stride),
		Indices:     make([]uint32, 0, len(m.Faces)*3),
		VertexCount: len(m.Vertices),
		Bounds: Bounds{
			Min: [3]float32{1e10, 1e10, 1e10},
			Max: [3]float32{-1e10, -1e10, -1e10},
		},
	}

	for i, p := range m.Vertices {
		tc := m.TexCoords[i]
		if invertY {
			tc[1] = 1 - tc[1]
		}
		n := m.Normals[i]

		base := i * stride
		copy(vb.Data[base:], []float32{p.X, p.Y, p.Z, tc[0], tc[1], n.X, n.Y, n.Z})
		updateBounds(&vb.Bounds, p.Array())
	}
	if len(m.Vertices) == 0 {
		vb.Bounds = Bounds{}
	}

	for fi, face := range m.Faces {
		if len(face) != 3 {
			return nil, fmt.Errorf("mesh %q face %d: %d corners, want 3", m.Name, fi, len(face))
		}
		vb.Indices = append(vb.Indices, face...)
	}
	return vb, nil
}

// Vertex decodes vertex i. The buffer must use PositionTexcoordNormal.
func (vb *VertexBuffer) Vertex(i int) Vertex {
	stride := vb.Layout.Stride()
	d := vb.Data[i*stride : (i+1)*stride]
	return Vertex{
		Position: [3]float32{d[0], d[1], d[2]},
		TexCoord: [2]float32{d[3], d[4]},
		Normal:   [3]float32{d[5], d[6], d[7]},
	}
}

// TriangleCount returns the number of indexed triangles.
func (vb *VertexBuffer) TriangleCount() int {
	return len(vb.Indices) / 3
}

func updateBounds(b *Bounds, p [3]float32) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}
