package model

import (
	"errors"
	"testing"

	"github.com/Faultbox/asset3d/pkg/math"
	"github.com/Faultbox/asset3d/pkg/scene"
)

func quadMesh() *scene.Mesh {
	return &scene.Mesh{
		Name: "quad",
		Vertices: []math.Vec3{
			{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 2, Y: 1, Z: -1}, {X: 0, Y: 1, Z: 0},
		},
		Normals: []math.Vec3{
			{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1},
		},
		TexCoords: [][2]float32{{0, 0}, {1, 0}, {1, 0.25}, {0, 1}},
		Faces:     [][]uint32{{0, 1, 2}, {0, 2, 3}},
	}
}

func TestExtract(t *testing.T) {
	vb, err := Extract(quadMesh(), false)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if vb.VertexCount != 4 {
		t.Errorf("VertexCount = %d, want 4", vb.VertexCount)
	}
	if len(vb.Data) != 4*8 {
		t.Errorf("len(Data) = %d, want 32", len(vb.Data))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	if len(vb.Indices) != len(want) {
		t.Fatalf("Indices = %v, want %v", vb.Indices, want)
	}
	for i := range want {
		if vb.Indices[i] != want[i] {
			t.Errorf("Indices[%d] = %d, want %d", i, vb.Indices[i], want[i])
		}
	}
	if vb.TriangleCount() != 2 {
		t.Errorf("TriangleCount = %d, want 2", vb.TriangleCount())
	}

	v := vb.Vertex(2)
	if v.Position != [3]float32{2, 1, -1} {
		t.Errorf("Position = %v", v.Position)
	}
	if v.TexCoord != [2]float32{1, 0.25} {
		t.Errorf("TexCoord = %v", v.TexCoord)
	}
	if v.Normal != [3]float32{0, 0, 1} {
		t.Errorf("Normal = %v", v.Normal)
	}

	if vb.Bounds.Min != [3]float32{0, 0, -1} || vb.Bounds.Max != [3]float32{2, 1, 0} {
		t.Errorf("Bounds = %+v", vb.Bounds)
	}
}

func TestExtract_InvertTexcoordY(t *testing.T) {
	vb, err := Extract(quadMesh(), true)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	tests := []struct {
		vertex int
		want   [2]float32
	}{
		{0, [2]float32{0, 1}},
		{2, [2]float32{1, 0.75}},
		{3, [2]float32{0, 0}},
	}
	for _, tt := range tests {
		if got := vb.Vertex(tt.vertex).TexCoord; got != tt.want {
			t.Errorf("vertex %d texcoord = %v, want %v", tt.vertex, got, tt.want)
		}
	}
}

func TestExtract_MissingAttributes(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(m *scene.Mesh)
		wantAttr string
	}{
		{"no texcoords", func(m *scene.Mesh) { m.TexCoords = nil }, "texcoord"},
		{"short texcoords", func(m *scene.Mesh) { m.TexCoords = m.TexCoords[:2] }, "texcoord"},
		{"no normals", func(m *scene.Mesh) { m.Normals = nil }, "normal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := quadMesh()
			tt.mutate(m)
			_, err := Extract(m, false)
			var me *MeshExtractionError
			if !errors.As(err, &me) {
				t.Fatalf("expected *MeshExtractionError, got %v", err)
			}
			if me.Attribute != tt.wantAttr || me.Mesh != "quad" {
				t.Errorf("error = %+v", me)
			}
		})
	}
}

func TestExtract_NonTriangle(t *testing.T) {
	m := quadMesh()
	m.Faces = [][]uint32{{0, 1, 2, 3}}
	if _, err := Extract(m, false); err == nil {
		t.Error("expected error for untriangulated face")
	}
}

func TestLayout(t *testing.T) {
	if PositionTexcoordNormal.Stride() != 8 {
		t.Errorf("Stride = %d, want 8", PositionTexcoordNormal.Stride())
	}
	a, ok := PositionTexcoordNormal.Attribute("normal")
	if !ok || a.Offset != 5 || a.Components != 3 {
		t.Errorf("normal attribute = %+v, %v", a, ok)
	}
	if _, ok := PositionTexcoordNormal.Attribute("color"); ok {
		t.Error("unexpected color attribute")
	}
}
