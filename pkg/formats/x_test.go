package formats

import (
	"errors"
	"testing"
)

const xSample = `xof 0303txt 0032
// exported by hand
template Vector {
 <3D82AB5E-62DA-11cf-AB39-0020AF71E433>
 FLOAT x;
 FLOAT y;
 FLOAT z;
}

AnimTicksPerSecond {
 24;
}

Frame Root {
 FrameTransformMatrix {
  1.0,0.0,0.0,0.0,0.0,1.0,0.0,0.0,0.0,0.0,1.0,0.0,5.0,6.0,7.0,1.0;;
 }

 Frame Trunk {
  Mesh TrunkMesh {
   4;
   0.0;0.0;0.0;,
   1.0;0.0;0.0;,
   1.0;1.0;0.0;,
   0.0;1.0;0.0;;
   1;
   4;0,1,2,3;;

   MeshNormals {
    1;
    0.0;0.0;1.0;;
    1;
    4;0,0,0,0;;
   }

   MeshTextureCoords {
    4;
    0.0;0.0;,
    1.0;0.0;,
    1.0;1.0;,
    0.0;1.0;;
   }

   MeshMaterialList {
    1;
    1;
    0;;
    { LeafMaterial }
   }
  }
 }
}

AnimationSet sway {
 Animation {
  { Trunk }
  AnimationKey {
   2;
   2;
   0;3;0.0,0.0,0.0;;,
   48;3;0.0,2.0,0.0;;;
  }
  AnimationKey {
   0;
   1;
   0;4;1.0,0.0,0.0,0.0;;;
  }
 }
}
`

func TestParseX(t *testing.T) {
	x, err := ParseX([]byte(xSample))
	if err != nil {
		t.Fatalf("ParseX: %v", err)
	}

	if x.Version != "0303" {
		t.Errorf("Version = %q, want 0303", x.Version)
	}
	if x.TicksPerSecond != 24 {
		t.Errorf("TicksPerSecond = %v, want 24", x.TicksPerSecond)
	}
	if len(x.Frames) != 1 || x.Frames[0].Name != "Root" {
		t.Fatalf("expected one top-level frame Root, got %+v", x.Frames)
	}

	root := x.Frames[0]
	if root.Transform[12] != 5 || root.Transform[13] != 6 || root.Transform[14] != 7 {
		t.Errorf("Root translation = %v", root.Transform[12:15])
	}
	if len(root.Children) != 1 || root.Children[0].Name != "Trunk" {
		t.Fatalf("expected child frame Trunk, got %+v", root.Children)
	}

	trunk := root.Children[0]
	if trunk.Transform != xIdentity() {
		t.Errorf("frame without FrameTransformMatrix should default to identity")
	}
	if len(trunk.Meshes) != 1 {
		t.Fatalf("expected one mesh on Trunk, got %d", len(trunk.Meshes))
	}

	mesh := trunk.Meshes[0]
	if len(mesh.Positions) != 4 {
		t.Errorf("positions = %d, want 4", len(mesh.Positions))
	}
	if len(mesh.Faces) != 1 || len(mesh.Faces[0]) != 4 {
		t.Errorf("faces = %v, want one quad", mesh.Faces)
	}
	if len(mesh.Normals) != 1 || len(mesh.NormalFaces) != 1 {
		t.Errorf("normals = %v / %v", mesh.Normals, mesh.NormalFaces)
	}
	if len(mesh.TexCoords) != 4 || mesh.TexCoords[2] != [2]float32{1, 1} {
		t.Errorf("texcoords = %v", mesh.TexCoords)
	}

	if len(x.AnimationSets) != 1 {
		t.Fatalf("expected one animation set, got %d", len(x.AnimationSets))
	}
	set := x.AnimationSets[0]
	if set.Name != "sway" || len(set.Animations) != 1 {
		t.Fatalf("animation set = %+v", set)
	}
	anim := set.Animations[0]
	if anim.FrameName != "Trunk" {
		t.Errorf("FrameName = %q, want Trunk", anim.FrameName)
	}
	if len(anim.Keys) != 2 {
		t.Fatalf("keys = %d, want 2", len(anim.Keys))
	}
	pos := anim.Keys[0]
	if pos.Type != XKeyPosition || len(pos.Keys) != 2 || pos.Keys[1].Time != 48 || pos.Keys[1].Values[1] != 2 {
		t.Errorf("position key = %+v", pos)
	}
	if anim.Keys[1].Type != XKeyRotation || anim.Keys[1].Keys[0].Values[0] != 1 {
		t.Errorf("rotation key = %+v", anim.Keys[1])
	}
}

func TestParseX_HeaderValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"empty", "", ErrTruncatedXData},
		{"short", "xof 0303", ErrTruncatedXData},
		{"bad magic", "abc 0303txt 0032\n", ErrInvalidXHeader},
		{"binary", "xof 0303bin 0032\n", ErrUnsupportedXFormat},
		{"compressed", "xof 0303tzip0032\n", ErrUnsupportedXFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseX([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseX error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseX_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unterminated frame", "Frame A {\n Frame B {\n}\n"},
		{"short vertex list", "Mesh M {\n 3;\n 0.0;0.0;0.0;;\n}\n"},
		{"face index out of range", "Mesh M {\n 1;\n 0.0;0.0;0.0;;\n 1;\n 3;0,1,2;;\n}\n"},
		{"wrong key arity", "AnimationSet s {\n Animation {\n {A}\n AnimationKey {\n 2;\n 1;\n 0;2;1.0,2.0;;;\n }\n }\n}\n"},
		{"animation without frame", "AnimationSet s {\n Animation {\n AnimationKey {\n 1;\n 0;\n }\n }\n}\n"},
		{"stray token", "; Frame A {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseX([]byte("xof 0303txt 0032\n" + tt.body)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseX_OversizedCounts(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"positions", "Mesh m {\n 4000000000;\n 0.0;0.0;0.0;;\n}\n"},
		{"faces", "Mesh m {\n 1;\n 0.0;0.0;0.0;;\n 4000000000;\n 3;0,0,0;;\n}\n"},
		{"face corners", "Mesh m {\n 1;\n 0.0;0.0;0.0;;\n 1;\n 4000000000;0,0,0;;\n}\n"},
		{"normals", "Mesh m {\n 1;\n 0.0;0.0;0.0;;\n 1;\n 3;0,0,0;;\n MeshNormals { 4000000000; 0.0;0.0;1.0;; }\n}\n"},
		{"texcoords", "Mesh m {\n 1;\n 0.0;0.0;0.0;;\n 1;\n 3;0,0,0;;\n MeshTextureCoords { 4000000000; 0.0;0.0;; }\n}\n"},
		{"keys", "AnimationSet s {\n Animation {\n {A}\n AnimationKey {\n 2;\n 4000000000;\n 0;3;0.0,0.0,0.0;;;\n }\n }\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseX([]byte("xof 0303txt 0032\n" + tt.body))
			if !errors.Is(err, ErrTruncatedXData) {
				t.Errorf("ParseX error = %v, want %v", err, ErrTruncatedXData)
			}
		})
	}
}

func TestXKeyTypeString(t *testing.T) {
	if XKeyMatrix.String() != "Matrix" {
		t.Errorf("XKeyMatrix.String() = %q", XKeyMatrix.String())
	}
	if XKeyType(9).String() != "Unknown(9)" {
		t.Errorf("XKeyType(9).String() = %q", XKeyType(9).String())
	}
}
