package math

import (
	"math"
	"testing"
)

// transformPoint maps p through an affine matrix.
func transformPoint(m Mat4, p Vec3) Vec3 {
	r := m.Mul(Translate(p.X, p.Y, p.Z))
	return Vec3{r[12], r[13], r[14]}
}

func TestIdentity(t *testing.T) {
	m := Identity()
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(5, 10, 15)

	// Translation lives in column 4 (indices 12, 13, 14)
	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
}

func TestMulAllOrder(t *testing.T) {
	// Translate then scale: the point is scaled first, then moved.
	m := MulAll(Translate(10, 0, 0), Scale(2, 2, 2))
	got := transformPoint(m, Vec3{1, 1, 1})
	want := Vec3{12, 2, 2}
	if got != want {
		t.Errorf("MulAll(T, S) point = %v, want %v", got, want)
	}

	if MulAll() != Identity() {
		t.Error("MulAll() with no arguments should be identity")
	}
}

func TestDecompose(t *testing.T) {
	rot := axisAngle(Vec3{Z: 1}, math.Pi/3)
	m := MulAll(Translate(4, 5, 6), rot.ToMat4(), Scale(2, 3, 4))

	tr, r, s := m.Decompose()
	if tr != (Vec3{4, 5, 6}) {
		t.Errorf("translation = %v, want (4,5,6)", tr)
	}
	if math.Abs(float64(s.X-2)) > 1e-4 || math.Abs(float64(s.Y-3)) > 1e-4 || math.Abs(float64(s.Z-4)) > 1e-4 {
		t.Errorf("scale = %v, want (2,3,4)", s)
	}
	if math.Abs(float64(r.Dot(rot))) < 0.9999 {
		t.Errorf("rotation = %v, want %v", r, rot)
	}

	rebuilt := MulAll(Translate(tr.X, tr.Y, tr.Z), r.ToMat4(), Scale(s.X, s.Y, s.Z))
	if !rebuilt.ApproxEqual(m, 1e-4) {
		t.Errorf("recomposed matrix differs:\n got %v\nwant %v", rebuilt, m)
	}
}
