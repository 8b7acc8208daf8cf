package importer

import (
	"fmt"

	"github.com/Faultbox/asset3d/pkg/scene"
)

// Triangulate rewrites every mesh's faces as triangles in place. Polygons
// are fan-triangulated from their first corner; faces with fewer than three
// corners are dropped.
func Triangulate(sc *scene.Scene) error {
	for mi, m := range sc.Meshes {
		faces := make([][]uint32, 0, len(m.Faces))
		for fi, face := range m.Faces {
			for _, idx := range face {
				if int(idx) >= len(m.Vertices) {
					return fmt.Errorf("mesh %d (%s) face %d: index %d out of range", mi, m.Name, fi, idx)
				}
			}
			if len(face) < 3 {
				continue
			}
			for i := 1; i+1 < len(face); i++ {
				faces = append(faces, []uint32{face[0], face[i], face[i+1]})
			}
		}
		m.Faces = faces
	}
	return nil
}
