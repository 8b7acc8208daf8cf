// Package asset3d turns imported scenes into loaded assets: vertex buffers
// and baked track sets registered as document resources, plus the entity
// hierarchy that binds them.
package asset3d

import (
	"fmt"

	"github.com/Faultbox/asset3d/internal/document"
	"github.com/Faultbox/asset3d/internal/engine/animation"
	"github.com/Faultbox/asset3d/internal/engine/model"
	"github.com/Faultbox/asset3d/internal/importer"
	"github.com/Faultbox/asset3d/pkg/scene"
)

// Options controls the extract and bake stages.
type Options struct {
	Bake animation.BakeOptions
}

// Asset3d is a fully loaded asset. It is immutable once built and may be
// shared between goroutines.
type Asset3d struct {
	ID              string
	Scene           *scene.Scene
	InvertTexcoordY bool
	// Meshes are indexed like Scene.Meshes.
	Meshes []*model.VertexBuffer
	// Animations holds the baked track sets in scene order. Names are unique
	// within the asset.
	Animations []*animation.TrackSet
}

// Load imports path and builds the asset from it.
func Load(im *importer.Importer, path string, opts Options) (*Asset3d, error) {
	imp, err := im.ImportFile(path)
	if err != nil {
		return nil, err
	}
	return Build(imp, opts)
}

// LoadString imports an in-memory source and builds the asset from it.
func LoadString(im *importer.Importer, id, content, format string, opts Options) (*Asset3d, error) {
	imp, err := im.ImportString(id, content, format)
	if err != nil {
		return nil, err
	}
	return Build(imp, opts)
}

// Build extracts every mesh and bakes every animation of an imported scene.
// A mesh that cannot be extracted fails the whole asset.
func Build(imp *importer.Imported, opts Options) (*Asset3d, error) {
	a := &Asset3d{
		ID:              imp.ID,
		Scene:           imp.Scene,
		InvertTexcoordY: imp.InvertTexcoordY,
		Meshes:          make([]*model.VertexBuffer, len(imp.Scene.Meshes)),
	}

	for i, m := range imp.Scene.Meshes {
		vb, err := model.Extract(m, a.InvertTexcoordY)
		if err != nil {
			return nil, fmt.Errorf("asset %s: mesh %d: %w", a.ID, i, err)
		}
		a.Meshes[i] = vb
	}

	seen := make(map[string]bool)
	for i, anim := range imp.Scene.Animations {
		ts := animation.Bake(anim, opts.Bake)
		// a suffixed name may itself be taken by a later or earlier animation
		name := ts.Name
		for n := i; seen[name]; n++ {
			name = fmt.Sprintf("%s_%d", ts.Name, n)
		}
		ts.Name = name
		seen[name] = true
		a.Animations = append(a.Animations, ts)
	}
	return a, nil
}

// MeshKey returns the resource key of mesh i.
func (a *Asset3d) MeshKey(i int) string {
	return fmt.Sprintf("%s.meshes.%d", a.ID, i)
}

// AnimationKey returns the resource key of the named animation.
func (a *Asset3d) AnimationKey(name string) string {
	return fmt.Sprintf("%s.animations.%s", a.ID, name)
}

// Animation returns the named track set.
func (a *Asset3d) Animation(name string) (*animation.TrackSet, bool) {
	for _, ts := range a.Animations {
		if ts.Name == name {
			return ts, true
		}
	}
	return nil, false
}

// AddResources registers every mesh and track set with the document.
func (a *Asset3d) AddResources(doc *document.Document) {
	for i, vb := range a.Meshes {
		doc.RegisterResource(a.MeshKey(i), vb)
	}
	for _, ts := range a.Animations {
		doc.RegisterResource(a.AnimationKey(ts.Name), ts)
	}
}
