package asset3d

import (
	"fmt"

	"github.com/Faultbox/asset3d/internal/document"
	"github.com/Faultbox/asset3d/internal/engine/animation"
	"github.com/Faultbox/asset3d/pkg/math"
	"github.com/Faultbox/asset3d/pkg/scene"
)

// Entity kind and property names written by the mapper.
const (
	KindNode = "node"

	PropTransform      = "transform"
	PropLocalTransform = "local_transform"
	PropMesh           = "mesh"
	PropAnimation      = "animation_"
)

// InheritedProps are resolved from the parent entity rather than copied.
var InheritedProps = []string{"diffuse", "shader", "uniforms", "alpha"}

// AppendToDocument creates one entity per scene node below parent and
// returns the entity of the scene root. With parent NoEntity a root entity
// named after the asset is created first, with an identity transform.
//
// The asset's resources must be registered separately with AddResources.
func (a *Asset3d) AppendToDocument(w document.Writer, parent document.EntityID) (document.EntityID, error) {
	if a.Scene.Root == nil {
		return document.NoEntity, fmt.Errorf("asset %s has no root node", a.ID)
	}

	if parent == document.NoEntity {
		root, err := w.AppendEntity(document.NoEntity, KindNode, a.ID)
		if err != nil {
			return document.NoEntity, err
		}
		if err := w.SetProperty(root, PropTransform, document.Matrix4(math.Identity())); err != nil {
			return document.NoEntity, err
		}
		parent = root
	}

	top, err := a.appendNode(w, parent, a.Scene.Root)
	if err != nil {
		return document.NoEntity, err
	}

	for _, ts := range a.Animations {
		v := document.NewTyped("track_set_from_resource", document.String(a.AnimationKey(ts.Name)))
		if err := w.SetProperty(top, PropAnimation+ts.Name, v); err != nil {
			return document.NoEntity, err
		}
	}
	return top, nil
}

type prop struct {
	key string
	val document.Value
}

func (a *Asset3d) appendNode(w document.Writer, parent document.EntityID, node *scene.Node) (document.EntityID, error) {
	id, err := w.AppendEntity(parent, KindNode, node.Name)
	if err != nil {
		return document.NoEntity, err
	}

	props := []prop{
		{animation.PropTranslation, document.Vector3{0, 0, 0}},
		{animation.PropRotation, document.Vector4{1, 0, 0, 0}},
		{animation.PropScale, document.Vector3{1, 1, 1}},
		{PropLocalTransform, document.Matrix4(node.Transform)},
		{PropTransform, transformExpr()},
	}
	for _, key := range InheritedProps {
		props = append(props, prop{key, document.Ref(document.Parent{}, key)})
	}
	for i, mi := range node.Meshes {
		key := PropMesh
		if i > 0 {
			key = fmt.Sprintf("%s_%d", PropMesh, i)
		}
		props = append(props, prop{key, document.NewTyped("mesh_from_resource", document.String(a.MeshKey(mi)))})
	}

	for _, p := range props {
		if err := w.SetProperty(id, p.key, p.val); err != nil {
			return document.NoEntity, err
		}
	}

	for _, child := range node.Children {
		if _, err := a.appendNode(w, id, child); err != nil {
			return document.NoEntity, err
		}
	}
	return id, nil
}

// transformExpr composes parent.transform * local_transform * T * R * S.
func transformExpr() document.Value {
	return document.NewTyped("mul", document.Array{
		document.Ref(document.Parent{}, PropTransform),
		document.Ref(document.This{}, PropLocalTransform),
		document.NewTyped("translate", document.Ref(document.This{}, animation.PropTranslation)),
		document.NewTyped("rotate_quaternion", document.Ref(document.This{}, animation.PropRotation)),
		document.NewTyped("scale", document.Ref(document.This{}, animation.PropScale)),
	})
}
