// Package importer turns 3D asset files into scene graphs.
//
// Format backends are selected by file extension. Every backend's output is
// triangulated before it is returned, so downstream code only ever sees
// three-corner faces.
package importer

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/asset3d/internal/logger"
	"github.com/Faultbox/asset3d/pkg/scene"
)

// ErrUnsupportedFormat is returned when no backend handles an extension.
var ErrUnsupportedFormat = errors.New("unsupported asset format")

// ImportError reports a failed import. It is fatal for the load that
// triggered it and is never retried by the importer.
type ImportError struct {
	Path   string
	Format string
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("importing %s (%s): %v", e.Path, e.Format, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Backend parses one family of formats into a scene graph.
type Backend interface {
	// Formats lists the lower-case extensions handled, without the dot.
	Formats() []string
	ImportFile(path string) (*scene.Scene, error)
	ImportBytes(data []byte, format string) (*scene.Scene, error)
}

// Imported is the result of a successful import.
type Imported struct {
	// ID identifies the asset; resource keys are derived from it.
	ID     string
	Format string
	Scene  *scene.Scene
	// InvertTexcoordY is fixed per asset at import time and applies to
	// every mesh of the asset.
	InvertTexcoordY bool
}

// Importer dispatches to format backends.
type Importer struct {
	backends map[string]Backend
	log      *zap.Logger
}

// New creates an importer with the DirectX and glTF backends registered.
// A nil logger falls back to the package logger.
func New(log *zap.Logger) *Importer {
	if log == nil {
		log = logger.Named("importer")
	}
	im := &Importer{
		backends: make(map[string]Backend),
		log:      log,
	}
	im.Register(xBackend{})
	im.Register(gltfBackend{})
	return im
}

// Register adds a backend, replacing any backend for the same formats.
func (im *Importer) Register(b Backend) {
	for _, f := range b.Formats() {
		im.backends[strings.ToLower(f)] = b
	}
}

// Formats returns the supported extensions, sorted.
func (im *Importer) Formats() []string {
	formats := make([]string, 0, len(im.backends))
	for f := range im.backends {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// ImportFile imports the asset at path. The path doubles as the asset ID.
func (im *Importer) ImportFile(path string) (*Imported, error) {
	format := formatOf(path)
	im.log.Info("Loading asset3d from file", zap.String("path", path), zap.String("format", format))

	b, ok := im.backends[format]
	if !ok {
		return nil, &ImportError{Path: path, Format: format, Err: ErrUnsupportedFormat}
	}

	sc, err := b.ImportFile(path)
	if err != nil {
		return nil, &ImportError{Path: path, Format: format, Err: err}
	}
	if err := Triangulate(sc); err != nil {
		return nil, &ImportError{Path: path, Format: format, Err: err}
	}

	return &Imported{
		ID:     path,
		Format: format,
		Scene:  sc,
		// DirectX puts the texture origin at the top-left corner.
		InvertTexcoordY: format == "x",
	}, nil
}

// ImportString imports an in-memory source. The result is never
// texcoord-inverted.
func (im *Importer) ImportString(id, content, format string) (*Imported, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	b, ok := im.backends[format]
	if !ok {
		return nil, &ImportError{Path: id, Format: format, Err: ErrUnsupportedFormat}
	}

	sc, err := b.ImportBytes([]byte(content), format)
	if err != nil {
		return nil, &ImportError{Path: id, Format: format, Err: err}
	}
	if err := Triangulate(sc); err != nil {
		return nil, &ImportError{Path: id, Format: format, Err: err}
	}
	return &Imported{ID: id, Format: format, Scene: sc}, nil
}

func formatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
