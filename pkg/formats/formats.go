// Package formats provides parsers for 3D scene file formats. Parsers
// return the raw structures of their format; conversion into a scene graph
// is done by the importer.
package formats
