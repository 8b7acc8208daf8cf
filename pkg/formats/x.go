package formats

// DirectX .x (text variant) parser for frame hierarchies, meshes and
// keyframe animation sets.

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// X format errors.
var (
	ErrInvalidXHeader     = errors.New("invalid X header: expected 'xof '")
	ErrUnsupportedXFormat = errors.New("unsupported X format: only 'txt ' is supported")
	ErrTruncatedXData     = errors.New("truncated X data")
)

// XKeyType is the kind of value stored in an AnimationKey.
type XKeyType int

const (
	XKeyRotation XKeyType = 0 // quaternion, w x y z
	XKeyScale    XKeyType = 1
	XKeyPosition XKeyType = 2
	XKeyMatrix   XKeyType = 4 // 4x4 matrix, row-major
)

// String returns a human-readable key type name.
func (k XKeyType) String() string {
	switch k {
	case XKeyRotation:
		return "Rotation"
	case XKeyScale:
		return "Scale"
	case XKeyPosition:
		return "Position"
	case XKeyMatrix:
		return "Matrix"
	default:
		return "Unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// XMesh is a mesh as stored in the file. Normals are indexed by their own
// face list, which parallels Faces.
type XMesh struct {
	Name        string
	Positions   [][3]float32
	Faces       [][]uint32
	Normals     [][3]float32
	NormalFaces [][]uint32
	TexCoords   [][2]float32 // one per position
}

// XFrame is a node of the frame hierarchy.
type XFrame struct {
	Name string
	// Transform is the FrameTransformMatrix as stored (row vectors,
	// translation in elements 12-14), identity when absent.
	Transform [16]float32
	Meshes    []*XMesh
	Children  []*XFrame
}

// XTimedKey is one keyframe of an AnimationKey.
type XTimedKey struct {
	Time   float64
	Values []float32
}

// XAnimationKey is a typed list of keyframes.
type XAnimationKey struct {
	Type XKeyType
	Keys []XTimedKey
}

// XAnimation binds animation keys to a frame by name.
type XAnimation struct {
	Name      string
	FrameName string
	Keys      []*XAnimationKey
}

// XAnimationSet is a named animation.
type XAnimationSet struct {
	Name       string
	Animations []*XAnimation
}

// XFile represents a parsed .x file.
type XFile struct {
	Version        string // e.g. "0303"
	TicksPerSecond float64
	Frames         []*XFrame // top-level frames
	Meshes         []*XMesh  // meshes outside any frame
	AnimationSets  []*XAnimationSet
}

const (
	xTokIdent = iota
	xTokNumber
	xTokString
	xTokGUID
	xTokOpen
	xTokClose
	xTokSemicolon
	xTokComma
	xTokOther
)

var xLexer *lexmachine.Lexer

func init() {
	xLexer = lexmachine.NewLexer()
	xLexer.Add([]byte(`[a-zA-Z_][a-zA-Z0-9_\-\.]*`), xToken(xTokIdent))
	xLexer.Add([]byte(`[\+\-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][\+\-]?[0-9]+)?`), xToken(xTokNumber))
	xLexer.Add([]byte(`"[^"]*"`), xToken(xTokString))
	xLexer.Add([]byte(`<[^>]*>`), xToken(xTokGUID))
	xLexer.Add([]byte(`\{`), xToken(xTokOpen))
	xLexer.Add([]byte(`\}`), xToken(xTokClose))
	xLexer.Add([]byte(`;`), xToken(xTokSemicolon))
	xLexer.Add([]byte(`,`), xToken(xTokComma))
	xLexer.Add([]byte(`\[|\]|\.\.\.`), xToken(xTokOther))
	xLexer.Add([]byte(`//[^\n]*`), xSkip)
	xLexer.Add([]byte(`#[^\n]*`), xSkip)
	xLexer.Add([]byte(`\s+`), xSkip)
	if err := xLexer.Compile(); err != nil {
		panic(err)
	}
}

func xToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func xSkip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

// LoadX reads and parses a .x file from disk.
func LoadX(path string) (*XFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return ParseX(data)
}

// ParseX parses the text variant of the DirectX .x format.
func ParseX(data []byte) (*XFile, error) {
	if len(data) < 16 {
		return nil, ErrTruncatedXData
	}
	if string(data[:4]) != "xof " {
		return nil, ErrInvalidXHeader
	}
	if string(data[8:12]) != "txt " {
		return nil, errors.Wrapf(ErrUnsupportedXFormat, "format %q", strings.TrimSpace(string(data[8:12])))
	}

	toks, err := xTokenize(data[16:])
	if err != nil {
		return nil, err
	}

	p := &xParser{toks: toks}
	objects, err := p.parseObjects()
	if err != nil {
		return nil, err
	}

	x := &XFile{Version: string(data[4:8])}
	for _, obj := range objects {
		switch obj.Type {
		case "Frame":
			frame, err := buildXFrame(obj)
			if err != nil {
				return nil, err
			}
			x.Frames = append(x.Frames, frame)
		case "Mesh":
			mesh, err := buildXMesh(obj)
			if err != nil {
				return nil, err
			}
			x.Meshes = append(x.Meshes, mesh)
		case "AnimTicksPerSecond":
			r := &xReader{obj: obj}
			tps, err := r.float()
			if err != nil {
				return nil, err
			}
			x.TicksPerSecond = tps
		case "AnimationSet":
			set, err := buildXAnimationSet(obj)
			if err != nil {
				return nil, err
			}
			x.AnimationSets = append(x.AnimationSets, set)
		}
	}
	return x, nil
}

type xTok struct {
	typ  int
	text string
	line int
}

func xTokenize(text []byte) ([]xTok, error) {
	scanner, err := xLexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create X scanner")
	}

	var toks []xTok
	for itok, err, eos := scanner.Next(); !eos; itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "failed to tokenize X data")
		}
		tok := itok.(*lexmachine.Token)
		toks = append(toks, xTok{typ: tok.Type, text: string(tok.Lexeme), line: tok.StartLine})
	}
	return toks, nil
}

// xObject is a generic data object: `Type [Name] { data... children... }`.
// Numbers and strings are collected in order, separators are dropped.
type xObject struct {
	Type     string
	Name     string
	Data     []xTok
	Children []*xObject
	Refs     []string
	line     int
}

type xParser struct {
	toks []xTok
	pos  int
}

func (p *xParser) peek(offset int) (xTok, bool) {
	if p.pos+offset >= len(p.toks) {
		return xTok{}, false
	}
	return p.toks[p.pos+offset], true
}

func (p *xParser) parseObjects() ([]*xObject, error) {
	var objects []*xObject
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		if tok.typ != xTokIdent {
			return nil, errors.Errorf("unexpected %q at line %d", tok.text, tok.line)
		}
		obj, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// parseObject expects the cursor on the object's type identifier.
func (p *xParser) parseObject() (*xObject, error) {
	head := p.toks[p.pos]
	obj := &xObject{Type: head.text, line: head.line}
	p.pos++

	next, ok := p.peek(0)
	if ok && next.typ == xTokIdent {
		obj.Name = next.text
		p.pos++
		next, ok = p.peek(0)
	}
	if !ok || next.typ != xTokOpen {
		return nil, errors.Errorf("expected '{' after %s at line %d", obj.Type, head.line)
	}
	p.pos++

	if err := p.parseBody(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (p *xParser) parseBody(obj *xObject) error {
	for {
		tok, ok := p.peek(0)
		if !ok {
			return errors.Wrapf(ErrTruncatedXData, "unterminated %s started at line %d", obj.Type, obj.line)
		}

		switch tok.typ {
		case xTokClose:
			p.pos++
			return nil
		case xTokNumber, xTokString:
			obj.Data = append(obj.Data, tok)
			p.pos++
		case xTokIdent:
			n1, _ := p.peek(1)
			n2, _ := p.peek(2)
			if n1.typ == xTokOpen || (n1.typ == xTokIdent && n2.typ == xTokOpen) {
				child, err := p.parseObject()
				if err != nil {
					return err
				}
				obj.Children = append(obj.Children, child)
				continue
			}
			// bare identifiers only show up in template declarations
			p.pos++
		case xTokOpen:
			ref, err := p.parseReference()
			if err != nil {
				return err
			}
			if ref != "" {
				obj.Refs = append(obj.Refs, ref)
			}
		default:
			p.pos++
		}
	}
}

// parseReference reads `{ name [guid] }` and returns the name.
func (p *xParser) parseReference() (string, error) {
	open := p.toks[p.pos]
	p.pos++
	name := ""
	for {
		tok, ok := p.peek(0)
		if !ok {
			return "", errors.Wrapf(ErrTruncatedXData, "unterminated reference at line %d", open.line)
		}
		p.pos++
		switch tok.typ {
		case xTokClose:
			return name, nil
		case xTokIdent:
			if name == "" {
				name = tok.text
			}
		case xTokOpen:
			return "", errors.Errorf("nested '{' in reference at line %d", tok.line)
		}
	}
}

// xReader walks an object's data values in order.
type xReader struct {
	obj *xObject
	pos int
}

func (r *xReader) next() (xTok, error) {
	if r.pos >= len(r.obj.Data) {
		return xTok{}, errors.Wrapf(ErrTruncatedXData, "%s %q at line %d", r.obj.Type, r.obj.Name, r.obj.line)
	}
	tok := r.obj.Data[r.pos]
	r.pos++
	return tok, nil
}

func (r *xReader) float() (float64, error) {
	tok, err := r.next()
	if err != nil {
		return 0, err
	}
	if tok.typ != xTokNumber {
		return 0, errors.Errorf("expected number, got %q at line %d", tok.text, tok.line)
	}
	v, err := strconv.ParseFloat(tok.text, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "line %d", tok.line)
	}
	return v, nil
}

func (r *xReader) count() (int, error) {
	v, err := r.float()
	if err != nil {
		return 0, err
	}
	if v < 0 || v != float64(int(v)) {
		return 0, errors.Errorf("invalid count %v in %s %q", v, r.obj.Type, r.obj.Name)
	}
	return int(v), nil
}

// remaining returns the number of data values not yet read.
func (r *xReader) remaining() int {
	return len(r.obj.Data) - r.pos
}

// countOf reads the count of a list whose items take at least per values
// each. Counts the remaining data cannot hold are rejected before anything
// is allocated for them.
func (r *xReader) countOf(per int) (int, error) {
	n, err := r.count()
	if err != nil {
		return 0, err
	}
	if n > r.remaining()/per {
		return 0, errors.Wrapf(ErrTruncatedXData, "%s %q declares %d items with %d values left at line %d",
			r.obj.Type, r.obj.Name, n, r.remaining(), r.obj.line)
	}
	return n, nil
}

func (r *xReader) floats(n int) ([]float32, error) {
	if n > r.remaining() {
		return nil, errors.Wrapf(ErrTruncatedXData, "%s %q needs %d values, %d left at line %d",
			r.obj.Type, r.obj.Name, n, r.remaining(), r.obj.line)
	}
	out := make([]float32, n)
	for i := range out {
		v, err := r.float()
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

func (r *xReader) vec3s() ([][3]float32, error) {
	n, err := r.countOf(3)
	if err != nil {
		return nil, err
	}
	out := make([][3]float32, n)
	for i := range out {
		v, err := r.floats(3)
		if err != nil {
			return nil, err
		}
		out[i] = [3]float32{v[0], v[1], v[2]}
	}
	return out, nil
}

func (r *xReader) faces() ([][]uint32, error) {
	n, err := r.countOf(1)
	if err != nil {
		return nil, err
	}
	out := make([][]uint32, n)
	for i := range out {
		corners, err := r.countOf(1)
		if err != nil {
			return nil, err
		}
		face := make([]uint32, corners)
		for j := range face {
			idx, err := r.count()
			if err != nil {
				return nil, err
			}
			face[j] = uint32(idx)
		}
		out[i] = face
	}
	return out, nil
}

func xIdentity() [16]float32 {
	return [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

func buildXFrame(obj *xObject) (*XFrame, error) {
	frame := &XFrame{Name: obj.Name, Transform: xIdentity()}
	for _, child := range obj.Children {
		switch child.Type {
		case "FrameTransformMatrix":
			r := &xReader{obj: child}
			m, err := r.floats(16)
			if err != nil {
				return nil, errors.Wrapf(err, "frame %q", obj.Name)
			}
			copy(frame.Transform[:], m)
		case "Mesh":
			mesh, err := buildXMesh(child)
			if err != nil {
				return nil, errors.Wrapf(err, "frame %q", obj.Name)
			}
			frame.Meshes = append(frame.Meshes, mesh)
		case "Frame":
			sub, err := buildXFrame(child)
			if err != nil {
				return nil, err
			}
			frame.Children = append(frame.Children, sub)
		}
	}
	return frame, nil
}

func buildXMesh(obj *xObject) (*XMesh, error) {
	r := &xReader{obj: obj}
	mesh := &XMesh{Name: obj.Name}

	var err error
	if mesh.Positions, err = r.vec3s(); err != nil {
		return nil, errors.Wrapf(err, "mesh %q positions", obj.Name)
	}
	if mesh.Faces, err = r.faces(); err != nil {
		return nil, errors.Wrapf(err, "mesh %q faces", obj.Name)
	}
	for _, face := range mesh.Faces {
		for _, idx := range face {
			if int(idx) >= len(mesh.Positions) {
				return nil, errors.Errorf("mesh %q: face index %d out of range (%d positions)", obj.Name, idx, len(mesh.Positions))
			}
		}
	}

	for _, child := range obj.Children {
		cr := &xReader{obj: child}
		switch child.Type {
		case "MeshNormals":
			if mesh.Normals, err = cr.vec3s(); err != nil {
				return nil, errors.Wrapf(err, "mesh %q normals", obj.Name)
			}
			if mesh.NormalFaces, err = cr.faces(); err != nil {
				return nil, errors.Wrapf(err, "mesh %q normal faces", obj.Name)
			}
		case "MeshTextureCoords":
			n, err := cr.countOf(2)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %q texcoords", obj.Name)
			}
			mesh.TexCoords = make([][2]float32, n)
			for i := range mesh.TexCoords {
				uv, err := cr.floats(2)
				if err != nil {
					return nil, errors.Wrapf(err, "mesh %q texcoords", obj.Name)
				}
				mesh.TexCoords[i] = [2]float32{uv[0], uv[1]}
			}
		}
	}
	return mesh, nil
}

func buildXAnimationSet(obj *xObject) (*XAnimationSet, error) {
	set := &XAnimationSet{Name: obj.Name}
	for _, child := range obj.Children {
		if child.Type != "Animation" {
			continue
		}
		anim := &XAnimation{Name: child.Name}
		if len(child.Refs) > 0 {
			anim.FrameName = child.Refs[0]
		}
		for _, sub := range child.Children {
			if sub.Type != "AnimationKey" {
				continue
			}
			key, err := buildXAnimationKey(sub)
			if err != nil {
				return nil, errors.Wrapf(err, "animation set %q", obj.Name)
			}
			anim.Keys = append(anim.Keys, key)
		}
		if anim.FrameName == "" {
			return nil, errors.Errorf("animation set %q: animation at line %d has no frame reference", obj.Name, child.line)
		}
		set.Animations = append(set.Animations, anim)
	}
	return set, nil
}

func buildXAnimationKey(obj *xObject) (*XAnimationKey, error) {
	r := &xReader{obj: obj}
	keyType, err := r.count()
	if err != nil {
		return nil, err
	}
	key := &XAnimationKey{Type: XKeyType(keyType)}

	var want int
	switch key.Type {
	case XKeyRotation:
		want = 4
	case XKeyScale, XKeyPosition:
		want = 3
	case XKeyMatrix:
		want = 16
	default:
		return nil, errors.Errorf("unsupported animation key type %d at line %d", keyType, obj.line)
	}

	// time, value count, values
	n, err := r.countOf(2 + want)
	if err != nil {
		return nil, err
	}
	key.Keys = make([]XTimedKey, n)
	for i := range key.Keys {
		t, err := r.float()
		if err != nil {
			return nil, err
		}
		nValues, err := r.count()
		if err != nil {
			return nil, err
		}
		if nValues != want {
			return nil, errors.Errorf("%s key %d: expected %d values, got %d", key.Type, i, want, nValues)
		}
		values, err := r.floats(nValues)
		if err != nil {
			return nil, err
		}
		key.Keys[i] = XTimedKey{Time: t, Values: values}
	}
	return key, nil
}
