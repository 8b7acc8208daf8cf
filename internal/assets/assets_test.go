package assets

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/asset3d/internal/asset3d"
	"github.com/Faultbox/asset3d/internal/document"
	"github.com/Faultbox/asset3d/internal/importer"
)

// gatedLoader loads real assets but holds every load until gate is closed.
type gatedLoader struct {
	gate  chan struct{}
	calls atomic.Int32
	im    *importer.Importer
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{gate: make(chan struct{}), im: importer.New(zap.NewNop())}
}

func (g *gatedLoader) load(path string) (*asset3d.Asset3d, error) {
	g.calls.Add(1)
	<-g.gate
	return asset3d.Load(g.im, path, asset3d.Options{})
}

// models shared with the importer tests
var fixtures = filepath.Join("..", "importer", "testdata")

func newTestManager(t *testing.T, loader LoadFunc) *Manager {
	t.Helper()
	m := NewManager(Options{Root: fixtures, Loader: loader, Log: zap.NewNop()})
	t.Cleanup(m.Close)
	return m
}

func requestEntity(t *testing.T, doc *document.Document, name, path string) document.EntityID {
	t.Helper()
	id, err := doc.AppendEntity(document.NoEntity, "host", name)
	if err != nil {
		t.Fatalf("AppendEntity: %v", err)
	}
	if err := doc.SetProperty(id, "directx_x", document.String(path)); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	return id
}

// tick runs the host loop until no load is in flight.
func tick(t *testing.T, m *Manager, doc *document.Document) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		m.OnPropertyValueChange(doc, doc.TakeChanges())
		m.Update(doc)
		if !m.Loading() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for loads")
		}
		time.Sleep(time.Millisecond)
	}
}

func meshKeyOf(t *testing.T, doc *document.Document, host document.EntityID) string {
	t.Helper()
	b, ok := doc.Search(host, "B")
	if !ok {
		t.Fatalf("entity %d has no B descendant", host)
	}
	v, err := doc.Eval(b, "mesh")
	if err != nil {
		t.Fatalf("Eval(B.mesh): %v", err)
	}
	return v.(document.ResourceValue).Key
}

func TestConcurrentRequestsShareOneImport(t *testing.T) {
	g := newGatedLoader()
	m := newTestManager(t, g.load)
	doc := document.New()

	e1 := requestEntity(t, doc, "e1", "tree.x")
	e2 := requestEntity(t, doc, "e2", "tree.x")
	m.OnPropertyValueChange(doc, doc.TakeChanges())

	if got := m.State("tree.x"); got != StateLoading {
		t.Fatalf("state = %v, want loading", got)
	}
	m.Update(doc)
	if len(doc.Children(e1)) != 0 || len(doc.Children(e2)) != 0 {
		t.Fatal("nothing should be applied before the load finishes")
	}

	close(g.gate)
	tick(t, m, doc)

	if n := g.calls.Load(); n != 1 {
		t.Errorf("imports = %d, want 1", n)
	}
	if got := m.State("tree.x"); got != StateLoaded {
		t.Errorf("state = %v, want loaded", got)
	}

	want := filepath.Join(fixtures, "tree.x") + ".meshes.0"
	for _, e := range []document.EntityID{e1, e2} {
		if got := meshKeyOf(t, doc, e); got != want {
			t.Errorf("entity %d mesh = %q, want %q", e, got, want)
		}
		if !doc.HasProperty(e, "scene_loaded") {
			t.Errorf("entity %d has no loaded marker", e)
		}
	}
	if n := len(doc.ResourceKeys()); n != 2 {
		t.Errorf("resources = %d, want one mesh and one animation", n)
	}

	stats := m.Stats()
	if stats.Requests != 2 || stats.Imports != 1 || stats.Hits != 1 || stats.Failures != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestLoadedAssetAppliedImmediately(t *testing.T) {
	g := newGatedLoader()
	close(g.gate)
	m := newTestManager(t, g.load)
	doc := document.New()

	requestEntity(t, doc, "first", "tree.x")
	tick(t, m, doc)

	late := requestEntity(t, doc, "late", "tree.x")
	m.OnPropertyValueChange(doc, doc.TakeChanges())

	if len(doc.Children(late)) != 1 {
		t.Fatal("cached asset should be mapped without waiting for Update")
	}
	if n := g.calls.Load(); n != 1 {
		t.Errorf("imports = %d, want 1", n)
	}
	if n := len(doc.ResourceKeys()); n != 2 {
		t.Errorf("resources registered more than once: %d", n)
	}
}

func TestDuplicateLoadRejected(t *testing.T) {
	g := newGatedLoader()
	close(g.gate)
	m := newTestManager(t, g.load)
	doc := document.New()

	e := requestEntity(t, doc, "e", "tree.x")
	tick(t, m, doc)
	before := doc.Len()

	// same asset again is a no-op
	if err := m.Request(doc, e, "tree.x"); err != nil {
		t.Errorf("re-requesting the same path: %v", err)
	}

	err := m.Request(doc, e, "other.x")
	if !errors.Is(err, ErrDuplicateLoad) {
		t.Fatalf("Request = %v, want ErrDuplicateLoad", err)
	}
	if doc.Len() != before || len(doc.Children(e)) != 1 {
		t.Error("rejected request changed the document")
	}
	if got := m.State("other.x"); got != StateUnrequested {
		t.Errorf("other.x state = %v, want unrequested", got)
	}
	if got := meshKeyOf(t, doc, e); got != filepath.Join(fixtures, "tree.x")+".meshes.0" {
		t.Errorf("bindings changed: %q", got)
	}

	// through the change path the warning is logged, not fatal
	doc.SetProperty(e, "directx_x", document.String("other.x"))
	m.OnPropertyValueChange(doc, doc.TakeChanges())
	if g.calls.Load() != 1 {
		t.Error("duplicate request dispatched a load")
	}
}

func TestFailedLoadIsCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("corrupt file")
	core, logs := observer.New(zap.WarnLevel)
	m := NewManager(Options{Root: fixtures, Log: zap.New(core), Loader: func(string) (*asset3d.Asset3d, error) {
		calls.Add(1)
		return nil, boom
	}})
	defer m.Close()
	doc := document.New()

	e1 := requestEntity(t, doc, "e1", "bad.x")
	tick(t, m, doc)

	if got := m.State("bad.x"); got != StateFailed {
		t.Fatalf("state = %v, want failed", got)
	}
	if len(doc.Children(e1)) != 0 {
		t.Error("failed load left entities behind")
	}

	e2 := requestEntity(t, doc, "e2", "bad.x")
	tick(t, m, doc)
	if len(doc.Children(e2)) != 0 {
		t.Error("cached failure applied to a new entity")
	}
	rejected := logs.FilterMessage("Load request not applied").AllUntimed()
	if len(rejected) != 1 || rejected[0].Level != zap.WarnLevel {
		t.Fatalf("rejections logged = %v, want one warning", rejected)
	}
	if got := rejected[0].ContextMap()["entity"]; got != int64(e2) {
		t.Errorf("warning names entity %v, want %d", got, e2)
	}

	e3, _ := doc.AppendEntity(document.NoEntity, "host", "e3")
	if err := m.Request(doc, e3, "bad.x"); !errors.Is(err, boom) {
		t.Errorf("Request = %v, want cached failure", err)
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}
	if s := m.Stats(); s.Failures != 1 || s.Imports != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCloseWithStuckLoad(t *testing.T) {
	stuck := make(chan struct{})
	defer close(stuck)
	started := make(chan struct{}, 1)
	m := NewManager(Options{Root: fixtures, Workers: 1, Log: zap.NewNop(), Loader: func(string) (*asset3d.Asset3d, error) {
		started <- struct{}{}
		<-stuck
		return nil, errors.New("unreachable")
	}})
	doc := document.New()

	e := requestEntity(t, doc, "e", "hang.x")
	requestEntity(t, doc, "queued", "queued.x")
	m.OnPropertyValueChange(doc, doc.TakeChanges())
	<-started

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a load that never returns")
	}

	m.Update(doc)
	if got := m.State("queued.x"); got != StateLoading {
		t.Errorf("queued.x = %v, Update after Close should not apply results", got)
	}
	if len(doc.Children(e)) != 0 {
		t.Error("nothing should be mapped after Close")
	}
}

func TestNonexistentPath(t *testing.T) {
	m := NewManager(Options{Root: fixtures, Log: zap.NewNop()})
	defer m.Close()
	doc := document.New()

	requestEntity(t, doc, "e", "missing.x")
	tick(t, m, doc)

	if got := m.State("missing.x"); got != StateFailed {
		t.Fatalf("state = %v, want failed", got)
	}
	e := m.cache.entries[m.Resolve("missing.x")]
	var ie *importer.ImportError
	if !errors.As(e.err, &ie) {
		t.Errorf("error = %v, want ImportError", e.err)
	}
	if doc.Len() != 1 || len(doc.ResourceKeys()) != 0 {
		t.Errorf("document changed: %d entities, %d resources", doc.Len(), len(doc.ResourceKeys()))
	}
	if _, ok := m.Asset("missing.x"); ok {
		t.Error("failed load should not expose an asset")
	}
}

func TestDefaultLoader(t *testing.T) {
	m := NewManager(Options{Root: fixtures, Log: zap.NewNop()})
	defer m.Close()
	doc := document.New()

	e := requestEntity(t, doc, "e", "tree.x")
	tick(t, m, doc)

	a, ok := m.Asset("tree.x")
	if !ok {
		t.Fatal("tree.x not loaded")
	}
	if _, ok := a.Animation("walk"); !ok {
		t.Error("walk animation missing")
	}
	top := doc.Children(e)[0]
	if _, err := doc.Eval(top, "animation_walk"); err != nil {
		t.Errorf("Eval(animation_walk): %v", err)
	}
}

func TestOnPropertyValueChangeFilters(t *testing.T) {
	m := newTestManager(t, func(string) (*asset3d.Asset3d, error) {
		t.Error("no load expected")
		return nil, nil
	})
	doc := document.New()

	e, _ := doc.AppendEntity(document.NoEntity, "host", "e")
	doc.SetProperty(e, "other", document.String("tree.x"))
	doc.SetProperty(e, "directx_x", document.Float(3))
	m.OnPropertyValueChange(doc, doc.TakeChanges())

	if m.Stats().Requests != 0 || doc.HasProperty(e, "scene_loaded") {
		t.Error("unrelated or malformed changes should not request loads")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		root, path, want string
	}{
		{"testdata", "tree.x", filepath.Join("testdata", "tree.x")},
		{"testdata", "sub/../tree.x", filepath.Join("testdata", "tree.x")},
		{"", "tree.x", "tree.x"},
		{"testdata", "/abs/tree.x", "/abs/tree.x"},
	}
	for _, tt := range tests {
		m := &Manager{opts: Options{Root: tt.root}}
		if got := m.Resolve(tt.path); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.root, tt.path, got, tt.want)
		}
	}
}
