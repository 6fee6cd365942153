package mapping

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/facebookgo/clock"
)

const anchor = ID("{11111111-1111-1111-1111-111111111111}")

// testSource resolves fields from a fixed table.
type testSource map[FieldID]FieldDefinition

func (ts testSource) Field(id FieldID) (FieldDefinition, bool) {
	def, ok := ts[id]
	return def, ok
}

func (ts testSource) TemplateFields(ID) []FieldDefinition { return nil }

// collectBlobStore records deletion attempts. A non-nil err is returned
// from every Delete.
type collectBlobStore struct {
	deleted []string
	err     error
}

func (b *collectBlobStore) Delete(blobID string) error {
	b.deleted = append(b.deleted, blobID)
	return b.err
}

// stampInit writes a marker field on every item it sees.
type stampInit struct{ count int }

const initField = FieldID("{99999999-0000-0000-0000-000000000001}")

func (si *stampInit) InitItem(item *Item) {
	si.count++
	item.Fields.Shared[initField] = "initialized"
}

// recordNotify remembers every notification.
type recordNotify struct {
	names  []string
	labels []string
	ids    [][]ID
}

func (rn *recordNotify) MappingChanged(name, label string, ids []ID) {
	rn.names = append(rn.names, name)
	rn.labels = append(rn.labels, label)
	rn.ids = append(rn.ids, ids)
}

// testMapping returns a loaded, empty children mapping on a temp file.
func testMapping(t *testing.T) *Mapping {
	t.Helper()
	m := &Mapping{
		Name:   "test",
		Path:   filepath.Join(t.TempDir(), "items.json"),
		Layout: ChildrenLayout{ItemID: anchor},
		Clock:  clock.NewMock(),
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %s", err)
	}
	return m
}

// mustCreate adds an item or fails the test.
func mustCreate(t *testing.T, m *Mapping, id ID, name string, parent ID) {
	t.Helper()
	ok, err := m.CreateItem(id, name, ID("{99999999-9999-9999-9999-999999999999}"), parent)
	if err != nil {
		t.Fatalf("CreateItem(%s): %s", id, err)
	}
	if !ok {
		t.Fatalf("CreateItem(%s): not created", id)
	}
}

func TestLoadMissingFile(t *testing.T) {
	m := testMapping(t)
	if n := m.Len(); n != 0 {
		t.Errorf("Len: got %d, expected 0", n)
	}
	if ids := m.GetAllItemIDs(); len(ids) != 0 {
		t.Errorf("GetAllItemIDs: got %v, expected none", ids)
	}
}

func TestLoadRequiresLayout(t *testing.T) {
	m := &Mapping{Path: "unused.json"}
	if err := m.Load(); err != ErrNoLayout {
		t.Errorf("Load: got %v, expected %v", err, ErrNoLayout)
	}
}

func TestBuildTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	data := `[
	  {"id": "a", "name": "Alpha", "template": "t1", "children": [
	    {"id": "b", "name": "Beta", "template": "t2"},
	    {"id": "c", "name": "Gamma", "template": "t2", "children": [
	      {"id": "d", "name": "Delta", "template": "t3"}
	    ]}
	  ]},
	  {"id": "e", "name": "Epsilon", "template": "t1"}
	]`
	if err := os.WriteFile(path, []byte(data), 0664); err != nil {
		t.Fatal(err)
	}
	init := &stampInit{}
	m := &Mapping{
		Name:   "test",
		Path:   path,
		Layout: ChildrenLayout{ItemID: anchor},
		Init:   init,
		Clock:  clock.NewMock(),
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %s", err)
	}

	if got := m.GetAllItemIDs(); !reflect.DeepEqual(got, []ID{"a", "b", "c", "d", "e"}) {
		t.Errorf("GetAllItemIDs: got %v", got)
	}
	kids, ok := m.GetChildIDs("a")
	if !ok || !reflect.DeepEqual(kids, []ID{"b", "c"}) {
		t.Errorf("GetChildIDs(a): got %v, %v", kids, ok)
	}
	table := []struct {
		id     ID
		parent ID
	}{
		{"a", anchor},
		{"e", anchor},
		{"b", "a"},
		{"c", "a"},
		{"d", "c"},
	}
	for _, tab := range table {
		parent, ok := m.GetParentID(tab.id)
		if !ok || parent != tab.parent {
			t.Errorf("GetParentID(%s): got %s, %v, expected %s", tab.id, parent, ok, tab.parent)
		}
	}
	if _, ok := m.GetChildIDs("nope"); ok {
		t.Error("GetChildIDs(nope): expected not found")
	}
	if init.count != 5 {
		t.Errorf("initializer ran %d times, expected 5", init.count)
	}
	if item := m.GetItem("d"); item.Fields.Shared[initField] != "initialized" {
		t.Error("initializer did not run over item d")
	}
}

func TestDuplicateIDFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	data := `[{"id": "a", "name": "One", "template": "t"},
	          {"id": "a", "name": "Two", "template": "t"}]`
	if err := os.WriteFile(path, []byte(data), 0664); err != nil {
		t.Fatal(err)
	}
	m := &Mapping{Path: path, Layout: ChildrenLayout{ItemID: anchor}}
	if err := m.Load(); err == nil {
		t.Error("Load: expected duplicate id error")
	}
}

func TestCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte("{not json"), 0664); err != nil {
		t.Fatal(err)
	}
	m := &Mapping{Path: path, Layout: ChildrenLayout{ItemID: anchor}}
	if err := m.Load(); err == nil {
		t.Error("Load: expected decode error")
	}
}

func TestIgnorePredicate(t *testing.T) {
	m := testMapping(t)
	m.Ignore = func(item *Item) bool { return item.Name == "hidden" }
	mustCreate(t, m, "a", "Alpha", anchor)
	mustCreate(t, m, "h", "hidden", "a")
	mustCreate(t, m, "b", "Beta", "a")

	if item := m.GetItem("h"); item != nil {
		t.Error("GetItem(h): hidden item is visible")
	}
	kids, _ := m.GetChildIDs("a")
	if !reflect.DeepEqual(kids, []ID{"b"}) {
		t.Errorf("GetChildIDs(a): got %v, expected [b]", kids)
	}
	if got := m.GetAllItemIDs(); !reflect.DeepEqual(got, []ID{"a", "b"}) {
		t.Errorf("GetAllItemIDs: got %v", got)
	}
	// hidden items stay physically cached
	if m.Len() != 3 {
		t.Errorf("Len: got %d, expected 3", m.Len())
	}
	if _, ok := m.GetItemFields("h", VersionURI{}); ok {
		t.Error("GetItemFields(h): hidden item is visible")
	}
	if _, ok := m.GetItemVersions("h"); ok {
		t.Error("GetItemVersions(h): hidden item is visible")
	}
}

func TestTemplateAndLanguageItems(t *testing.T) {
	m := testMapping(t)
	ok, err := m.CreateItem("t1", "Page", TemplateTemplateID, anchor)
	if !ok || err != nil {
		t.Fatalf("CreateItem(t1): %v %v", ok, err)
	}
	ok, err = m.CreateItem("l1", "en", LanguageTemplateID, anchor)
	if !ok || err != nil {
		t.Fatalf("CreateItem(l1): %v %v", ok, err)
	}
	ok, err = m.CreateItem("l2", "de-DE", LanguageTemplateID, anchor)
	if !ok || err != nil {
		t.Fatalf("CreateItem(l2): %v %v", ok, err)
	}
	ok, err = m.CreateItem("l3", "en", LanguageTemplateID, anchor)
	if !ok || err != nil {
		t.Fatalf("CreateItem(l3): %v %v", ok, err)
	}

	if got := m.GetTemplateItemIDs(); !reflect.DeepEqual(got, []ID{"t1"}) {
		t.Errorf("GetTemplateItemIDs: got %v", got)
	}
	// duplicate names collapse
	if got := m.GetLanguages(); !reflect.DeepEqual(got, []Language{"en", "de-DE"}) {
		t.Errorf("GetLanguages: got %v", got)
	}
}

func TestSubtreeLayout(t *testing.T) {
	m := &Mapping{
		Name:   "sub",
		Path:   filepath.Join(t.TempDir(), "subtree.json"),
		Layout: SubtreeLayout{ParentID: anchor},
		Clock:  clock.NewMock(),
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %s", err)
	}
	mustCreate(t, m, "root", "Root", anchor)
	// only one top-level record allowed
	ok, err := m.CreateItem("root2", "Another", "t", anchor)
	if err != nil {
		t.Fatalf("CreateItem(root2): %s", err)
	}
	if ok {
		t.Error("CreateItem(root2): subtree accepted a second top-level item")
	}
	mustCreate(t, m, "kid", "Kid", "root")
}
