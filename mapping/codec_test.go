package mapping

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/facebookgo/clock"
)

func TestRoundTrip(t *testing.T) {
	const sharedF = FieldID("{F0000000-0000-0000-0000-00000000000A}")
	const versionedF = FieldID("{F0000000-0000-0000-0000-00000000000C}")
	src := testSource{
		sharedF:    {ID: sharedF, Name: "S", Sharing: SharedField},
		versionedF: {ID: versionedF, Name: "V", Sharing: VersionedField},
	}
	m := testMapping(t)
	m.Templates = src

	// build a small tree through the mutation API
	mustCreate(t, m, "a", "Alpha", anchor)
	mustCreate(t, m, "b", "Beta", "a")
	mustCreate(t, m, "c", "Gamma", "a")
	if _, err := m.AddVersion("b", VersionURI{Language: "en"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SaveItem("b", Changes{
		Fields: []FieldChange{
			{FieldID: sharedF, Value: strptr("hello")},
			{FieldID: versionedF, Language: "en", Version: 1, Value: strptr("world")},
		},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CopyItem("b", "c", "d", "Delta"); err != nil {
		t.Fatal(err)
	}

	m2 := &Mapping{Path: m.Path, Layout: m.Layout, Templates: src}
	if err := m2.Load(); err != nil {
		t.Fatalf("reload: %s", err)
	}
	if got, want := m2.GetAllItemIDs(), m.GetAllItemIDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ids after reload: got %v, expected %v", got, want)
	}
	for _, id := range m.GetAllItemIDs() {
		orig := m.items[id]
		loaded := m2.items[id]
		if loaded.Name != orig.Name || loaded.TemplateID != orig.TemplateID ||
			loaded.ParentID != orig.ParentID {
			t.Errorf("item %s: %+v != %+v", id, loaded, orig)
		}
		if !reflect.DeepEqual(loaded.Fields, orig.Fields) {
			t.Errorf("item %s fields:\ngot      %+v\nexpected %+v", id, loaded.Fields, orig.Fields)
		}
	}
}

func TestCommitCreatesDirectory(t *testing.T) {
	m := &Mapping{
		Name:   "deep",
		Path:   filepath.Join(t.TempDir(), "a", "b", "items.json"),
		Layout: ChildrenLayout{ItemID: anchor},
		Clock:  clock.NewMock(),
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %s", err)
	}
	mustCreate(t, m, "x", "X", anchor)
	if _, err := os.Stat(m.Path); err != nil {
		t.Errorf("backing file: %s", err)
	}
}

func TestCommitOverwritesInPlace(t *testing.T) {
	m := testMapping(t)
	mustCreate(t, m, "a", "Alpha", anchor)
	first, err := os.ReadFile(m.Path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.DeleteItem("a"); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(m.Path)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(first, second) {
		t.Error("file content unchanged after delete")
	}
	if string(second) != "[]\n" {
		t.Errorf("empty mapping file: %q", second)
	}
}

func TestNotifierFiresOnLoadAndCommit(t *testing.T) {
	rn := &recordNotify{}
	m := &Mapping{
		Name:   "test",
		Path:   filepath.Join(t.TempDir(), "items.json"),
		Layout: ChildrenLayout{ItemID: anchor},
		Notify: rn,
		Clock:  clock.NewMock(),
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %s", err)
	}
	if len(rn.names) != 1 {
		t.Fatalf("notifications after load: %d", len(rn.names))
	}
	mustCreate(t, m, "a", "Alpha", anchor)
	mustCreate(t, m, "b", "Beta", "a")
	if len(rn.names) != 3 {
		t.Fatalf("notifications after two commits: %d", len(rn.names))
	}
	last := rn.ids[len(rn.ids)-1]
	if !reflect.DeepEqual(last, []ID{"a", "b"}) {
		t.Errorf("notified ids: %v", last)
	}
	if rn.names[0] != "test" || rn.labels[0] == "" {
		t.Errorf("notification header: %s %s", rn.names[0], rn.labels[0])
	}
}
