package mapping

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

// The backing file holds a JSON array of item records. Children nest inside
// their parent record, so the file is the tree. ParentID is not persisted:
// it is reassigned from the structural nesting on load, with top-level
// records parented by the layout's anchor.

type itemRecord struct {
	ID         ID            `json:"id"`
	Name       string        `json:"name"`
	TemplateID ID            `json:"template"`
	Fields     fieldsRecord  `json:"fields"`
	Children   []*itemRecord `json:"children,omitempty"`
}

type fieldsRecord struct {
	Shared      FieldValues                                `json:"shared,omitempty"`
	Unversioned map[Language]FieldValues                   `json:"unversioned,omitempty"`
	Versioned   map[Language]map[VersionNumber]FieldValues `json:"versioned,omitempty"`
}

// readFile loads and decodes the backing file. A missing file yields an
// empty record list.
func readFile(path string) ([]*itemRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading mapping file %s", path)
	}
	var records []*itemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "decoding mapping file %s", path)
	}
	return records, nil
}

// buildTree registers rec and its descendants into the item and child
// indexes, depth first: the record itself, then its children. Each child's
// ParentID is set from the structural nesting.
func buildTree(rec *itemRecord, parent ID, items map[ID]*Item, children map[ID][]ID) error {
	if _, ok := items[rec.ID]; ok {
		return errors.Wrapf(ErrDuplicateID, "item %s", rec.ID)
	}
	items[rec.ID] = &Item{
		ID:         rec.ID,
		Name:       rec.Name,
		TemplateID: rec.TemplateID,
		ParentID:   parent,
		Fields:     storeFromRecord(rec.Fields),
	}
	for _, child := range rec.Children {
		children[rec.ID] = append(children[rec.ID], child.ID)
		if err := buildTree(child, rec.ID, items, children); err != nil {
			return err
		}
	}
	return nil
}

func storeFromRecord(rec fieldsRecord) *FieldStore {
	fs := NewFieldStore()
	for f, v := range rec.Shared {
		fs.Shared[f] = v
	}
	for lang, values := range rec.Unversioned {
		fs.Unversioned[lang] = copyValues(values)
	}
	for lang, versions := range rec.Versioned {
		vv := make(map[VersionNumber]FieldValues, len(versions))
		for n, values := range versions {
			vv[n] = copyValues(values)
		}
		fs.Versioned[lang] = vv
	}
	return fs
}

// record converts the in-memory item and its descendants back to the
// persisted shape.
func (m *Mapping) record(id ID) *itemRecord {
	item := m.items[id]
	rec := &itemRecord{
		ID:         item.ID,
		Name:       item.Name,
		TemplateID: item.TemplateID,
		Fields:     recordFromStore(item.Fields),
	}
	for _, kid := range m.children[id] {
		rec.Children = append(rec.Children, m.record(kid))
	}
	return rec
}

func recordFromStore(fs *FieldStore) fieldsRecord {
	var rec fieldsRecord
	if len(fs.Shared) > 0 {
		rec.Shared = fs.Shared
	}
	if len(fs.Unversioned) > 0 {
		rec.Unversioned = fs.Unversioned
	}
	if len(fs.Versioned) > 0 {
		rec.Versioned = fs.Versioned
	}
	return rec
}

// Commit re-serializes the whole tree and overwrites the backing file.
// Hosts normally never call this: every mutating operation commits before
// returning. It is exposed for recovery after a failed commit.
func (m *Mapping) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitLocked()
}

// commitLocked writes the tree to the backing file in place. There is no
// temp-file-then-rename step and no file locking; the file is freshly
// created if missing, along with its directory. A write failure leaves the
// in-memory tree ahead of the file until the next successful commit.
// The caller must hold mu.
func (m *Mapping) commitLocked() error {
	records := make([]*itemRecord, 0, len(m.roots))
	for _, id := range m.roots {
		records = append(records, m.record(id))
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding mapping %s", m.Name)
	}
	data = append(data, '\n')
	if dir := filepath.Dir(m.Path); dir != "" {
		if err := os.MkdirAll(dir, 0775); err != nil {
			return errors.Wrapf(err, "creating directory for %s", m.Path)
		}
	}
	if err := os.WriteFile(m.Path, data, 0664); err != nil {
		commitErrors.Inc()
		log.Println("mapping commit:", m.Name, err)
		raven.CaptureError(err, map[string]string{"Mapping": m.Name, "Path": m.Path})
		return errors.Wrapf(err, "writing mapping file %s", m.Path)
	}
	commitCount.Inc()
	m.notifyLocked()
	return nil
}

// notifyLocked tells the notifier the tree changed. Runs after every load
// and successful commit. The caller must hold mu.
func (m *Mapping) notifyLocked() {
	ids := make([]ID, 0, len(m.items))
	var walk func(list []ID)
	walk = func(list []ID) {
		for _, id := range list {
			ids = append(ids, id)
			walk(m.children[id])
		}
	}
	walk(m.roots)
	m.Notify.MappingChanged(m.Name, m.Name+"@"+m.stamp(), ids)
}
