package mapping

import (
	"sync"

	"github.com/facebookgo/clock"
)

// A Mapping is one logical store: the items of one backing file, held in
// memory and re-serialized after every mutation.
//
// Set the public fields and then call Load. Only Path and Layout are
// required; nil collaborators are replaced with no-op implementations. Do
// not change any fields after calling Load.
//
// One mutex serializes the load and every mutating operation. Read methods
// never take the mutex: they may observe a tree that is concurrently being
// mutated, so callers get eventually-consistent, non-isolated reads across
// separate calls. The unlocked pre-checks inside the mutating operations are
// a fast path only and provide no isolation either.
type Mapping struct {
	// Name identifies the mapping to the notifier and in logs.
	Name string

	// Path is the backing file. A missing file loads as an empty mapping.
	Path string

	// Layout attaches the file's top-level records to the host tree.
	Layout Layout

	// Templates resolves field definitions. Defaults to an empty source,
	// which makes every save skip its field changes.
	Templates TemplateSource

	// Blobs receives delete requests for blob artifacts referenced by
	// items removed with DeleteItem.
	Blobs BlobStore

	// Init populates default fields on freshly built items.
	Init Initializer

	// Notify is told after every load and commit.
	Notify Notifier

	// Ignore hides items from read results while they stay in the tree.
	Ignore IgnoreFunc

	// Clock supplies Created timestamps. Defaults to the wall clock.
	Clock clock.Clock

	mu       sync.Mutex // serializes load and all mutations
	items    map[ID]*Item
	children map[ID][]ID
	roots    []ID
}

// Load reads the backing file and builds the item tree, then commits once,
// so the file is rewritten in normalized form (and created if it was
// missing). Load must be called once before any other method; a failed Load
// leaves the mapping unusable.
func (m *Mapping) Load() error {
	if m.Layout == nil {
		return ErrNoLayout
	}
	if m.Templates == nil {
		m.Templates = nullTemplates{}
	}
	if m.Blobs == nil {
		m.Blobs = nullBlobs{}
	}
	if m.Init == nil {
		m.Init = nullInit{}
	}
	if m.Notify == nil {
		m.Notify = nullNotify{}
	}
	if m.Clock == nil {
		m.Clock = clock.New()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	records, err := readFile(m.Path)
	if err != nil {
		return err
	}
	items := make(map[ID]*Item)
	children := make(map[ID][]ID)
	var roots []ID
	for _, rec := range records {
		roots = append(roots, rec.ID)
		if err := buildTree(rec, m.Layout.Anchor(), items, children); err != nil {
			return err
		}
	}
	for _, item := range items {
		m.Init.InitItem(item)
	}
	m.items = items
	m.children = children
	m.roots = roots
	// a load ends with one commit, normalizing the file and firing the
	// notifier the same way every mutation does
	return m.commitLocked()
}

// Reload rebuilds the tree from the backing file, discarding the in-memory
// state. Use after a failed mutation left the tree ahead of the file.
func (m *Mapping) Reload() error {
	return m.Load()
}

// ignored reports whether the item is hidden from reads.
func (m *Mapping) ignored(item *Item) bool {
	return m.Ignore != nil && m.Ignore(item)
}

// lookup returns the item if it exists and is not hidden.
func (m *Mapping) lookup(id ID) *Item {
	item := m.items[id]
	if item == nil || m.ignored(item) {
		return nil
	}
	return item
}

// GetItem returns the item with the given id, or nil if the id is unknown
// or the item is hidden.
func (m *Mapping) GetItem(id ID) *Item {
	return m.lookup(id)
}

// GetChildIDs returns the ordered ids of the item's visible children. ok is
// false if the id itself is unknown or hidden.
func (m *Mapping) GetChildIDs(id ID) (kids []ID, ok bool) {
	if m.lookup(id) == nil {
		return nil, false
	}
	return m.visible(m.children[id]), true
}

// visible filters hidden items out of a child list, returning a copy.
func (m *Mapping) visible(ids []ID) []ID {
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if m.lookup(id) != nil {
			out = append(out, id)
		}
	}
	return out
}

// GetAllItemIDs returns every visible item id, in depth-first tree order.
func (m *Mapping) GetAllItemIDs() []ID {
	var out []ID
	var walk func(ids []ID)
	walk = func(ids []ID) {
		for _, id := range ids {
			if m.lookup(id) == nil {
				continue
			}
			out = append(out, id)
			walk(m.children[id])
		}
	}
	walk(m.roots)
	return out
}

// GetParentID returns the parent id of the item. For a top-level item this
// is the layout's anchor. ok is false if the id is unknown or hidden.
func (m *Mapping) GetParentID(id ID) (parent ID, ok bool) {
	item := m.lookup(id)
	if item == nil {
		return "", false
	}
	return item.ParentID, true
}

// GetTemplateItemIDs returns the ids of all visible items which are
// templates, in depth-first tree order.
func (m *Mapping) GetTemplateItemIDs() []ID {
	var out []ID
	for _, id := range m.GetAllItemIDs() {
		if m.items[id].TemplateID == TemplateTemplateID {
			out = append(out, id)
		}
	}
	return out
}

// GetLanguages returns the distinct names of all visible language items.
func (m *Mapping) GetLanguages() []Language {
	seen := make(map[Language]struct{})
	var out []Language
	for _, id := range m.GetAllItemIDs() {
		item := m.items[id]
		if item.TemplateID != LanguageTemplateID {
			continue
		}
		lang := Language(item.Name)
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	return out
}

// Len returns the number of items in the tree, hidden ones included.
func (m *Mapping) Len() int { return len(m.items) }

// FilePath returns the backing file path.
func (m *Mapping) FilePath() string { return m.Path }

// stamp formats the current time for FieldCreated values.
func (m *Mapping) stamp() string {
	return m.Clock.Now().UTC().Format(createdFormat)
}
