package mapping

import (
	"log"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

// Every mutating operation follows the same check-lock-recheck pattern: an
// unlocked pre-check returns the not-found result for the common case
// without taking the mapping mutex, and the check is repeated inside the
// lock because a concurrent mutator may have changed the target in between.
// Once a mutation is applied the whole tree is re-serialized to the backing
// file before the call returns.

// parentOK reports whether parentID can accept a new child: either an item
// already in the tree, or an external id the layout accepts as an anchor
// for a new top-level record.
func (m *Mapping) parentOK(parentID ID) bool {
	if m.lookup(parentID) != nil {
		return true
	}
	return m.Layout.AllowsRoot(parentID, len(m.roots))
}

// CreateItem inserts a new empty item as a child of parentID. It returns
// false if the parent is missing or the layout rejects the placement, and
// an error for invalid construction input or a failed commit.
func (m *Mapping) CreateItem(id ID, name string, templateID, parentID ID) (bool, error) {
	if id == "" || name == "" || templateID == "" {
		return false, errors.Wrapf(ErrInvalidItem, "create %q", id)
	}
	if !m.parentOK(parentID) {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.createLocked(id, name, templateID, parentID) {
		return false, nil
	}
	mutationCount.WithLabelValues("create").Inc()
	return true, m.commitLocked()
}

// createLocked registers a new item without committing. It returns false if
// the parent is no longer acceptable or the id is already taken. The caller
// must hold mu.
func (m *Mapping) createLocked(id ID, name string, templateID, parentID ID) bool {
	if _, taken := m.items[id]; taken {
		return false
	}
	if !m.parentOK(parentID) {
		return false
	}
	item := &Item{
		ID:         id,
		Name:       name,
		TemplateID: templateID,
		ParentID:   parentID,
		Fields:     NewFieldStore(),
	}
	m.Init.InitItem(item)
	m.items[id] = item
	if _, inTree := m.items[parentID]; inTree {
		m.children[parentID] = append(m.children[parentID], id)
	} else {
		m.roots = append(m.roots, id)
	}
	return true
}

// CopyItem creates a copy of sourceID named copyName under destID, with the
// source's template and a deep copy of all its field scopes. The Created
// stamp of every copied version is reset to the current time. It returns
// false if the source is missing or the copy cannot be created.
func (m *Mapping) CopyItem(sourceID, destID, copyID ID, copyName string) (bool, error) {
	src := m.lookup(sourceID)
	if src == nil || !m.parentOK(destID) {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	src = m.lookup(sourceID)
	if src == nil {
		return false, nil
	}
	if copyID == "" || copyName == "" || src.TemplateID == "" {
		return false, errors.Wrapf(ErrInvalidItem, "copy %q", copyID)
	}
	if !m.createLocked(copyID, copyName, src.TemplateID, destID) {
		return false, nil
	}
	fields := src.Fields.Copy()
	now := m.stamp()
	for _, versions := range fields.Versioned {
		for _, bucket := range versions {
			bucket[FieldCreated] = now
		}
	}
	m.items[copyID].Fields = fields
	mutationCount.WithLabelValues("copy").Inc()
	return true, m.commitLocked()
}

// MoveItem reparents an item under targetID, which must be an item in the
// tree or an external id the layout accepts. Moving an item under itself or
// one of its descendants is rejected. Returns false if either end is
// missing or the move would break the tree.
func (m *Mapping) MoveItem(id, targetID ID) (bool, error) {
	if m.lookup(id) == nil || !m.parentOK(targetID) {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(id)
	if item == nil || !m.parentOK(targetID) {
		return false, nil
	}
	if id == targetID || m.isDescendant(targetID, id) {
		return false, nil
	}
	if item.ParentID == targetID {
		return true, nil // already there
	}
	// the old and new child lists change together under the one lock
	if _, inTree := m.items[item.ParentID]; inTree {
		m.children[item.ParentID] = removeID(m.children[item.ParentID], id)
	} else {
		m.roots = removeID(m.roots, id)
	}
	if _, inTree := m.items[targetID]; inTree {
		m.children[targetID] = append(m.children[targetID], id)
	} else {
		m.roots = append(m.roots, id)
	}
	item.ParentID = targetID
	mutationCount.WithLabelValues("move").Inc()
	return true, m.commitLocked()
}

// isDescendant reports whether id is a transitive descendant of ancestor.
func (m *Mapping) isDescendant(id, ancestor ID) bool {
	for _, kid := range m.children[ancestor] {
		if kid == id || m.isDescendant(id, kid) {
			return true
		}
	}
	return false
}

func removeID(list []ID, id ID) []ID {
	for i, x := range list {
		if x == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// DeleteItem removes the item and its entire subtree, depth first. Every
// distinct blob id referenced from a blob-typed field anywhere in the
// removed subtree gets one artifact deletion attempt; failures are logged
// and swallowed, never failing the delete. Returns false if the item is
// missing or hidden.
func (m *Mapping) DeleteItem(id ID) (bool, error) {
	if m.lookup(id) == nil {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(id)
	if item == nil {
		return false, nil
	}
	blobIDs := make(map[string]struct{})
	m.deleteSubtree(id, blobIDs)
	if _, inTree := m.items[item.ParentID]; inTree {
		m.children[item.ParentID] = removeID(m.children[item.ParentID], id)
	} else {
		m.roots = removeID(m.roots, id)
	}
	for blobID := range blobIDs {
		if err := m.Blobs.Delete(blobID); err != nil {
			log.Println("mapping: delete blob", blobID, err)
			raven.CaptureError(err, map[string]string{"Mapping": m.Name, "Blob": blobID})
		}
	}
	mutationCount.WithLabelValues("delete").Inc()
	return true, m.commitLocked()
}

// deleteSubtree unregisters the item and its descendants, depth first, and
// collects the blob ids they reference. The caller must hold mu.
func (m *Mapping) deleteSubtree(id ID, blobIDs map[string]struct{}) {
	for _, kid := range m.children[id] {
		m.deleteSubtree(kid, blobIDs)
	}
	m.collectBlobs(m.items[id].Fields, blobIDs)
	delete(m.children, id)
	delete(m.items, id)
}

// collectBlobs adds every blob-typed field value in the store to the set.
func (m *Mapping) collectBlobs(fs *FieldStore, blobIDs map[string]struct{}) {
	add := func(values FieldValues) {
		for f, v := range values {
			if v == "" {
				continue
			}
			if def, ok := m.Templates.Field(f); ok && def.Blob {
				blobIDs[v] = struct{}{}
			}
		}
	}
	add(fs.Shared)
	for _, values := range fs.Unversioned {
		add(values)
	}
	for _, versions := range fs.Versioned {
		for _, values := range versions {
			add(values)
		}
	}
}

// AddVersion allocates a new version for the item in uri's language,
// numbered one past the highest existing version (1 if none exist). If
// uri.Version names an existing version, that version's values are cloned
// into the new bucket with the workflow state stripped and the Created
// stamp reset; otherwise the new bucket holds only a Created stamp. Returns
// -1 if the item is missing or hidden.
func (m *Mapping) AddVersion(id ID, uri VersionURI) (VersionNumber, error) {
	if m.lookup(id) == nil {
		return -1, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(id)
	if item == nil {
		return -1, nil
	}
	fs := item.Fields
	next := fs.MaxVersion(uri.Language) + 1
	var bucket FieldValues
	if source := fs.Versioned[uri.Language][uri.Version]; uri.Version > 0 && source != nil {
		bucket = copyValues(source)
		delete(bucket, FieldWorkflowState)
	} else {
		bucket = make(FieldValues)
	}
	bucket[FieldCreated] = m.stamp()
	if fs.Versioned[uri.Language] == nil {
		fs.Versioned[uri.Language] = make(map[VersionNumber]FieldValues)
	}
	fs.Versioned[uri.Language][next] = bucket
	mutationCount.WithLabelValues("addversion").Inc()
	return next, m.commitLocked()
}

// RemoveVersion deletes one (language, version) bucket. Returns false if
// the item is missing or the bucket does not exist.
func (m *Mapping) RemoveVersion(id ID, uri VersionURI) (bool, error) {
	if m.lookup(id) == nil {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(id)
	if item == nil {
		return false, nil
	}
	versions := item.Fields.Versioned[uri.Language]
	if _, ok := versions[uri.Version]; !ok {
		return false, nil
	}
	delete(versions, uri.Version)
	mutationCount.WithLabelValues("removeversion").Inc()
	return true, m.commitLocked()
}

// RemoveVersions clears version buckets in bulk. The invariant language
// clears every version of every language; any other language clears only
// that language's buckets, keeping the now-empty language entry. Returns
// false only if the item is missing or hidden.
func (m *Mapping) RemoveVersions(id ID, lang Language) (bool, error) {
	if m.lookup(id) == nil {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(id)
	if item == nil {
		return false, nil
	}
	fs := item.Fields
	if lang == InvariantLanguage {
		for l := range fs.Versioned {
			fs.Versioned[l] = make(map[VersionNumber]FieldValues)
		}
	} else if _, ok := fs.Versioned[lang]; ok {
		fs.Versioned[lang] = make(map[VersionNumber]FieldValues)
	}
	mutationCount.WithLabelValues("removeversions").Inc()
	return true, m.commitLocked()
}

// A FieldChange routes one value to the scope its definition dictates, or
// removes the field at one (language, version) coordinate. A nil Value is a
// removal, same as Remove.
type FieldChange struct {
	FieldID  FieldID
	Language Language
	Version  VersionNumber
	Value    *string
	Remove   bool
}

// Changes is the batch applied by SaveItem. An empty Name or TemplateID
// leaves the current value. FullResave clears all three scopes before the
// field changes are applied.
type Changes struct {
	Name       string
	TemplateID ID
	FullResave bool
	Fields     []FieldChange
}

// SaveItem applies property and field changes to one item. Field changes
// naming the null field marker or a field the template source cannot
// resolve are skipped. Removals clear the field from all three scopes at
// the change's coordinate; under FullResave they are skipped as redundant,
// since the scopes were already cleared. Values are routed to the scope of
// the field's sharing classification, lazily creating the version bucket.
//
// There is no rollback inside the lock: if a change carries an unsupported
// sharing classification, the changes applied so far are still committed
// and the error is returned with ok false. Returns false with a nil error
// if the item is missing or hidden.
func (m *Mapping) SaveItem(id ID, changes Changes) (bool, error) {
	if m.lookup(id) == nil {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(id)
	if item == nil {
		return false, nil
	}
	if changes.Name != "" {
		item.Name = changes.Name
	}
	if changes.TemplateID != "" {
		item.TemplateID = changes.TemplateID
	}
	fs := item.Fields
	if changes.FullResave {
		fs.Clear()
	}
	var applyErr error
	for _, fc := range changes.Fields {
		if fc.FieldID == NullFieldID {
			continue
		}
		def, ok := m.Templates.Field(fc.FieldID)
		if !ok {
			continue
		}
		if fc.Remove || fc.Value == nil {
			// removing nothing is a declared no-op, not an error
			if !changes.FullResave {
				fs.removeAt(fc.FieldID, fc.Language, fc.Version)
			}
			continue
		}
		switch def.Sharing {
		case SharedField:
			fs.Shared[fc.FieldID] = *fc.Value
		case UnversionedField:
			fs.setUnversioned(fc.Language, fc.FieldID, *fc.Value)
		case VersionedField:
			bucket := fs.ensureVersion(fc.Language, fc.Version, m.stamp())
			bucket[fc.FieldID] = *fc.Value
		default:
			applyErr = errors.Wrapf(ErrFieldSharing, "field %s sharing %d", fc.FieldID, def.Sharing)
		}
		if applyErr != nil {
			break
		}
	}
	mutationCount.WithLabelValues("save").Inc()
	commitErr := m.commitLocked()
	if applyErr != nil {
		return false, applyErr
	}
	return true, commitErr
}
