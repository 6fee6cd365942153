// Package templates resolves template and field metadata: which sharing
// scope a field's values belong to, and whether a field references a blob
// artifact. The Registry satisfies mapping.TemplateSource.
//
// Definitions are registered programmatically, or seeded from a mapping
// whose tree holds the template items themselves (a template item's
// children are its field definitions).
package templates

import (
	"sort"
	"sync"

	"github.com/contentmap/contentmap/mapping"
)

// Field ids consulted when seeding definitions from template items.
const (
	// fieldShared flags a field definition item as shared.
	fieldShared = mapping.FieldID("{BE351A73-FCB0-4213-93FA-C302D8AB4F51}")

	// fieldUnversioned flags a field definition item as unversioned.
	fieldUnversioned = mapping.FieldID("{39847666-389D-409B-95BD-F2016F11EED5}")

	// fieldType holds the field's data type name, e.g. "attachment".
	fieldType = mapping.FieldID("{AB162CC0-DC80-4ABB-8871-998EE5D7BA32}")
)

// Registry is an in-memory template metadata source.
type Registry struct {
	mu        sync.RWMutex
	fields    map[mapping.FieldID]mapping.FieldDefinition
	templates map[mapping.ID][]mapping.FieldID
}

var _ mapping.TemplateSource = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fields:    make(map[mapping.FieldID]mapping.FieldDefinition),
		templates: make(map[mapping.ID][]mapping.FieldID),
	}
}

// Define registers the field definitions of one template, in order. A field
// already registered under another template keeps its earlier definition.
func (r *Registry) Define(templateID mapping.ID, defs ...mapping.FieldDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range defs {
		if _, ok := r.fields[def.ID]; !ok {
			r.fields[def.ID] = def
		}
		r.templates[templateID] = append(r.templates[templateID], def.ID)
	}
}

// Field implements mapping.TemplateSource.
func (r *Registry) Field(id mapping.FieldID) (mapping.FieldDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.fields[id]
	return def, ok
}

// TemplateFields implements mapping.TemplateSource.
func (r *Registry) TemplateFields(templateID mapping.ID) []mapping.FieldDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.templates[templateID]
	out := make([]mapping.FieldDefinition, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.fields[id])
	}
	return out
}

// Templates returns the sorted ids of all registered templates.
func (r *Registry) Templates() []mapping.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mapping.ID, 0, len(r.templates))
	for id := range r.templates {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Seed registers definitions for every template item found in the mapping.
// Each child of a template item is taken as one field definition: the
// child's id is the field id, its name the field name, and its shared and
// unversioned flag fields decide the sharing classification. A field whose
// type is "attachment" references blob artifacts.
func (r *Registry) Seed(m *mapping.Mapping) {
	for _, tid := range m.GetTemplateItemIDs() {
		kids, ok := m.GetChildIDs(tid)
		if !ok {
			continue
		}
		var defs []mapping.FieldDefinition
		for _, kid := range kids {
			item := m.GetItem(kid)
			if item == nil {
				continue
			}
			fields, ok := m.GetItemFields(kid, mapping.VersionURI{Language: mapping.InvariantLanguage})
			if !ok {
				continue
			}
			defs = append(defs, mapping.FieldDefinition{
				ID:      mapping.FieldID(item.ID),
				Name:    item.Name,
				Sharing: classify(fields),
				Blob:    fields[fieldType] == "attachment",
			})
		}
		r.Define(tid, defs...)
	}
}

func classify(fields mapping.FieldValues) mapping.FieldSharing {
	switch {
	case fields[fieldShared] == "1":
		return mapping.SharedField
	case fields[fieldUnversioned] == "1":
		return mapping.UnversionedField
	}
	return mapping.VersionedField
}
