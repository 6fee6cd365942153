package mapping

import "sort"

// GetItemFields returns the effective field set of an item at one version
// coordinate. For the invariant language the result is exactly the shared
// scope. For any other language the scopes are merged in order: shared,
// then the language's unversioned values, then the addressed version bucket,
// with the later scope winning on a key collision. A missing version bucket
// simply contributes nothing. ok is false if the item is unknown or hidden.
func (m *Mapping) GetItemFields(id ID, uri VersionURI) (fields FieldValues, ok bool) {
	item := m.lookup(id)
	if item == nil {
		return nil, false
	}
	fs := item.Fields
	out := copyValues(fs.Shared)
	if uri.Language == InvariantLanguage {
		return out, true
	}
	for f, v := range fs.Unversioned[uri.Language] {
		out[f] = v
	}
	for f, v := range fs.Versioned[uri.Language][uri.Version] {
		out[f] = v
	}
	return out, true
}

// GetItemVersions enumerates every (language, version) pair present in the
// item's versioned scope, sorted by language then version number. The
// result is empty, not absent, for an item with no versions; ok is false
// only if the item is unknown or hidden.
func (m *Mapping) GetItemVersions(id ID) (uris []VersionURI, ok bool) {
	item := m.lookup(id)
	if item == nil {
		return nil, false
	}
	out := []VersionURI{}
	for lang, versions := range item.Fields.Versioned {
		for n := range versions {
			out = append(out, VersionURI{Language: lang, Version: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Language != out[j].Language {
			return out[i].Language < out[j].Language
		}
		return out[i].Version < out[j].Version
	})
	return out, true
}
