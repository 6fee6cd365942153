package mapping

import "sort"

// ID identifies an item. IDs are opaque GUID strings supplied by the host.
type ID string

// FieldID identifies a field within an item's field store.
type FieldID string

// Language names a content language, e.g. "en" or "de-DE".
type Language string

// VersionNumber numbers a versioned-field bucket for one language.
// Version numbers are positive; gaps are allowed.
type VersionNumber int

// FieldValues maps field ids to their raw string values. A missing key
// means "no value", which is distinct from an empty string.
type FieldValues map[FieldID]string

// InvariantLanguage selects the shared scope only. Field resolution for the
// invariant language ignores the unversioned and versioned scopes entirely.
const InvariantLanguage = Language("")

// Well-known ids from the host's content schema.
const (
	// TemplateTemplateID marks items which are templates themselves.
	TemplateTemplateID = ID("{AB86861A-6030-46C5-B394-E8F99E8B87DB}")

	// LanguageTemplateID marks items which define a content language.
	LanguageTemplateID = ID("{F68F13A6-3395-426A-B9A1-FA2DC60D94EB}")

	// FieldCreated stamps a version bucket with its creation time.
	FieldCreated = FieldID("{25BED78C-4957-4165-998A-CA1B52F67497}")

	// FieldWorkflowState records the workflow state of a version. It is
	// stripped when a version is cloned.
	FieldWorkflowState = FieldID("{3E431DE1-525E-47A3-B6B0-1CCBEC3A8C98}")

	// NullFieldID is the host's null field marker. Field changes naming it
	// are skipped.
	NullFieldID = FieldID("{00000000-0000-0000-0000-000000000000}")
)

// createdFormat is the timestamp layout written into FieldCreated values.
const createdFormat = "20060102T150405"

// VersionURI selects exactly one versioned bucket: a (language, version
// number) coordinate.
type VersionURI struct {
	Language Language
	Version  VersionNumber
}

// An Item is one node of the content tree. Child links are not kept on the
// item; the owning Mapping records them as ordered ID lists so the tree
// stays acyclic by construction.
type Item struct {
	ID         ID
	Name       string
	TemplateID ID
	ParentID   ID
	Fields     *FieldStore
}

// A FieldStore holds the field values of one item in the three sharing
// scopes. A given field id should occupy at most one scope at a time; only
// the sharing migration enforces this, so drift between migrations is
// possible and tolerated by readers.
type FieldStore struct {
	Shared      FieldValues
	Unversioned map[Language]FieldValues
	Versioned   map[Language]map[VersionNumber]FieldValues
}

// NewFieldStore returns an empty field store with all scopes allocated.
func NewFieldStore() *FieldStore {
	return &FieldStore{
		Shared:      make(FieldValues),
		Unversioned: make(map[Language]FieldValues),
		Versioned:   make(map[Language]map[VersionNumber]FieldValues),
	}
}

// Copy returns a deep copy of the field store.
func (fs *FieldStore) Copy() *FieldStore {
	out := NewFieldStore()
	for f, v := range fs.Shared {
		out.Shared[f] = v
	}
	for lang, values := range fs.Unversioned {
		out.Unversioned[lang] = copyValues(values)
	}
	for lang, versions := range fs.Versioned {
		vv := make(map[VersionNumber]FieldValues, len(versions))
		for n, values := range versions {
			vv[n] = copyValues(values)
		}
		out.Versioned[lang] = vv
	}
	return out
}

func copyValues(values FieldValues) FieldValues {
	out := make(FieldValues, len(values))
	for f, v := range values {
		out[f] = v
	}
	return out
}

// Clear empties all three scopes.
func (fs *FieldStore) Clear() {
	fs.Shared = make(FieldValues)
	fs.Unversioned = make(map[Language]FieldValues)
	fs.Versioned = make(map[Language]map[VersionNumber]FieldValues)
}

// Languages returns the sorted set of languages present in the unversioned
// or versioned scope.
func (fs *FieldStore) Languages() []Language {
	set := make(map[Language]struct{})
	for lang := range fs.Unversioned {
		set[lang] = struct{}{}
	}
	for lang := range fs.Versioned {
		set[lang] = struct{}{}
	}
	out := make([]Language, 0, len(set))
	for lang := range set {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MaxVersion returns the highest version number present for the language,
// or 0 if the language has no versions.
func (fs *FieldStore) MaxVersion(lang Language) VersionNumber {
	var max VersionNumber
	for n := range fs.Versioned[lang] {
		if n > max {
			max = n
		}
	}
	return max
}

// versionNumbers returns the sorted version numbers present for a language.
func (fs *FieldStore) versionNumbers(lang Language) []VersionNumber {
	out := make([]VersionNumber, 0, len(fs.Versioned[lang]))
	for n := range fs.Versioned[lang] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ensureVersion returns the bucket for (lang, n), creating it seeded with a
// Created stamp if it does not exist. Version numbers start at 1; anything
// lower is taken to mean the first version.
func (fs *FieldStore) ensureVersion(lang Language, n VersionNumber, created string) FieldValues {
	if n < 1 {
		n = 1
	}
	versions := fs.Versioned[lang]
	if versions == nil {
		versions = make(map[VersionNumber]FieldValues)
		fs.Versioned[lang] = versions
	}
	bucket := versions[n]
	if bucket == nil {
		bucket = FieldValues{FieldCreated: created}
		versions[n] = bucket
	}
	return bucket
}

// setUnversioned stores a value in the unversioned scope for a language.
func (fs *FieldStore) setUnversioned(lang Language, f FieldID, value string) {
	values := fs.Unversioned[lang]
	if values == nil {
		values = make(FieldValues)
		fs.Unversioned[lang] = values
	}
	values[f] = value
}

// removeEverywhere deletes the field from all scopes, all languages, and
// all versions.
func (fs *FieldStore) removeEverywhere(f FieldID) {
	delete(fs.Shared, f)
	for _, values := range fs.Unversioned {
		delete(values, f)
	}
	for _, versions := range fs.Versioned {
		for _, values := range versions {
			delete(values, f)
		}
	}
}

// removeAt deletes the field from all three scopes at one (language,
// version) coordinate: the shared value, the language's unversioned value,
// and the value in the addressed version bucket.
func (fs *FieldStore) removeAt(f FieldID, lang Language, n VersionNumber) {
	delete(fs.Shared, f)
	delete(fs.Unversioned[lang], f)
	delete(fs.Versioned[lang][n], f)
}
