package mapping

// FieldSharing classifies which scope a field's values live in. The
// classification is a property of the field's template definition and can
// change after data exists; see ChangeFieldSharing.
type FieldSharing int

const (
	// VersionedField values are stored per language per version.
	VersionedField FieldSharing = iota

	// UnversionedField values are stored per language.
	UnversionedField

	// SharedField values are stored once per item.
	SharedField
)

func (s FieldSharing) String() string {
	switch s {
	case VersionedField:
		return "versioned"
	case UnversionedField:
		return "unversioned"
	case SharedField:
		return "shared"
	}
	return "unknown"
}

// A FieldDefinition describes one field of a template: its sharing
// classification and whether its values reference blob artifacts.
type FieldDefinition struct {
	ID      FieldID
	Name    string
	Sharing FieldSharing
	Blob    bool
}

// A TemplateSource resolves field and template metadata. It is consulted on
// every save to route values to the correct scope, and on delete to find
// blob references.
type TemplateSource interface {
	// Field returns the definition for a field id. ok is false if the
	// field is unknown; unknown fields are skipped during saves.
	Field(id FieldID) (def FieldDefinition, ok bool)

	// TemplateFields returns the ordered field definitions of a template.
	TemplateFields(templateID ID) []FieldDefinition
}

// A BlobStore deletes blob artifacts referenced from field values. Deleting
// a missing blob should not be an error.
type BlobStore interface {
	Delete(blobID string) error
}

// An Initializer populates required fields on a freshly built item. It runs
// over every item during tree construction and on each created item.
type Initializer interface {
	InitItem(item *Item)
}

// A Notifier is told after every load and commit so auxiliary metadata can
// be regenerated. Calls are fire-and-forget: the mapping ignores anything
// the notifier does and holds its mutex while calling, so implementations
// must return promptly.
type Notifier interface {
	MappingChanged(name, label string, ids []ID)
}

// An IgnoreFunc reports whether an item is hidden from read results while
// remaining physically in the tree. The policy is host-specific; there is
// deliberately no default beyond "hide nothing".
type IgnoreFunc func(item *Item) bool

// Null collaborators, used for any field left unset before Load.

type nullTemplates struct{}

func (nullTemplates) Field(FieldID) (FieldDefinition, bool) { return FieldDefinition{}, false }
func (nullTemplates) TemplateFields(ID) []FieldDefinition   { return nil }

type nullBlobs struct{}

func (nullBlobs) Delete(string) error { return nil }

type nullInit struct{}

func (nullInit) InitItem(*Item) {}

type nullNotify struct{}

func (nullNotify) MappingChanged(string, string, []ID) {}
