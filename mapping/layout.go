package mapping

// A Layout decides how a mapping file attaches to the host's larger content
// tree. Items inside the file always nest under their structural parent; the
// layout only governs top-level records, whose parent is outside the file.
//
// The shared algorithms (field resolution, version numbering, sharing
// migration, the codec) are implemented once on Mapping against this
// interface.
type Layout interface {
	// Anchor is the external item id top-level records hang from. It is
	// assigned as the ParentID of every top-level item during load.
	Anchor() ID

	// AllowsRoot reports whether an item with the given parent id may be
	// stored as a new top-level record. rootCount is the current number of
	// top-level records.
	AllowsRoot(parentID ID, rootCount int) bool
}

// ChildrenLayout stores the children of one external item. The file may
// hold any number of top-level records, each parented by ItemID.
type ChildrenLayout struct {
	ItemID ID
}

// Anchor implements Layout.
func (l ChildrenLayout) Anchor() ID { return l.ItemID }

// AllowsRoot implements Layout.
func (l ChildrenLayout) AllowsRoot(parentID ID, rootCount int) bool {
	return parentID == l.ItemID
}

// SubtreeLayout stores one whole subtree. The file holds at most one
// top-level record, the subtree root, whose external parent is ParentID.
type SubtreeLayout struct {
	ParentID ID
}

// Anchor implements Layout.
func (l SubtreeLayout) Anchor() ID { return l.ParentID }

// AllowsRoot implements Layout.
func (l SubtreeLayout) AllowsRoot(parentID ID, rootCount int) bool {
	return parentID == l.ParentID && rootCount == 0
}
