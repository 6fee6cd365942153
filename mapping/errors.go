package mapping

import "errors"

// Error taxonomy. Not-found conditions are reported as boolean or nil
// results, never as errors. Errors signal either invalid construction input,
// an internal consistency failure mid-save, or a persistence failure. None
// of them are retried internally; after a failed mutation the in-memory tree
// may be ahead of the backing file, and callers should Reload to verify.
var (
	// ErrNoLayout means Load was called without a Layout.
	ErrNoLayout = errors.New("mapping: no layout configured")

	// ErrInvalidItem means CreateItem was given an empty id, name, or
	// template id.
	ErrInvalidItem = errors.New("mapping: invalid item construction input")

	// ErrFieldSharing means a field definition carries a sharing
	// classification the save routine cannot route. This is an internal
	// consistency failure: the save aborts mid-batch and the item stays
	// committed in its partially-applied state.
	ErrFieldSharing = errors.New("mapping: unsupported field sharing classification")

	// ErrDuplicateID means the backing file contains the same item id
	// twice. The file is treated as corrupt and the load fails.
	ErrDuplicateID = errors.New("mapping: duplicate item id in file")
)
