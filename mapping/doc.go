/*
Package mapping implements a hierarchical, multi-language, multi-version
item store persisted as a single JSON file.

A Mapping holds the items of one backing file in memory. Items form a tree,
and each item carries field values in three sharing scopes: shared (one value
per item), unversioned (one value per language), and versioned (one value per
language and version number). Reads are served from the in-memory tree.
Every mutation is applied under the mapping's mutex and then the whole tree
is re-serialized to the backing file before the call returns.

The package is a library boundary. Resolving host identifiers, template
metadata, blob artifact storage, and post-commit metadata generation are
collaborator interfaces supplied by the host.
*/
package mapping
