package registry

import (
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/contentmap/contentmap/mapping"
)

// Config is the TOML manifest describing a set of mappings.
//
//	data-dir = "/var/lib/contentmap"
//
//	[[mapping]]
//	name = "catalog"
//	file = "catalog.json"
//	kind = "children"
//	anchor = "{11111111-1111-1111-1111-111111111111}"
type Config struct {
	// DataDir is prepended to relative mapping file paths.
	DataDir string `toml:"data-dir"`

	Mappings []MappingConfig `toml:"mapping"`
}

// MappingConfig describes one mapping in the manifest.
type MappingConfig struct {
	Name string `toml:"name"`

	// File is the backing file path, relative to DataDir unless absolute.
	File string `toml:"file"`

	// Kind is "children" (the file holds the children of the anchor item)
	// or "subtree" (the file holds one subtree whose root is parented by
	// the anchor item).
	Kind string `toml:"kind"`

	// Anchor is the external item id the top-level records hang from.
	Anchor string `toml:"anchor"`
}

// ErrBadKind means a mapping manifest entry names an unknown kind.
var ErrBadKind = errors.New("registry: unknown mapping kind")

// LoadConfig reads and decodes a TOML manifest.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	return cfg, nil
}

// layout builds the Layout for one manifest entry.
func (mc MappingConfig) layout() (mapping.Layout, error) {
	anchor := mapping.ID(mc.Anchor)
	switch mc.Kind {
	case "children", "":
		return mapping.ChildrenLayout{ItemID: anchor}, nil
	case "subtree":
		return mapping.SubtreeLayout{ParentID: anchor}, nil
	}
	return nil, errors.Wrapf(ErrBadKind, "mapping %s kind %q", mc.Name, mc.Kind)
}

// Collaborators are shared by every mapping a manifest opens. Nil fields
// stay nil and fall back to the mapping package's no-op defaults.
type Collaborators struct {
	Templates mapping.TemplateSource
	Blobs     mapping.BlobStore
	Init      mapping.Initializer
	Notify    mapping.Notifier
	Ignore    mapping.IgnoreFunc
}

// OpenFromConfig builds, loads and registers every mapping in the manifest.
// It stops at the first failure, leaving earlier mappings registered.
func (r *Registry) OpenFromConfig(cfg Config, collab Collaborators) error {
	for _, mc := range cfg.Mappings {
		mc := mc
		_, err := r.Open(mc.Name, func() (*mapping.Mapping, error) {
			layout, err := mc.layout()
			if err != nil {
				return nil, err
			}
			path := mc.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(cfg.DataDir, path)
			}
			return &mapping.Mapping{
				Name:      mc.Name,
				Path:      path,
				Layout:    layout,
				Templates: collab.Templates,
				Blobs:     collab.Blobs,
				Init:      collab.Init,
				Notify:    collab.Notify,
				Ignore:    collab.Ignore,
			}, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
