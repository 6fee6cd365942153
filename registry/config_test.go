package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentmap/contentmap/mapping"
)

const manifest = `
data-dir = "/var/lib/contentmap"

[[mapping]]
name = "catalog"
file = "catalog.json"
kind = "children"
anchor = "{11111111-1111-1111-1111-111111111111}"

[[mapping]]
name = "layouts"
file = "/srv/layouts.json"
kind = "subtree"
anchor = "{22222222-2222-2222-2222-222222222222}"
`

func writeManifest(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contentmap.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeManifest(t, manifest))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/contentmap", cfg.DataDir)
	require.Len(t, cfg.Mappings, 2)
	assert.Equal(t, MappingConfig{
		Name:   "catalog",
		File:   "catalog.json",
		Kind:   "children",
		Anchor: "{11111111-1111-1111-1111-111111111111}",
	}, cfg.Mappings[0])
	assert.Equal(t, "subtree", cfg.Mappings[1].Kind)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLayoutKinds(t *testing.T) {
	l, err := MappingConfig{Kind: "children", Anchor: string(anchor)}.layout()
	require.NoError(t, err)
	assert.Equal(t, mapping.ChildrenLayout{ItemID: anchor}, l)

	l, err = MappingConfig{Kind: "", Anchor: string(anchor)}.layout()
	require.NoError(t, err)
	assert.Equal(t, mapping.ChildrenLayout{ItemID: anchor}, l)

	l, err = MappingConfig{Kind: "subtree", Anchor: string(anchor)}.layout()
	require.NoError(t, err)
	assert.Equal(t, mapping.SubtreeLayout{ParentID: anchor}, l)

	_, err = MappingConfig{Name: "bad", Kind: "forest"}.layout()
	assert.Equal(t, ErrBadKind, errors.Cause(err))
}

func TestOpenFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		DataDir: dir,
		Mappings: []MappingConfig{
			{Name: "catalog", File: "catalog.json", Anchor: string(anchor)},
			{Name: "media", File: filepath.Join(dir, "media.json"), Anchor: string(anchor)},
		},
	}
	r := New()
	require.NoError(t, r.OpenFromConfig(cfg, Collaborators{}))

	m := r.Get("catalog")
	require.NotNil(t, m)
	assert.Equal(t, filepath.Join(dir, "catalog.json"), m.FilePath())
	m = r.Get("media")
	require.NotNil(t, m)
	assert.Equal(t, filepath.Join(dir, "media.json"), m.FilePath())
}

func TestOpenFromConfigBadKind(t *testing.T) {
	cfg := Config{Mappings: []MappingConfig{{Name: "bad", Kind: "forest"}}}
	r := New()
	err := r.OpenFromConfig(cfg, Collaborators{})
	assert.Equal(t, ErrBadKind, errors.Cause(err))
	assert.Nil(t, r.Get("bad"))
}
