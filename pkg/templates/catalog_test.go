package templates

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/pixelforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListWithNoFilterReturnsEverything(t *testing.T) {
	c := New("")
	meta, items := c.List(Filter{})
	assert.Equal(t, len(defaultTemplates), meta.Count)
	assert.Len(t, items, len(defaultTemplates))
}

func TestListFiltersByCategory(t *testing.T) {
	c := New("")
	_, items := c.List(Filter{Category: "portrait"})
	require.Len(t, items, 1)
	assert.Equal(t, "portrait-studio", items[0].ID)
}

func TestListFiltersByKeywordAcrossTags(t *testing.T) {
	c := New("")
	_, items := c.List(Filter{Keyword: "ecommerce"})
	require.Len(t, items, 1)
	assert.Equal(t, "product-white-bg", items[0].ID)
}

func TestRefreshLoadsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	override := []types.Template{{ID: "custom-one", Name: "Custom", Category: "custom", Prompt: "a custom prompt"}}
	data, err := json.Marshal(override)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c := New(path)
	require.NoError(t, c.Refresh())

	meta, items := c.List(Filter{})
	assert.Equal(t, 1, meta.Count)
	require.Len(t, items, 1)
	assert.Equal(t, "custom-one", items[0].ID)
}

func TestRefreshWithMissingFileKeepsDefaults(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, c.Refresh())

	_, items := c.List(Filter{})
	assert.Len(t, items, len(defaultTemplates))
}
