package templates

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/cuemby/pixelforge/pkg/log"
	"github.com/cuemby/pixelforge/pkg/types"
)

// Meta describes the catalog as a whole, returned alongside Items.
type Meta struct {
	Count   int    `json:"count"`
	Source  string `json:"source"`
	Version string `json:"version"`
}

// Filter narrows List results; zero values impose no restriction.
type Filter struct {
	Category string
	Keyword  string
}

// Catalog is a read-only, in-memory set of Templates. It starts from a
// small built-in seed and can be overridden by a JSON file on disk via
// Refresh, so deployments can ship their own catalog without a code
// change.
type Catalog struct {
	path string

	mu      sync.RWMutex
	items   []types.Template
	version string
}

// New creates a Catalog seeded with the built-in defaults. path, if
// non-empty, is a JSON file of []types.Template consulted on Refresh.
func New(path string) *Catalog {
	c := &Catalog{path: path, items: append([]types.Template(nil), defaultTemplates...), version: "built-in"}
	return c
}

// Refresh reloads the catalog from disk when a path was configured. A
// missing file is not an error — the Catalog simply keeps serving its
// current items.
func (c *Catalog) Refresh() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		log.WithComponent("templates").Debug().Str("path", c.path).Msg("catalog file not found, keeping current items")
		return nil
	}
	if err != nil {
		return err
	}

	var items []types.Template
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	c.mu.Lock()
	c.items = items
	c.version = "file:" + c.path
	c.mu.Unlock()

	log.WithComponent("templates").Info().Int("count", len(items)).Str("path", c.path).Msg("reloaded template catalog")
	return nil
}

// List returns the Meta and Items matching filter. An empty filter
// returns every Template.
func (c *Catalog) List(filter Filter) (Meta, []types.Template) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := make([]types.Template, 0, len(c.items))
	for _, tpl := range c.items {
		if filter.Category != "" && !strings.EqualFold(tpl.Category, filter.Category) {
			continue
		}
		if filter.Keyword != "" && !matchesKeyword(tpl, filter.Keyword) {
			continue
		}
		matched = append(matched, tpl)
	}

	return Meta{Count: len(matched), Source: "pixelforge", Version: c.version}, matched
}

func matchesKeyword(tpl types.Template, keyword string) bool {
	keyword = strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(tpl.Name), keyword) || strings.Contains(strings.ToLower(tpl.Prompt), keyword) {
		return true
	}
	for _, tag := range tpl.Tags {
		if strings.Contains(strings.ToLower(tag), keyword) {
			return true
		}
	}
	return false
}

var defaultTemplates = []types.Template{
	{ID: "portrait-studio", Name: "Studio Portrait", Category: "portrait", Prompt: "studio portrait, soft key light, shallow depth of field, 85mm lens", Tags: []string{"portrait", "studio"}, AspectRatio: types.AspectRatio3x4},
	{ID: "landscape-golden-hour", Name: "Golden Hour Landscape", Category: "landscape", Prompt: "wide landscape photo, golden hour light, dramatic clouds", Tags: []string{"landscape", "nature"}, AspectRatio: types.AspectRatio16x9},
	{ID: "product-white-bg", Name: "Product on White", Category: "product", Prompt: "product photography on a seamless white background, soft shadow, studio lighting", Tags: []string{"product", "ecommerce"}, AspectRatio: types.AspectRatio1x1},
	{ID: "concept-art-fantasy", Name: "Fantasy Concept Art", Category: "concept-art", Prompt: "detailed fantasy concept art, dramatic lighting, painterly style", Tags: []string{"fantasy", "concept-art"}, AspectRatio: types.AspectRatio16x9},
	{ID: "mobile-wallpaper", Name: "Mobile Wallpaper", Category: "wallpaper", Prompt: "abstract gradient wallpaper, vibrant colors, minimal", Tags: []string{"wallpaper", "abstract"}, AspectRatio: types.AspectRatio9x16},
}
