// Package catalog provides the static level and abbreviation content.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/typex/internal/model"
)

//go:embed catalog.toml
var defaultCatalog []byte

// Format identifies a catalog encoding.
type Format string

const (
	// FormatTOML is the built-in catalog encoding.
	FormatTOML Format = "toml"
	// FormatYAML is accepted for user-supplied catalogs.
	FormatYAML Format = "yaml"
)

const (
	datePlaceholder = "{{date}}"
	timePlaceholder = "{{time}}"
)

type file struct {
	Abbreviations []model.Abbreviation `toml:"abbreviations" yaml:"abbreviations"`
	Levels        []model.Level        `toml:"levels" yaml:"levels"`
}

// Catalog holds immutable levels and abbreviations with indexed lookups.
type Catalog struct {
	levels []model.Level
	abbrs  []model.Abbreviation
	byAbbr map[string]int
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog, FormatTOML, time.Now())
}

// Load reads a catalog file, choosing the decoder from the file extension.
func Load(path string) (*Catalog, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		format = FormatTOML
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data, format, time.Now())
}

// Parse decodes and validates catalog data. Date and time placeholders in
// expansions are rendered with now.
func Parse(data []byte, format Format, now time.Time) (*Catalog, error) {
	var f file
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode catalog: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown catalog key %q", undecoded[0].String())
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}

	for i := range f.Abbreviations {
		a := &f.Abbreviations[i]
		a.Expansion = strings.ReplaceAll(a.Expansion, datePlaceholder, now.Format("1/2/2006"))
		a.Expansion = strings.ReplaceAll(a.Expansion, timePlaceholder, now.Format("3:04:05 PM"))
		a.Expansion = norm.NFC.String(a.Expansion)
	}
	for i := range f.Levels {
		f.Levels[i].BaseText = norm.NFC.String(f.Levels[i].BaseText)
	}
	sort.SliceStable(f.Levels, func(i, j int) bool {
		return f.Levels[i].ID < f.Levels[j].ID
	})

	c := &Catalog{
		levels: f.Levels,
		abbrs:  f.Abbreviations,
		byAbbr: make(map[string]int, len(f.Abbreviations)),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks ids, tiers, required speeds, triggers and cross references.
func (c *Catalog) Validate() error {
	if len(c.levels) == 0 {
		return fmt.Errorf("catalog has no levels")
	}
	for i, a := range c.abbrs {
		if a.ID == "" {
			return fmt.Errorf("abbreviation %d has no id", i+1)
		}
		if _, dup := c.byAbbr[a.ID]; dup {
			return fmt.Errorf("duplicate abbreviation id %q", a.ID)
		}
		if a.Trigger == "" || strings.IndexFunc(a.Trigger, unicode.IsSpace) >= 0 {
			return fmt.Errorf("abbreviation %q: trigger must be non-empty without whitespace", a.ID)
		}
		if a.UnlockTier < 1 {
			return fmt.Errorf("abbreviation %q: tier must be >= 1", a.ID)
		}
		c.byAbbr[a.ID] = i
	}
	for i, l := range c.levels {
		if l.ID != i+1 {
			return fmt.Errorf("level ids must run 1..%d without gaps (found %d at position %d)", len(c.levels), l.ID, i+1)
		}
		if l.BaseText == "" {
			return fmt.Errorf("level %d has no text", l.ID)
		}
		if l.RequiredWPM <= 0 {
			return fmt.Errorf("level %d: required-wpm must be > 0", l.ID)
		}
		for _, ref := range []string{l.UnlockableAbbreviationID, l.PracticeAbbreviationID} {
			if ref == "" {
				continue
			}
			if _, ok := c.byAbbr[ref]; !ok {
				return fmt.Errorf("level %d references unknown abbreviation %q", l.ID, ref)
			}
		}
	}
	return nil
}

// LevelByID returns the level with the given id.
func (c *Catalog) LevelByID(id int) (model.Level, bool) {
	if id < 1 || id > len(c.levels) {
		return model.Level{}, false
	}
	return c.levels[id-1], true
}

// AbbreviationByID returns the abbreviation with the given id.
func (c *Catalog) AbbreviationByID(id string) (model.Abbreviation, bool) {
	idx, ok := c.byAbbr[id]
	if !ok {
		return model.Abbreviation{}, false
	}
	return c.abbrs[idx], true
}

// AbbreviationsUpToTier returns every abbreviation unlocked at or below tier, in catalog order.
func (c *Catalog) AbbreviationsUpToTier(tier int) []model.Abbreviation {
	out := make([]model.Abbreviation, 0, len(c.abbrs))
	for _, a := range c.abbrs {
		if a.UnlockTier <= tier {
			out = append(out, a)
		}
	}
	return out
}

// Levels returns all levels ordered by id.
func (c *Catalog) Levels() []model.Level {
	return append([]model.Level(nil), c.levels...)
}

// Abbreviations returns all abbreviations in catalog order.
func (c *Catalog) Abbreviations() []model.Abbreviation {
	return append([]model.Abbreviation(nil), c.abbrs...)
}

// MaxLevel returns the highest level id.
func (c *Catalog) MaxLevel() int {
	return len(c.levels)
}
