// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package categories holds the closed OPRA exemption taxonomy. The taxonomy is
// configuration data, not logic: the embedded taxonomy.yaml (or an operator
// supplied override) defines every category the pipeline may emit, and the
// detection algorithms never reference individual exemptions directly.
package categories

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var embeddedTaxonomy []byte

// Category is one exemption classification tag from the closed taxonomy.
type Category string

// Entry describes one exemption category.
type Entry struct {
	Tag         Category `yaml:"tag" json:"tag"`
	Code        string   `yaml:"code" json:"code"`
	Label       string   `yaml:"label" json:"label"`
	Description string   `yaml:"description" json:"description"`
	Examples    []string `yaml:"examples" json:"examples,omitempty"`
	Aliases     []string `yaml:"aliases" json:"-"`
}

// Taxonomy is a versioned, closed set of exemption categories.
type Taxonomy struct {
	Version    int      `yaml:"version"`
	DefaultTag Category `yaml:"default"`
	Entries    []Entry  `yaml:"categories"`

	byTag map[Category]*Entry
}

type taxonomyFile Taxonomy

// Load parses a taxonomy from YAML data.
func Load(data []byte) (*Taxonomy, error) {
	var tf taxonomyFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("error parsing taxonomy: %w", err)
	}
	t := Taxonomy(tf)
	if len(t.Entries) == 0 {
		return nil, fmt.Errorf("taxonomy defines no categories")
	}

	t.byTag = make(map[Category]*Entry, len(t.Entries))
	for i := range t.Entries {
		e := &t.Entries[i]
		if e.Tag == "" {
			return nil, fmt.Errorf("taxonomy entry %d has no tag", i)
		}
		if _, dup := t.byTag[e.Tag]; dup {
			return nil, fmt.Errorf("duplicate taxonomy tag %q", e.Tag)
		}
		t.byTag[e.Tag] = e
	}
	if _, ok := t.byTag[t.DefaultTag]; !ok {
		return nil, fmt.Errorf("default category %q not defined in taxonomy", t.DefaultTag)
	}
	return &t, nil
}

// LoadFile loads a taxonomy from an operator-supplied YAML file.
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("error reading taxonomy file: %w", err)
	}
	return Load(data)
}

// Default returns the taxonomy embedded in the binary.
func Default() *Taxonomy {
	t, err := Load(embeddedTaxonomy)
	if err != nil {
		// The embedded taxonomy is validated by tests; failing to parse it is
		// a build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded taxonomy invalid: %v", err))
	}
	return t
}

// DefaultCategory is the documented fallback for unrecognized classifier
// output. A detected item is never dropped solely because its category label
// could not be mapped.
func (t *Taxonomy) DefaultCategory() Category {
	return t.DefaultTag
}

// Contains reports whether tag is part of the closed enumeration.
func (t *Taxonomy) Contains(tag Category) bool {
	_, ok := t.byTag[tag]
	return ok
}

// Entry returns the taxonomy entry for tag, or nil when tag is unknown.
func (t *Taxonomy) Entry(tag Category) *Entry {
	return t.byTag[tag]
}

// Tags returns all category tags in taxonomy order.
func (t *Taxonomy) Tags() []Category {
	tags := make([]Category, 0, len(t.Entries))
	for _, e := range t.Entries {
		tags = append(tags, e.Tag)
	}
	return tags
}

// MapLabel maps a free-text category string from an external classifier onto
// the closed enumeration. Matching is fail-soft: exact tag, then statute code
// substring, then alias keyword, and finally the taxonomy's default category.
func (t *Taxonomy) MapLabel(label string) Category {
	norm := strings.ToLower(strings.TrimSpace(label))
	if norm == "" {
		return t.DefaultTag
	}

	if _, ok := t.byTag[Category(norm)]; ok {
		return Category(norm)
	}

	// Classifier output often quotes the statute, e.g.
	// "REDACTED-N.J.S.A. 47:1A-1.1(20)". Longer codes are matched first so
	// "47:1A-1.1(20)" does not resolve to the "47:1A-1" privacy entry.
	byCodeLen := make([]*Entry, 0, len(t.Entries))
	for i := range t.Entries {
		byCodeLen = append(byCodeLen, &t.Entries[i])
	}
	sort.SliceStable(byCodeLen, func(i, j int) bool {
		return len(byCodeLen[i].Code) > len(byCodeLen[j].Code)
	})
	for _, e := range byCodeLen {
		if e.Code != "" && strings.Contains(norm, strings.ToLower(e.Code)) {
			return e.Tag
		}
	}

	// Aliases overlap across entries ("social security" vs "security"), so
	// the longest matching alias wins regardless of entry order.
	var aliasTag Category
	aliasLen := 0
	for _, e := range t.Entries {
		for _, alias := range e.Aliases {
			lower := strings.ToLower(alias)
			if len(lower) > aliasLen && strings.Contains(norm, lower) {
				aliasTag = e.Tag
				aliasLen = len(lower)
			}
		}
	}
	if aliasLen > 0 {
		return aliasTag
	}

	return t.DefaultTag
}

// PromptSection renders the taxonomy as the exemption reference block included
// in the semantic detector's instruction to the classification service.
func (t *Taxonomy) PromptSection() string {
	var b strings.Builder
	for _, e := range t.Entries {
		fmt.Fprintf(&b, "### [%s] %s (%s)\n", e.Tag, e.Label, e.Code)
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(e.Description))
		if len(e.Examples) > 0 {
			fmt.Fprintf(&b, "- Examples: %s\n", strings.Join(e.Examples, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
