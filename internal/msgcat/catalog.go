// Package msgcat renders user-facing text from YAML templates. Embedded
// English defaults can be overridden per key from a directory.
package msgcat

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultMessages []byte

// Catalog maps dot-keys such as "errors.busy" to parsed templates. It is
// read-only after New.
type Catalog struct {
	tpls map[string]*template.Template
}

// New loads the embedded messages, then every *.yaml / *.yml file in
// overrideDir in name order. A later file replaces keys set earlier.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{tpls: make(map[string]*template.Template)}
	if err := c.load("embedded messages", defaultMessages); err != nil {
		return nil, err
	}
	overrideDir = strings.TrimSpace(overrideDir)
	if overrideDir == "" {
		return c, nil
	}
	files, err := overrideFiles(overrideDir)
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read messages: %w", err)
		}
		if err := c.load(filepath.Base(path), raw); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustDefault returns the embedded catalog and panics if it does not parse.
func MustDefault() *Catalog {
	c, err := New("")
	if err != nil {
		panic(err)
	}
	return c
}

func overrideFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read messages dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			if !e.IsDir() {
				out = append(out, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// load parses one YAML document of nested mappings with string leaves and
// compiles every leaf, so a broken template fails at startup.
func (c *Catalog) load(source string, raw []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	return c.walk(source, "", doc.Content[0])
}

func (c *Catalog) walk(source, prefix string, n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := c.walk(source, key, n.Content[i+1]); err != nil {
				return err
			}
		}
		return nil
	case yaml.ScalarNode:
		if prefix == "" {
			return fmt.Errorf("%s: message at line %d has no key", source, n.Line)
		}
		if n.Tag != "!!str" {
			return fmt.Errorf("%s: %s (line %d) must be a string, got %s", source, prefix, n.Line, n.Tag)
		}
		t, err := template.New(prefix).Option("missingkey=error").Parse(n.Value)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", source, prefix, err)
		}
		c.tpls[prefix] = t
		return nil
	default:
		return fmt.Errorf("%s: %s (line %d) must be a mapping or a string", source, prefix, n.Line)
	}
}

func (c *Catalog) Has(key string) bool {
	_, ok := c.tpls[strings.TrimSpace(key)]
	return ok
}

// Render executes the template for key. Missing keys and missing data
// fields are errors.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, ok := c.tpls[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("message %q not found", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderOr is Render with a fallback for any failure.
func (c *Catalog) RenderOr(key string, data any, fallback string) string {
	if c == nil {
		return fallback
	}
	out, err := c.Render(key, data)
	if err != nil {
		return fallback
	}
	return out
}
