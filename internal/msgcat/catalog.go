package msgcat

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

// Catalog holds user-visible message templates keyed by flattened dot paths
// ("errors.room_full"). Values are rendered with text/template, missing keys are errors.
type Catalog struct {
	mu   sync.RWMutex
	data map[string]string
}

// New loads the embedded English messages and then applies *.yaml overrides from dir.
func New(overrideDir string) (*Catalog, error) {
	base := &Catalog{data: make(map[string]string)}

	if err := base.loadEmbedded(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := base.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return base, nil
}

// MustDefault returns the embedded catalog; it panics only if the embedded file is broken.
func MustDefault() *Catalog {
	c, err := New("")
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) loadEmbedded() error {
	raw, err := fs.ReadFile(defaultFiles, "messages.en.yaml")
	if err != nil {
		return fmt.Errorf("read embedded messages: %w", err)
	}
	return c.applyYAML(raw)
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read template dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		ext := strings.ToLower(filepath.Ext(n))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, n)
		}
	}
	sort.Strings(files)
	// the same key in two override files is ambiguous
	seen := make(map[string]string)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		flat, err := parseYAMLToFlat(b)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k := range flat {
			if prev, ok := seen[k]; ok {
				return fmt.Errorf("duplicate override key %q in %s and %s", k, prev, name)
			}
			seen[k] = name
		}
		c.mu.Lock()
		for k, v := range flat {
			c.data[k] = v
		}
		c.mu.Unlock()
	}
	return nil
}

func parseYAMLToFlat(b []byte) (map[string]string, error) {
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	flat := make(map[string]string)
	if err := flattenStrings(m, "", flat); err != nil {
		return nil, err
	}
	return flat, nil
}

func (c *Catalog) applyYAML(b []byte) error {
	flat, err := parseYAMLToFlat(b)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for k, v := range flat {
		c.data[k] = v
	}
	c.mu.Unlock()
	return nil
}

func flattenStrings(src any, prefix string, out map[string]string) error {
	switch v := src.(type) {
	case map[string]any:
		for k, vv := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flattenStrings(vv, key, out); err != nil {
				return err
			}
		}
		return nil
	case map[any]any:
		tmp := make(map[string]any)
		for kk, vv := range v {
			tmp[fmt.Sprint(kk)] = vv
		}
		return flattenStrings(tmp, prefix, out)
	case string:
		if prefix == "" {
			return errors.New("string value without key prefix")
		}
		out[prefix] = v
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported value at %s: %T", prefix, v)
	}
}

// Render executes the template stored under key.
func (c *Catalog) Render(key string, data any) (string, error) {
	c.mu.RLock()
	tpl, ok := c.data[strings.TrimSpace(key)]
	c.mu.RUnlock()
	if !ok || strings.TrimSpace(tpl) == "" {
		return "", fmt.Errorf("template not found: %s", key)
	}
	t, err := template.New(key).Option("missingkey=error").Parse(tpl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text renders key and falls back to fallback on any error. A nil catalog always falls back.
func (c *Catalog) Text(key string, data any, fallback string) string {
	if c == nil {
		return fallback
	}
	s, err := c.Render(key, data)
	if err != nil || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
