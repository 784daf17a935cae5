// Package descriptor loads plugin-description files: YAML or JSON documents
// listing the compiled-in plugin factories to build, their options, and
// whether they are disabled.
//
//	plugins:
//	  - name: project-folders
//	    config:
//	      patterns: ["/jobs/(?P<folder>[^/]+)/(?P<parent>[^/]+)/(?P<name>[^/]+)"]
//	  - name: show-file
//	    disabled: true
//
// Files are searched for in the configured plugin directories and in the
// directories listed in REVIEW4D_PLUGINS.
package descriptor

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// EnvVar lists extra plugin directories, separated like PATH.
const EnvVar = "REVIEW4D_PLUGINS"

// BuiltinName is the name the embedded descriptor is reported under.
const BuiltinName = "<builtin>"

//go:embed builtin.yaml
var builtinYAML []byte

//go:embed descriptor.schema.json
var schemaJSON []byte

const schemaURL = "descriptor.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("load descriptor schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// Spec describes one plugin to build.
type Spec struct {
	Name     string                 `json:"name" yaml:"name"`
	Disabled bool                   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Config   map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// File is a parsed plugin-description file.
type File struct {
	Path    string `json:"path"`
	Plugins []Spec `json:"plugins"`
	// Entry reports whether the file declares a plugins key at all. Files
	// without one are not plugin descriptions and are skipped.
	Entry bool `json:"-"`
}

// Builtin returns the embedded descriptor.
func Builtin() (*File, error) {
	return Parse(BuiltinName, builtinYAML)
}

// ReadFile reads and parses the descriptor at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading plugin description: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes and validates a descriptor. name selects the format by
// extension: .json is JSON, anything else YAML.
func Parse(name string, data []byte) (*File, error) {
	var raw interface{}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing JSON plugin description %s: %w", name, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML plugin description %s: %w", name, err)
		}
	}

	f := &File{Path: name}
	doc, ok := raw.(map[string]interface{})
	if !ok {
		return f, nil
	}
	if _, ok := doc["plugins"]; !ok {
		return f, nil
	}
	f.Entry = true

	// Round-trip through JSON so YAML and JSON documents validate and decode
	// identically.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("plugin description %s: %w", name, err)
	}
	if err := Validate(normalized); err != nil {
		return nil, fmt.Errorf("plugin description %s: %w", name, err)
	}
	if err := json.Unmarshal(normalized, f); err != nil {
		return nil, fmt.Errorf("decoding plugin description %s: %w", name, err)
	}
	f.Path = name
	return f, nil
}

// Validate checks a JSON document against the descriptor schema.
func Validate(doc []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.Validate(v)
}

// SearchPath returns dirs followed by the directories in REVIEW4D_PLUGINS,
// without duplicates.
func SearchPath(dirs []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(d string) {
		d = strings.TrimSpace(d)
		if d == "" || seen[filepath.Clean(d)] {
			return
		}
		seen[filepath.Clean(d)] = true
		out = append(out, d)
	}
	for _, d := range dirs {
		add(d)
	}
	for _, d := range filepath.SplitList(os.Getenv(EnvVar)) {
		add(d)
	}
	return out
}

// IsDescriptor reports whether name has a descriptor extension.
func IsDescriptor(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Discover lists the descriptor files directly inside dirs, sorted by name
// within each directory. A file reachable through several directories is
// listed once. Directories that cannot be read are returned as warnings.
func Discover(dirs []string) (files []string, warnings []error) {
	seen := map[string]bool{}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("plugin directory %s: %w", dir, err))
			continue
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || !IsDescriptor(e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, n := range names {
			p := filepath.Join(dir, n)
			key := p
			if abs, err := filepath.Abs(p); err == nil {
				key = abs
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			files = append(files, p)
		}
	}
	return files, warnings
}
