package descriptor

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	_ "github.com/ferro-labs/review4d/internal/plugins/folders"
	_ "github.com/ferro-labs/review4d/internal/plugins/showfile"
	_ "github.com/ferro-labs/review4d/internal/plugins/studiopresets"
	"github.com/ferro-labs/review4d/plugin"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuiltin(t *testing.T) {
	f, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	var names []string
	for _, s := range f.Plugins {
		names = append(names, s.Name)
	}
	want := []string{"project-folders", "animation", "dailies", "show-file"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("got %v, want %v", names, want)
	}
}

func TestParse(t *testing.T) {
	yamlDoc := `
plugins:
  - name: project-folders
    config:
      patterns: ["/jobs/(?P<folder>[^/]+)/(?P<parent>[^/]+)/(?P<name>[^/]+)"]
  - name: show-file
    disabled: true
`
	f, err := Parse("studio.yaml", []byte(yamlDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.Entry || len(f.Plugins) != 2 || !f.Plugins[1].Disabled {
		t.Fatalf("unexpected file: %+v", f)
	}
	patterns, ok := f.Plugins[0].Config["patterns"].([]interface{})
	if !ok || len(patterns) != 1 {
		t.Errorf("config not decoded: %#v", f.Plugins[0].Config)
	}

	jsonDoc := `{"plugins": [{"name": "dailies"}]}`
	f, err = Parse("studio.json", []byte(jsonDoc))
	if err != nil || len(f.Plugins) != 1 || f.Plugins[0].Name != "dailies" {
		t.Fatalf("got %+v, %v", f, err)
	}
}

func TestParse_NoEntryPoint(t *testing.T) {
	for _, doc := range []string{"settings: {a: 1}", "", "- just\n- a list"} {
		f, err := Parse("other.yaml", []byte(doc))
		if err != nil {
			t.Fatalf("Parse(%q): %v", doc, err)
		}
		if f.Entry {
			t.Errorf("Parse(%q) reported an entry point", doc)
		}
	}
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := map[string]string{
		"plugins not a list": "plugins: foo",
		"missing name":       "plugins:\n  - disabled: true",
		"unknown key":        "plugins:\n  - name: x\n    options: {}",
		"config not object":  "plugins:\n  - name: x\n    config: [1]",
		"disabled not bool":  "plugins:\n  - name: x\n    disabled: maybe",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse("bad.yaml", []byte(doc)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse("bad.json", []byte("{")); err == nil {
		t.Error("expected JSON error")
	}
	if _, err := Parse("bad.yaml", []byte("plugins: [")); err == nil {
		t.Error("expected YAML error")
	}
}

func TestSearchPath(t *testing.T) {
	t.Setenv(EnvVar, strings.Join([]string{"/env/a", "/cfg", "", "/env/b"}, string(os.PathListSeparator)))
	got := SearchPath([]string{"/cfg", "/cfg/"})
	want := []string{"/cfg", "/env/a", "/env/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "c.json", "")
	writeFile(t, dir, "notes.txt", "")
	if err := os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, warnings := Discover([]string{dir, filepath.Join(dir, "missing"), dir})
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	if !reflect.DeepEqual(names, []string{"a.yaml", "b.yml", "c.json"}) {
		t.Errorf("got %v", names)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvVar, "")
	dir := t.TempDir()
	writeFile(t, dir, "10-studio.yaml", `
plugins:
  - name: project-folders
    config:
      patterns: ["/jobs/(?P<folder>[^/]+)/(?P<parent>[^/]+)/(?P<name>[^/]+)"]
`)
	writeFile(t, dir, "20-unknown.yaml", `
plugins:
  - name: dailies
  - name: no-such-plugin
`)
	writeFile(t, dir, "30-invalid.json", `{"plugins": [{"name": 3}]}`)
	writeFile(t, dir, "40-unrelated.yaml", "theme: dark\n")

	reg := plugin.NewRegistry()
	report := Load(reg, Options{Dirs: []string{dir}, SkipBuiltin: true})

	if len(report.Loaded) != 1 || filepath.Base(report.Loaded[0].File) != "10-studio.yaml" {
		t.Errorf("loaded = %+v", report.Loaded)
	}
	if len(report.Skipped) != 2 {
		t.Fatalf("skipped = %+v", report.Skipped)
	}
	if !strings.Contains(report.Skipped[0].Error, "no-such-plugin") {
		t.Errorf("unexpected skip reason: %s", report.Skipped[0].Error)
	}
	// The file is skipped as a whole: dailies from 20-unknown is not registered.
	if _, ok := reg.Presets.ByLabel("Dailies"); ok {
		t.Error("plugin from skipped file was registered")
	}
	if _, ok := reg.Collectors.ByLabel("Project Folders"); !ok {
		t.Error("project folders collector not registered")
	}
}

func TestLoad_BuiltinAndInline(t *testing.T) {
	t.Setenv(EnvVar, "")
	reg := plugin.NewRegistry()
	report := Load(reg, Options{Inline: []Spec{{Name: "show-file", Config: map[string]interface{}{"enabled": true}}}})

	if len(report.Loaded) != 2 || report.Loaded[0].File != BuiltinName || report.Loaded[1].File != ConfigName {
		t.Fatalf("loaded = %+v", report.Loaded)
	}
	if len(report.Plugins) != 5 {
		t.Errorf("plugins = %d, want 5", len(report.Plugins))
	}
	if reg.Presets.Len() != 2 || reg.Collectors.Len() != 1 {
		t.Errorf("presets=%d collectors=%d", reg.Presets.Len(), reg.Collectors.Len())
	}
	// Two distinct show-file instances: built-in and inline.
	if reg.PostRenders.Len() != 2 {
		t.Errorf("post-renders = %d", reg.PostRenders.Len())
	}
}

func TestLoad_MissingDirIsWarning(t *testing.T) {
	t.Setenv(EnvVar, filepath.Join(t.TempDir(), "nope"))
	report := Load(plugin.NewRegistry(), Options{SkipBuiltin: true})
	if len(report.Warnings) != 1 || len(report.Skipped) != 0 {
		t.Errorf("got %+v", report)
	}
}
