package plugin

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// stubCollector is a test double for the ContextCollector interface.
type stubCollector struct {
	label string
	order int
	set   map[string]string
	err   error
	calls int
}

func (s *stubCollector) Label() string { return s.label }
func (s *stubCollector) Order() int    { return s.order }
func (s *stubCollector) Collect(_ string, ctx Context) (Context, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	for k, v := range s.set {
		ctx[k] = v
	}
	return ctx, nil
}

// pathCollector records the path it was given.
type pathCollector struct{ Meta }

func (p *pathCollector) Collect(path string, ctx Context) (Context, error) {
	ctx["file"] = path
	return ctx, nil
}

// replacingCollector returns a brand new map instead of mutating its input.
type replacingCollector struct{ Meta }

func (r *replacingCollector) Collect(_ string, ctx Context) (Context, error) {
	return Context{"replaced": fmt.Sprint(len(ctx))}, nil
}

// multiPlugin implements two capabilities.
type multiPlugin struct{ Meta }

func (m *multiPlugin) Collect(_ string, ctx Context) (Context, error) { return ctx, nil }
func (m *multiPlugin) Execute(_ Context) (Output, error)               { return Declined(), nil }

type notAPlugin struct{ name string }

type sliceCollector []string

func (s sliceCollector) Label() string                                  { return "slice" }
func (s sliceCollector) Order() int                                     { return 0 }
func (s sliceCollector) Collect(_ string, ctx Context) (Context, error) { return ctx, nil }

// optionsCollector has a comparable type whose Options field may hold an
// incomparable value.
type optionsCollector struct {
	Meta
	Options any
}

func (o optionsCollector) Collect(_ string, ctx Context) (Context, error) { return ctx, nil }

func TestRegistry_RegisterDispatchesByCapability(t *testing.T) {
	r := NewRegistry()
	c := &stubCollector{label: "c"}
	p := &stubPreset{label: "p"}
	m := &multiPlugin{Meta{Name: "m"}}

	for _, plug := range []any{c, p, m} {
		if err := r.Register(plug); err != nil {
			t.Fatalf("register %T: %v", plug, err)
		}
	}

	if r.Collectors.Len() != 2 {
		t.Errorf("collectors = %d, want 2", r.Collectors.Len())
	}
	if r.Presets.Len() != 2 {
		t.Errorf("presets = %d, want 2", r.Presets.Len())
	}
	if r.PostRenders.Len() != 0 {
		t.Errorf("post-renders = %d, want 0", r.PostRenders.Len())
	}
}

func TestRegistry_RegisterRejectsNonPlugins(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		p    any
	}{
		{"nil", nil},
		{"struct without capability", &notAPlugin{name: "x"}},
		{"string", "Desktop"},
		{"uncomparable collector", sliceCollector{"a"}},
		{"slice in an interface field", optionsCollector{Meta: Meta{Name: "opts"}, Options: []string{"a"}}},
		{"map in an interface field", optionsCollector{Meta: Meta{Name: "opts"}, Options: map[string]int{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.p)
			var regErr *RegistrationError
			if !errors.As(err, &regErr) {
				t.Fatalf("expected RegistrationError, got %v", err)
			}
		})
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	m := &multiPlugin{Meta{Name: "m"}}
	_ = r.Register(m)

	if err := r.Unregister(m); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if r.Collectors.Len() != 0 || r.Presets.Len() != 0 {
		t.Error("expected plugin removed from both families")
	}
	if err := r.Unregister(m); err != nil {
		t.Errorf("unregister of absent plugin should be a no-op, got %v", err)
	}
	if err := r.Unregister(&notAPlugin{}); err == nil {
		t.Error("expected error for non-plugin")
	}
}

func TestRegistry_FamiliesHaveIsolatedIDs(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubCollector{label: "c"})
	_ = r.Register(&stubPreset{label: "p"})
	_ = r.Register(&stubPostRender{label: "pr", available: true})

	c, _ := r.Collectors.ByLabel("c")
	p, _ := r.Presets.ByLabel("p")
	pr, _ := r.PostRenders.ByLabel("pr")
	if c.ID != 1 || p.ID != 1 {
		t.Errorf("collector id %d, preset id %d, want 1 and 1", c.ID, p.ID)
	}
	if pr.ID != PostRenderBaseID+1 {
		t.Errorf("post-render id %d, want %d", pr.ID, PostRenderBaseID+1)
	}
}

func TestCollectContext_RunsInOrder(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubCollector{label: "late", order: 10, set: map[string]string{"who": "late"}})
	_ = r.Register(&stubCollector{label: "early", order: -1, set: map[string]string{"who": "early", "early": "1"}})

	ctx, err := r.CollectContext("/a/b.c4d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Context{"who": "late", "early": "1"}
	if !reflect.DeepEqual(ctx, want) {
		t.Errorf("got %v, want %v", ctx, want)
	}
}

func TestCollectContext_UsesReturnedMap(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&pathCollector{Meta{Name: "path", Rank: 0}})
	_ = r.Register(&replacingCollector{Meta{Name: "replace", Rank: 1}})

	ctx, err := r.CollectContext("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ctx, Context{"replaced": "1"}) {
		t.Errorf("got %v", ctx)
	}
}

func TestCollectContext_ErrorAbortsChain(t *testing.T) {
	boom := errors.New("boom")
	after := &stubCollector{label: "after", order: 5}
	r := NewRegistry()
	_ = r.Register(&stubCollector{label: "ok", order: 0, set: map[string]string{"a": "b"}})
	_ = r.Register(&stubCollector{label: "bad", order: 1, err: boom})
	_ = r.Register(after)

	ctx, err := r.CollectContext("x")
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ctx != nil {
		t.Errorf("expected no partial context, got %v", ctx)
	}
	if after.calls != 0 {
		t.Error("collector after the failure should not run")
	}
}

func TestCollectContext_Deterministic(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&pathCollector{Meta{Name: "path"}})
	first, _ := r.CollectContext("/p/a_v001.c4d")
	second, _ := r.CollectContext("/p/a_v001.c4d")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("got %v then %v", first, second)
	}
}

func TestPresetPath(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubPreset{label: "Custom", order: 100, out: Declined()})
	_ = r.Register(&stubPreset{label: "Fixed", out: Produced("/out/x.mp4")})

	out, err := r.PresetPath("Fixed", "/doc.c4d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p, ok := out.Path(); !ok || p != "/out/x.mp4" {
		t.Errorf("got %q ok=%v", p, ok)
	}

	out, err = r.PresetPath(1, "/doc.c4d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.IsDeclined() {
		t.Error("expected Custom (id 1) to decline")
	}

	if _, err := r.PresetPath("Missing", "/doc.c4d"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOutput_EmptyPathIsNotDeclined(t *testing.T) {
	out := Produced("")
	if out.IsDeclined() {
		t.Error("empty produced path must not read as declined")
	}
	if _, ok := Declined().Path(); ok {
		t.Error("declined output must not carry a path")
	}
}

func TestBuild(t *testing.T) {
	defer delete(factories, "test-stub-preset")
	RegisterFactory("test-stub-preset", func() any {
		return &configurablePreset{stubPreset: stubPreset{label: "stub"}}
	})

	p, err := Build("test-stub-preset", map[string]interface{}{"label": "configured"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.(PathPreset).Label(); got != "configured" {
		t.Errorf("got label %q", got)
	}

	if _, err := Build("test-stub-preset", map[string]interface{}{"label": 3}); err == nil {
		t.Error("expected init error")
	}

	_, err = Build("nonexistent-plugin", nil)
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Errorf("expected RegistrationError, got %v", err)
	}
}

func TestRegisteredFactories_Sorted(t *testing.T) {
	defer delete(factories, "zz-test")
	defer delete(factories, "aa-test")
	RegisterFactory("zz-test", func() any { return &stubPreset{} })
	RegisterFactory("aa-test", func() any { return &stubPreset{} })

	var filtered []string
	for _, n := range RegisteredFactories() {
		if n == "aa-test" || n == "zz-test" {
			filtered = append(filtered, n)
		}
	}
	if len(filtered) != 2 || filtered[0] != "aa-test" {
		t.Errorf("got %v, want [aa-test zz-test]", filtered)
	}
}

type configurablePreset struct {
	stubPreset
}

func (c *configurablePreset) Init(config map[string]interface{}) error {
	if v, ok := config["label"]; ok {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("label must be a string")
		}
		c.label = s
	}
	return nil
}

func TestRegistry_InterfaceFieldIdentity(t *testing.T) {
	r := NewRegistry()
	plain := optionsCollector{Meta: Meta{Name: "opts"}, Options: "fast"}
	if err := r.Register(plain); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(plain); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if r.Collectors.Len() != 1 {
		t.Errorf("collectors = %d, want 1", r.Collectors.Len())
	}

	held := optionsCollector{Meta: Meta{Name: "opts"}, Options: []string{"a"}}
	if err := r.Unregister(held); err == nil {
		t.Error("expected an error unregistering an incomparable value")
	}
	if r.Collectors.Contains(held) {
		t.Error("incomparable value reported as registered")
	}
	if samePlugin(held, held) {
		t.Error("samePlugin true for an incomparable value")
	}
}
