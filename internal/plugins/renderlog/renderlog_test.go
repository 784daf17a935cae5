package renderlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	store "github.com/ferro-labs/review4d/internal/renderlog"
	"github.com/ferro-labs/review4d/plugin"
)

type memWriter struct {
	entries []store.Entry
	err     error
}

func (m *memWriter) Write(_ context.Context, e store.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func TestExecute_RecordsEachRender(t *testing.T) {
	w := &memWriter{}
	r := New(w)
	ctx := store.WithRender(context.Background(), store.Render{Source: "/p/shot.c4d", Preset: "Animation"})

	if err := r.Execute(ctx, []string{"/out/a.mp4", "/out/b.mp4"}); err != nil {
		t.Fatal(err)
	}
	if len(w.entries) != 2 {
		t.Fatalf("entries = %d", len(w.entries))
	}
	e := w.entries[1]
	if e.Source != "/p/shot.c4d" || e.Preset != "Animation" || e.OutputPath != "/out/b.mp4" || e.Status != store.StatusRendered {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestExecute_WriterError(t *testing.T) {
	boom := errors.New("disk full")
	if err := New(&memWriter{err: boom}).Execute(context.Background(), []string{"/a.mp4"}); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestAvailability(t *testing.T) {
	r := New(nil)
	if r.Available() {
		t.Error("expected unavailable without writer")
	}
	if err := r.Execute(context.Background(), nil); err == nil {
		t.Error("expected error without writer")
	}
	r.UseWriter(&memWriter{})
	if !r.Available() || !r.Enabled() {
		t.Error("expected available and enabled")
	}
}

func TestInit_OwnStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "renders.db")
	p, err := plugin.Build(FactoryName, map[string]interface{}{"driver": "sqlite", "dsn": dsn})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := p.(*Recorder)
	defer r.Close()

	shared := &memWriter{}
	r.UseWriter(shared)
	if err := r.Execute(context.Background(), []string{"/a.mp4"}); err != nil {
		t.Fatal(err)
	}
	if len(shared.entries) != 0 {
		t.Error("own store should not be replaced by the shared writer")
	}
	res, err := r.owned.List(context.Background(), store.Query{})
	if err != nil || res.Total != 1 {
		t.Errorf("got %+v, %v", res, err)
	}
}
