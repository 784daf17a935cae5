package showfile

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type recorder struct {
	calls []string
	err   error
}

func (r *recorder) run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return r.err
}

func TestExecute_SingleFile(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"windows", `explorer /select, C:\renders\shot.mp4`},
		{"darwin", "open -R C:/renders/shot.mp4"},
		{"linux", "xdg-open C:/renders"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			rec := &recorder{}
			s := NewWithRunner(tt.goos, rec.run)
			if err := s.Execute(context.Background(), []string{"C:/renders/shot.mp4"}); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(rec.calls, []string{tt.want}) {
				t.Errorf("got %v, want %q", rec.calls, tt.want)
			}
		})
	}
}

func TestExecute_MultipleFilesOpenEachFolderOnce(t *testing.T) {
	rec := &recorder{}
	s := NewWithRunner("linux", rec.run)
	paths := []string{"/r/a/1.mp4", "/r/b/2.mp4", "/r/a/3.mp4"}
	if err := s.Execute(context.Background(), paths); err != nil {
		t.Fatal(err)
	}
	want := []string{"xdg-open /r/a", "xdg-open /r/b"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("got %v, want %v", rec.calls, want)
	}
}

func TestExecute_RunnerError(t *testing.T) {
	rec := &recorder{err: errors.New("not found")}
	s := NewWithRunner("darwin", rec.run)
	err := s.Execute(context.Background(), []string{"/r/a.mp4"})
	if err == nil || !strings.Contains(err.Error(), "open -R /r/a.mp4") {
		t.Errorf("got %v", err)
	}
}

func TestExecute_NoPaths(t *testing.T) {
	rec := &recorder{}
	if err := NewWithRunner("linux", rec.run).Execute(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("unexpected calls %v", rec.calls)
	}
}

func TestAvailableAndEnabled(t *testing.T) {
	if NewWithRunner("plan9", nil).Available() {
		t.Error("plan9 should not be available")
	}
	s := NewWithRunner("linux", nil)
	if !s.Available() || s.Enabled() {
		t.Error("linux should be available and disabled by default")
	}
	if err := s.Init(map[string]interface{}{"enabled": true}); err != nil || !s.Enabled() {
		t.Errorf("enabled not applied: %v", err)
	}
	if err := s.Init(map[string]interface{}{"enabled": "yes"}); err == nil {
		t.Error("expected type error")
	}
}
