package versions

import (
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func initial() State {
	return State{Version: 1, FilePath: "reports/q3.docx", HTML: strp("<p>v1</p>")}
}

func TestEnsureInitialized(t *testing.T) {
	s := initial()
	if !s.EnsureInitialized(now) {
		t.Fatal("expected initialization")
	}
	if len(s.History) != 1 || s.History[0].Version != 1 || s.History[0].FilePath != "reports/q3.docx" {
		t.Errorf("unexpected history %+v", s.History)
	}
	if s.History[0].Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("expected RFC 3339 timestamp, got %q", s.History[0].Timestamp)
	}
	if s.EnsureInitialized(now) {
		t.Error("expected second call to be a no-op")
	}
}

func TestEnsureInitializedZeroVersion(t *testing.T) {
	s := State{FilePath: "a.docx"}
	s.EnsureInitialized(now)
	if s.Version != 1 || s.History[0].Version != 1 {
		t.Errorf("expected version 1, got head %d entry %d", s.Version, s.History[0].Version)
	}
}

func TestAppendMonotonic(t *testing.T) {
	s := initial()
	s.EnsureInitialized(now)
	for i := 0; i < 4; i++ {
		v := s.Next()
		e := s.Append(Content{FilePath: FilePath(s.FilePath, v), HTML: strp("<p>x</p>")}, "edit", now)
		if e.Version != v {
			t.Errorf("expected version %d, got %d", v, e.Version)
		}
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if s.Version != 5 || s.Latest() != 5 {
		t.Errorf("expected head 5, got %d (latest %d)", s.Version, s.Latest())
	}
	if s.FilePath != "reports/q3_v5.docx" {
		t.Errorf("expected head path q3_v5, got %q", s.FilePath)
	}
}

func TestAppendSnapshotsMissingHead(t *testing.T) {
	// History written before the head moved on to version 3.
	s := State{
		Version:  3,
		FilePath: "r_v3.docx",
		History:  []Entry{{Version: 1, FilePath: "r.docx"}},
	}
	s.Append(Content{FilePath: "r_v4.docx"}, "edit", now)
	var got []int
	for _, e := range s.History {
		got = append(got, e.Version)
	}
	if !reflect.DeepEqual(got, []int{1, 3, 4}) {
		t.Errorf("expected versions [1 3 4], got %v", got)
	}
	if e, _ := s.Lookup(3); e.FilePath != "r_v3.docx" || e.EditDescription != "Previous state" {
		t.Errorf("unexpected snapshot %+v", e)
	}
}

func TestCreateVersionTwice(t *testing.T) {
	s := initial()
	s.EnsureInitialized(now)
	for _, want := range []int{2, 3} {
		prev := s.HTML
		e := s.CreateNewVersion(FilePath(s.FilePath, s.Next()), "", now)
		if e.Version != want {
			t.Errorf("expected version %d, got %d", want, e.Version)
		}
		if e.HTMLContent != prev || e.EditDescription != "Manual version" {
			t.Errorf("expected content carried forward unchanged, got %+v", e)
		}
	}
}

func TestRestoreAppendsCopy(t *testing.T) {
	s := initial()
	s.EnsureInitialized(now)
	for _, h := range []string{"<p>v2</p>", "<p>v3</p>", "<p>v4</p>", "<p>v5</p>"} {
		s.Append(Content{FilePath: FilePath(s.FilePath, s.Next()), HTML: strp(h)}, "edit", now)
	}
	before := slices.Clone(s.History)

	e, err := s.Restore(2, FilePath(s.FilePath, s.Next()), now)
	if err != nil {
		t.Fatal(err)
	}
	if e.Version != 6 || s.Version != 6 {
		t.Errorf("expected new head 6, got entry %d head %d", e.Version, s.Version)
	}
	if *e.HTMLContent != "<p>v2</p>" {
		t.Errorf("expected v2 content, got %q", *e.HTMLContent)
	}
	if e.FilePath != "reports/q3_v6.docx" {
		t.Errorf("expected q3_v6 path, got %q", e.FilePath)
	}
	if !reflect.DeepEqual(s.History[:5], before) {
		t.Error("expected versions 1..5 untouched")
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestRestoreErrors(t *testing.T) {
	s := initial()
	s.EnsureInitialized(now)
	s.Append(Content{FilePath: "reports/q3_v2.docx"}, "edit", now)

	if _, err := s.Restore(2, "x", now); !errors.Is(err, ErrAlreadyCurrent) {
		t.Errorf("expected ErrAlreadyCurrent, got %v", err)
	}
	for _, v := range []int{0, 3, -1} {
		if _, err := s.Restore(v, "x", now); !errors.Is(err, ErrVersionNotFound) {
			t.Errorf("version %d: expected ErrVersionNotFound, got %v", v, err)
		}
	}
	if s.Version != 2 || len(s.History) != 2 {
		t.Errorf("expected no change after failed restores, got head %d with %d entries", s.Version, len(s.History))
	}
}

func TestList(t *testing.T) {
	s := State{Version: 2, History: []Entry{
		{Version: 2, FilePath: "b.docx"},
		{Version: 1, FilePath: "a.docx", HTMLContent: strp("<p>a</p>")},
	}}
	got := s.List()
	if got[0].Version != 1 || got[1].Version != 2 {
		t.Fatalf("expected ascending order, got %+v", got)
	}
	if !got[0].HasHTML || got[1].HasHTML {
		t.Errorf("unexpected html flags %+v", got)
	}
	if !got[0].HasFile || !got[1].HasFile {
		t.Errorf("unexpected file flags %+v", got)
	}
}

func TestFilePath(t *testing.T) {
	tests := []struct {
		in   string
		v    int
		want string
	}{
		{"reports/q3.docx", 2, "reports/q3_v2.docx"},
		{"reports/q3_v2.docx", 3, "reports/q3_v3.docx"},
		{"reports/q3_v12.docx", 13, "reports/q3_v13.docx"},
		{"noext", 2, "noext_v2"},
	}
	for _, tt := range tests {
		if got := FilePath(tt.in, tt.v); got != tt.want {
			t.Errorf("FilePath(%q, %d): expected %q, got %q", tt.in, tt.v, tt.want, got)
		}
	}
}
