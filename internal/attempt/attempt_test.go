package attempt

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingIsNil(t *testing.T) {
	s := &Store{Dir: t.TempDir()}
	r, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Fatalf("record = %+v, want nil", r)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := &Store{Dir: filepath.Join(t.TempDir(), "nested")}

	rec := NewRecord(true, "2.0.0", "1.1.0")
	if err := s.Save(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("record missing after save")
	}
	if !got.IsDelta || got.AttemptedVersion != "2.0.0" || got.AppVersion != "1.1.0" {
		t.Fatalf("record = %+v", got)
	}
	if got.Timestamp == 0 || got.TimeHuman == "" {
		t.Fatalf("timestamps not set: %+v", got)
	}
}

func TestLoadCorruptIsNil(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := &Store{Dir: dir}
	r, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Fatalf("corrupt record should read as nil, got %+v", r)
	}
}
