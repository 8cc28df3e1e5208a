package manifest

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestMarshalFlattensEntries(t *testing.T) {
	m := New("HelixDesk", "2.0.0")
	m.Record("1.1.0", Entry{Path: "HelixDesk-1.1.0-to-2.0.0-delta.exe", SHA256: "abc123"})

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}

	if _, ok := raw["1.1.0"]; !ok {
		t.Fatalf("version key not at top level: %s", data)
	}
	if _, ok := raw["entries"]; ok {
		t.Fatalf("entries must not appear as a nested object: %s", data)
	}
	if string(raw["productName"]) != `"HelixDesk"` {
		t.Errorf("productName = %s", raw["productName"])
	}
}

func TestParseRoundTrip(t *testing.T) {
	in := `{
		"productName": "HelixDesk",
		"latestVersion": "2.0.0",
		"1.1.0": {"path": "HelixDesk-1.1.0-to-2.0.0-delta.exe", "sha256": "abc"},
		"1.0.0": {"path": "HelixDesk-1.0.0-to-2.0.0-delta.exe", "sha256": "def"}
	}`

	m, err := Parse([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	if m.LatestVersion != "2.0.0" {
		t.Errorf("latestVersion = %q", m.LatestVersion)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(m.Entries))
	}

	e, ok := m.Lookup("1.1.0")
	if !ok {
		t.Fatal("lookup 1.1.0 failed")
	}
	if e.Path != "HelixDesk-1.1.0-to-2.0.0-delta.exe" || e.SHA256 != "abc" {
		t.Errorf("entry = %+v", e)
	}
}

func TestLookupMissingVariants(t *testing.T) {
	m, err := Parse([]byte(`{
		"productName": "HelixDesk",
		"latestVersion": "2.0.0",
		"1.0.0": {"path": "p.exe"},
		"0.9.0": "garbage"
	}`))
	if err != nil {
		t.Fatal(err)
	}

	// Absent key.
	if _, ok := m.Lookup("1.5.0"); ok {
		t.Error("absent version must not resolve")
	}
	// Present key, missing sha256.
	if _, ok := m.Lookup("1.0.0"); ok {
		t.Error("entry without sha256 must not resolve")
	}
	// Malformed block skipped at parse time.
	if _, ok := m.Lookup("0.9.0"); ok {
		t.Error("malformed entry must not resolve")
	}

	// A nil manifest is also just "no delta".
	var nilM *Manifest
	if _, ok := nilM.Lookup("1.0.0"); ok {
		t.Error("nil manifest must not resolve")
	}
}

func TestWriteAndReadFile(t *testing.T) {
	m := New("HelixDesk", "3.1.0")
	m.Record("3.0.0", Entry{Path: "HelixDesk-3.0.0-to-3.1.0-delta.exe", SHA256: "feed"})

	path := filepath.Join(t.TempDir(), FileName("win"))
	if err := m.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	e, ok := got.Lookup("3.0.0")
	if !ok || e.SHA256 != "feed" {
		t.Fatalf("round trip lost entry: %+v ok=%v", e, ok)
	}
}

func TestFileName(t *testing.T) {
	if FileName("win") != "delta-win.json" {
		t.Errorf("FileName(win) = %s", FileName("win"))
	}
	if FileName("mac") != "delta-mac.json" {
		t.Errorf("FileName(mac) = %s", FileName("mac"))
	}
}
