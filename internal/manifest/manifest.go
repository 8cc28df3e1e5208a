// Package manifest defines the delta manifest shared by the build
// pipeline and the client update loop. The wire format keeps each prior
// version as a top-level key next to productName/latestVersion:
//
//	{
//	  "productName": "HelixDesk",
//	  "latestVersion": "2.0.0",
//	  "1.1.0": {"path": "HelixDesk-1.1.0-to-2.0.0-delta.exe", "sha256": "..."}
//	}
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
)

// Entry records one published patch: its file name relative to the feed
// base URL and the hex SHA-256 of the published artifact.
type Entry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Manifest maps prior versions to their patch entries for one platform.
type Manifest struct {
	ProductName   string
	LatestVersion string
	Entries       map[string]Entry
}

// New returns an empty manifest for the given product and target version.
func New(productName, latestVersion string) *Manifest {
	return &Manifest{
		ProductName:   productName,
		LatestVersion: latestVersion,
		Entries:       make(map[string]Entry),
	}
}

// FileName returns the manifest file name for a platform, e.g.
// "delta-win.json".
func FileName(platform string) string {
	return fmt.Sprintf("delta-%s.json", platform)
}

// Lookup returns the entry for the given running version. A missing key
// or an entry without a checksum both report "no delta available".
func (m *Manifest) Lookup(version string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	e, ok := m.Entries[version]
	if !ok || e.SHA256 == "" || e.Path == "" {
		return Entry{}, false
	}
	return e, true
}

// Record adds or replaces the patch entry for a prior version.
func (m *Manifest) Record(version string, e Entry) {
	m.Entries[version] = e
}

// MarshalJSON flattens the entries into the top level of the object.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Entries)+2)
	out["productName"] = m.ProductName
	out["latestVersion"] = m.LatestVersion
	for v, e := range m.Entries {
		out[v] = e
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the flattened wire format. Version blocks that
// do not decode as objects are skipped rather than failing the whole
// manifest.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Entries = make(map[string]Entry)
	for key, val := range raw {
		switch key {
		case "productName":
			if err := json.Unmarshal(val, &m.ProductName); err != nil {
				return fmt.Errorf("productName: %w", err)
			}
		case "latestVersion":
			if err := json.Unmarshal(val, &m.LatestVersion); err != nil {
				return fmt.Errorf("latestVersion: %w", err)
			}
		default:
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				continue
			}
			m.Entries[key] = e
		}
	}
	return nil
}

// WriteFile serializes the manifest to path with stable indentation.
func (m *Manifest) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadFile loads a manifest from disk. Any read or decode failure is
// returned to the caller, which should treat it as "no delta available".
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a manifest from raw JSON.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
