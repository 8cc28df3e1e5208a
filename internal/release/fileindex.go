package release

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileIndex reads releases from a local YAML file. Intended for offline
// builds and tests where no hosted index is reachable:
//
//	releases:
//	  - version: 1.1.0
//	    assets:
//	      - name: HelixDesk-1.1.0.exe
//	        url: https://downloads.example.com/HelixDesk-1.1.0.exe
type FileIndex struct {
	Path string
}

type fileIndexDoc struct {
	Releases []Release `yaml:"releases"`
}

// ListReleases loads the YAML file. The file order is trusted to be
// newest first, matching the hosted index contract.
func (f *FileIndex) ListReleases(ctx context.Context) ([]Release, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read release index: %w", err)
	}

	var doc fileIndexDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse release index: %w", err)
	}

	return doc.Releases, nil
}
