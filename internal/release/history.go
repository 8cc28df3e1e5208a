package release

import (
	"path/filepath"
	"strings"

	"github.com/helixdesk/updater/internal/logging"
)

var log = logging.L("release")

// maxHistory bounds the diff window regardless of what the caller asks
// for. Call-sites may pre-truncate the release list further.
const maxHistory = 10

// exclusion markers: assets carrying these are web, partial, delta, or
// unpublished variants and never serve as diff bases.
var excludedMarkers = []string{"untagged", "-delta", "Setup", "Web"}

// canonicalExt returns the full-installer file extension for a
// platform/target pair. Unknown pairs produce no matches.
func canonicalExt(platform, target string) string {
	switch platform {
	case "win":
		if target == "nsis" || target == "nsis-web" || target == "" {
			return ".exe"
		}
	case "mac":
		if target == "zip" || target == "" {
			return ".zip"
		}
	}
	return ""
}

// ResolveHistory selects, from a newest-first release list, the prior
// releases suitable for delta building. Per release the single asset
// matching the platform's canonical installer extension is chosen;
// web/partial/delta/untagged variants are excluded. The result keeps the
// input order and is truncated to at most min(limit, 10) entries.
//
// A nil or unusable input yields an empty slice, never an error: the
// pipeline treats that as "no updates possible".
func ResolveHistory(releases []Release, platform, target string, limit int) []Ref {
	ext := canonicalExt(platform, target)
	if ext == "" {
		log.Warn("no installer convention for platform/target", "platform", platform, "target", target)
		return nil
	}

	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}

	var refs []Ref
	seen := make(map[string]bool)
	for _, rel := range releases {
		if len(refs) == limit {
			break
		}
		if seen[rel.Version] {
			continue
		}
		asset, ok := pickInstallerAsset(rel, ext)
		if !ok {
			continue
		}
		seen[rel.Version] = true
		refs = append(refs, Ref{Version: rel.Version, URL: asset.URL, Name: asset.Name})
	}

	log.Info("resolved diff window", "platform", platform, "target", target, "candidates", len(refs))
	return refs
}

func pickInstallerAsset(rel Release, ext string) (Asset, bool) {
	for _, a := range rel.Assets {
		if !strings.EqualFold(filepath.Ext(a.Name), ext) {
			continue
		}
		if isExcludedVariant(a.Name) {
			continue
		}
		// One asset per extension per release; first match wins.
		return a, true
	}
	return Asset{}, false
}

func isExcludedVariant(name string) bool {
	for _, marker := range excludedMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
