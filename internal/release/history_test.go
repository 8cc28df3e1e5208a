package release

import "testing"

func TestResolveHistoryPicksPlainInstaller(t *testing.T) {
	// Newest-first index entries. The delta and Setup variants are
	// filtered; every plain installer survives.
	releases := []Release{
		{Version: "1.2.0", Assets: []Asset{{Name: "HelixDesk-1.2.0-delta.exe", URL: "u4"}}},
		{Version: "1.1.0", Assets: []Asset{{Name: "HelixDesk-Setup-1.1.0.exe", URL: "u3"}}},
		{Version: "1.1.0", Assets: []Asset{{Name: "HelixDesk-1.1.0.exe", URL: "u2"}}},
		{Version: "1.0.0", Assets: []Asset{{Name: "HelixDesk-1.0.0.exe", URL: "u1"}}},
	}

	refs := ResolveHistory(releases, "win", "nsis", 10)

	if len(refs) != 2 {
		t.Fatalf("refs = %v, want the plain 1.1.0 and 1.0.0 installers", refs)
	}
	if refs[0].Version != "1.1.0" || refs[0].Name != "HelixDesk-1.1.0.exe" {
		t.Fatalf("resolved %+v, want plain 1.1.0 installer", refs[0])
	}
	if refs[1].Version != "1.0.0" || refs[1].Name != "HelixDesk-1.0.0.exe" {
		t.Fatalf("resolved %+v, want plain 1.0.0 installer", refs[1])
	}

	// Pre-truncated to the three newest index entries, as the pipeline
	// call site may do, only the plain 1.1.0 installer remains.
	refs = ResolveHistory(releases[:3], "win", "nsis", 10)
	if len(refs) != 1 {
		t.Fatalf("refs = %v, want exactly one", refs)
	}
	if refs[0].Version != "1.1.0" || refs[0].Name != "HelixDesk-1.1.0.exe" {
		t.Fatalf("resolved %+v, want plain 1.1.0 installer", refs[0])
	}
}

func TestResolveHistoryCapsAtTen(t *testing.T) {
	var releases []Release
	for i := 0; i < 15; i++ {
		v := string(rune('a'+i)) + ".0.0"
		releases = append(releases, Release{
			Version: v,
			Assets:  []Asset{{Name: "HelixDesk-" + v + ".exe", URL: "u"}},
		})
	}

	refs := ResolveHistory(releases, "win", "nsis", 50)
	if len(refs) != 10 {
		t.Fatalf("len = %d, want defensive cap of 10", len(refs))
	}
}

func TestResolveHistoryHonorsSmallerLimit(t *testing.T) {
	releases := []Release{
		{Version: "1.3.0", Assets: []Asset{{Name: "a-1.3.0.zip", URL: "u"}}},
		{Version: "1.2.0", Assets: []Asset{{Name: "a-1.2.0.zip", URL: "u"}}},
		{Version: "1.1.0", Assets: []Asset{{Name: "a-1.1.0.zip", URL: "u"}}},
	}

	refs := ResolveHistory(releases, "mac", "zip", 2)
	if len(refs) != 2 {
		t.Fatalf("len = %d, want 2", len(refs))
	}
	if refs[0].Version != "1.3.0" || refs[1].Version != "1.2.0" {
		t.Fatalf("order not preserved: %v", refs)
	}
}

func TestResolveHistoryExcludesVariants(t *testing.T) {
	releases := []Release{
		{Version: "2.0.0", Assets: []Asset{{Name: "untagged-2.0.0.exe", URL: "u"}}},
		{Version: "1.9.0", Assets: []Asset{{Name: "HelixDesk-Web-1.9.0.exe", URL: "u"}}},
		{Version: "1.8.0", Assets: []Asset{{Name: "HelixDesk-1.8.0.exe", URL: "u"}}},
	}

	refs := ResolveHistory(releases, "win", "nsis", 10)
	if len(refs) != 1 || refs[0].Version != "1.8.0" {
		t.Fatalf("refs = %v, want only 1.8.0", refs)
	}
}

func TestResolveHistoryWrongExtension(t *testing.T) {
	releases := []Release{
		{Version: "1.0.0", Assets: []Asset{{Name: "HelixDesk-1.0.0.dmg", URL: "u"}}},
	}

	if refs := ResolveHistory(releases, "mac", "zip", 10); len(refs) != 0 {
		t.Fatalf("refs = %v, want none for non-zip assets", refs)
	}
}

func TestResolveHistoryUnknownPlatform(t *testing.T) {
	releases := []Release{
		{Version: "1.0.0", Assets: []Asset{{Name: "a.exe", URL: "u"}}},
	}

	if refs := ResolveHistory(releases, "linux", "appimage", 10); refs != nil {
		t.Fatalf("refs = %v, want nil for unknown platform", refs)
	}
}

func TestResolveHistoryEmptyInput(t *testing.T) {
	if refs := ResolveHistory(nil, "win", "nsis", 10); len(refs) != 0 {
		t.Fatalf("refs = %v, want empty for empty index", refs)
	}
}
