package autoupdate

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/helixdesk/updater/internal/download"
	"github.com/helixdesk/updater/internal/release"
)

// IndexUpdater is a NativeUpdater backed by a release index: version
// checks list the index, and a full update downloads the release's
// installer asset for later install.
type IndexUpdater struct {
	Index    release.Index
	Platform string // "win" or "mac"
	Target   string // "nsis", "zip"
	Dir      string // where full installers are downloaded

	// Downloader defaults to a fresh one on first use.
	Downloader *download.Downloader

	// Install runs the downloaded installer. Defaults to a silent
	// platform-appropriate invocation; swappable in tests.
	Install func(path string, relaunch bool) error

	mu         sync.Mutex
	downloaded string
}

func (n *IndexUpdater) CheckForUpdates(ctx context.Context) (string, error) {
	releases, err := n.Index.ListReleases(ctx)
	if err != nil {
		return "", err
	}
	if len(releases) == 0 {
		return "", nil
	}
	return releases[0].Version, nil
}

// RequestFullUpdate downloads the full installer for version into the
// download directory, replacing any previously downloaded installer.
func (n *IndexUpdater) RequestFullUpdate(ctx context.Context, version string) error {
	releases, err := n.Index.ListReleases(ctx)
	if err != nil {
		return err
	}

	var match *release.Release
	for i := range releases {
		if releases[i].Version == version {
			match = &releases[i]
			break
		}
	}
	if match == nil {
		return fmt.Errorf("version %s not in release index", version)
	}

	refs := release.ResolveHistory([]release.Release{*match}, n.Platform, n.Target, 1)
	if len(refs) == 0 {
		return fmt.Errorf("release %s has no installer for %s", version, n.Platform)
	}

	dl := n.Downloader
	if dl == nil {
		dl = download.New()
	}

	dest := filepath.Join(n.Dir, refs[0].Name)
	if err := dl.Fetch(ctx, refs[0].URL, dest, nil); err != nil {
		return fmt.Errorf("download full installer: %w", err)
	}

	n.mu.Lock()
	n.downloaded = dest
	n.mu.Unlock()

	log.Info("full installer downloaded", "version", version, "path", dest)
	return nil
}

// InstallOnQuit starts the downloaded installer after the given delay.
func (n *IndexUpdater) InstallOnQuit(delaySec int, relaunch bool) error {
	n.mu.Lock()
	path := n.downloaded
	n.mu.Unlock()
	if path == "" {
		return errors.New("no full installer downloaded")
	}

	install := n.Install
	if install == nil {
		install = runInstaller
	}
	if delaySec > 0 {
		time.Sleep(time.Duration(delaySec) * time.Second)
	}
	return install(path, relaunch)
}

func runInstaller(path string, relaunch bool) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		args := []string{"/S"}
		if relaunch {
			args = append(args, "/RESTART")
		}
		cmd = exec.Command(path, args...)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		return fmt.Errorf("full install unsupported on %s", runtime.GOOS)
	}
	return cmd.Start()
}
