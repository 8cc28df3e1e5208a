// Package autoupdate runs the client-side update cycle: poll for a new
// version, try to obtain a verified delta for it, and fall back to the
// full updater when any step of the delta path fails.
package autoupdate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/helixdesk/updater/internal/attempt"
	"github.com/helixdesk/updater/internal/config"
	"github.com/helixdesk/updater/internal/download"
	"github.com/helixdesk/updater/internal/feed"
	"github.com/helixdesk/updater/internal/host"
	"github.com/helixdesk/updater/internal/httputil"
	"github.com/helixdesk/updater/internal/integrity"
	"github.com/helixdesk/updater/internal/logging"
	"github.com/helixdesk/updater/internal/manifest"
)

var log = logging.L("autoupdate")

const (
	defaultIntervalMinutes = 15

	// maxManifestBytes caps the manifest response body (1 MB).
	maxManifestBytes = 1 << 20
)

// MacApplierAsset and MacPatchToolAsset are the helper binaries
// published next to the deltas on the macOS feed: the detached updater
// that performs the swap, and the patch-apply tool it invokes. Both
// must be in place and executable before a patch is downloaded.
const (
	MacApplierAsset   = "helix-applier"
	MacPatchToolAsset = "helix-patch"
)

// NativeUpdater is the underlying full-installer update mechanism the
// delta path shadows and falls back to.
type NativeUpdater interface {
	// CheckForUpdates returns the newest available version, or "" when
	// the application is current.
	CheckForUpdates(ctx context.Context) (string, error)
	// RequestFullUpdate starts a full-installer update to version.
	RequestFullUpdate(ctx context.Context, version string) error
	// InstallOnQuit schedules a previously downloaded full update to
	// install after the application exits.
	InstallOnQuit(delaySec int, relaunch bool) error
}

// Event is delivered to subscribers on update-cycle transitions.
type Event struct {
	Type     string
	Version  string
	Progress *download.Progress
	Err      error
}

// PendingUpdate is what the apply sequencer hands off at quit or on
// user request. Last writer wins across cycles.
type PendingUpdate struct {
	IsDelta   bool
	Version   string
	LocalPath string // delta installer or patch; empty for full updates
}

// Options wires a Manager. Zero-value fields get defaults.
type Options struct {
	Config   config.UpdateConfig
	Host     host.Runtime
	Native   NativeUpdater
	Feed     *feed.Resolver
	Attempts *attempt.Store

	// Platform is the manifest platform key, "win" or "mac". Empty
	// defaults from the running OS; an unsupported OS disables the
	// delta path entirely.
	Platform string

	// HolderDir caches downloaded deltas across cycles and restarts.
	HolderDir string

	Client *http.Client
}

// Manager drives the periodic update cycle. One goroutine runs the
// loop; cycles never overlap.
type Manager struct {
	cfg      config.UpdateConfig
	platform string
	host     host.Runtime
	native   NativeUpdater
	feed     *feed.Resolver
	attempts *attempt.Store
	client   *http.Client
	dl       *download.Downloader
	holder   string
	retry    httputil.RetryConfig

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu          sync.Mutex
	state       State
	pending     *PendingUpdate
	subscribers []func(Event)

	// fullRequested guards the fallback: at most one full-update
	// request per cycle no matter how many delta steps fail.
	fullRequested bool
}

func New(opts Options) *Manager {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	fd := opts.Feed
	if fd == nil {
		fd = &feed.Resolver{Client: client}
	}
	attempts := opts.Attempts
	if attempts == nil {
		attempts = &attempt.Store{Dir: config.DataDir()}
	}
	platform := opts.Platform
	if platform == "" {
		platform = platformKey()
	}
	holder := opts.HolderDir
	if holder == "" {
		holder = filepath.Join(config.DataDir(), "pending")
	}

	return &Manager{
		cfg:      opts.Config,
		platform: platform,
		host:     opts.Host,
		native:   opts.Native,
		feed:     fd,
		attempts: attempts,
		client:   client,
		dl:       download.NewWithClient(client),
		holder:   holder,
		retry:    httputil.DefaultRetryConfig(),
		stopChan: make(chan struct{}),
		state:    StateIdle,
	}
}

func platformKey() string {
	switch runtime.GOOS {
	case "windows":
		return "win"
	case "darwin":
		return "mac"
	default:
		return ""
	}
}

// Subscribe registers an event listener. Listeners are invoked from the
// update loop goroutine and must not block.
func (m *Manager) Subscribe(fn func(Event)) {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, fn)
	m.mu.Unlock()
}

// State returns the current cycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns the update waiting to be applied, or nil.
func (m *Manager) Pending() *PendingUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Start launches the update loop. The first check fires immediately,
// then every configured interval. Unpackaged builds never update.
func (m *Manager) Start() {
	if m.host == nil || !m.host.IsPackaged() {
		log.Info("updates disabled for unpackaged build")
		return
	}

	interval := time.Duration(m.cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = defaultIntervalMinutes * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		go func() {
			<-m.stopChan
			cancel()
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.CheckNow(ctx)
		for {
			select {
			case <-ticker.C:
				m.CheckNow(ctx)
			case <-m.stopChan:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight cycle to finish.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
}

// CheckNow runs one full update cycle synchronously.
func (m *Manager) CheckNow(ctx context.Context) {
	m.mu.Lock()
	m.fullRequested = false
	m.mu.Unlock()

	m.setState(StateChecking)
	m.emit(Event{Type: EventChecking})

	target, err := m.native.CheckForUpdates(ctx)
	if err != nil {
		log.Warn("update check failed", logging.KeyError, err)
		m.setState(StateError)
		m.emit(Event{Type: EventError, Err: err})
		return
	}

	current := m.host.Version()
	if target == "" || target == current {
		m.setState(StateNotAvailable)
		m.emit(Event{Type: EventUpdateNotAvailable, Version: current})
		return
	}

	log.Info("update available", "current", current, "target", target)
	m.setState(StateUpdateAvailable)
	m.emit(Event{Type: EventUpdateAvailable, Version: target})

	if err := m.obtainDelta(ctx, target); err != nil {
		log.Warn("delta path failed", "target", target, logging.KeyError, err)
		m.fallbackToFull(ctx, target, err)
	}
}

// obtainDelta walks the delta decision chain for the target version.
// Any returned error sends the cycle to the full-update fallback.
func (m *Manager) obtainDelta(ctx context.Context, target string) error {
	if m.platform == "" {
		return fmt.Errorf("deltas unsupported on %s", runtime.GOOS)
	}

	current := m.host.Version()

	// A prior attempt while running this same version means the update
	// did not take; retrying the delta would loop forever. On macOS the
	// helper relaunches the app itself, so the record is written but
	// never consulted there.
	if m.platform == "win" {
		rec, err := m.attempts.Load()
		if err != nil {
			return err
		}
		if rec != nil && rec.AppVersion == current {
			return fmt.Errorf("update already attempted on version %s at %s", current, rec.TimeHuman)
		}
	}

	base, err := m.feed.Resolve(ctx, m.cfg)
	if err != nil {
		return fmt.Errorf("resolve feed: %w", err)
	}

	man, err := m.fetchManifest(ctx, base)
	if err != nil {
		return err
	}
	if man.LatestVersion != "" && man.LatestVersion != target {
		return fmt.Errorf("manifest is for %s, expected %s", man.LatestVersion, target)
	}

	entry, ok := man.Lookup(current)
	if !ok {
		return fmt.Errorf("no delta from %s in manifest", current)
	}

	if m.platform == "mac" {
		if err := m.prefetchHelpers(ctx, base); err != nil {
			return fmt.Errorf("prefetch applier helpers: %w", err)
		}
	}

	dest := filepath.Join(m.holder, entry.Path)
	if integrity.Verify(dest, entry.SHA256) == nil {
		log.Info("delta already downloaded", "file", entry.Path)
	} else {
		if err := m.downloadDelta(ctx, base, entry, dest); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.pending = &PendingUpdate{IsDelta: true, Version: target, LocalPath: dest}
	m.state = StateDone
	m.mu.Unlock()

	log.Info("delta ready", "target", target, "file", entry.Path)
	m.emit(Event{Type: EventUpdateDownloaded, Version: target})
	return nil
}

func (m *Manager) fetchManifest(ctx context.Context, base string) (*manifest.Manifest, error) {
	url := base + "/" + manifest.FileName(m.platform)

	resp, err := httputil.Get(ctx, m.client, url, nil, m.retry)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch manifest: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	return manifest.Parse(data)
}

// prefetchHelpers downloads the macOS updater helper and the
// patch-apply tool next to the pending delta and marks them
// executable. Idempotent across cycles; failure on either one fails
// the whole delta path.
func (m *Manager) prefetchHelpers(ctx context.Context, base string) error {
	for _, name := range []string{MacApplierAsset, MacPatchToolAsset} {
		dest := filepath.Join(m.holder, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		if err := m.dl.Fetch(ctx, base+"/"+name, dest, nil); err != nil {
			return fmt.Errorf("fetch %s: %w", name, err)
		}
		if err := os.Chmod(dest, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) downloadDelta(ctx context.Context, base string, entry manifest.Entry, dest string) error {
	m.setState(StateDownloading)

	url := base + "/" + entry.Path
	onProgress := func(p download.Progress) {
		m.emit(Event{Type: EventDownloadProgress, Progress: &p})
	}
	if err := m.dl.Fetch(ctx, url, dest, onProgress); err != nil {
		return fmt.Errorf("download delta: %w", err)
	}

	m.setState(StateVerifying)
	// A corrupt file stays put: it fails this same check on the next
	// cycle and is simply overwritten by the re-download.
	return integrity.Verify(dest, entry.SHA256)
}

// fallbackToFull requests one full update for the cycle and records it
// as the pending update.
func (m *Manager) fallbackToFull(ctx context.Context, target string, cause error) {
	m.mu.Lock()
	if m.fullRequested {
		m.mu.Unlock()
		return
	}
	m.fullRequested = true
	m.state = StateFallingBackToFull
	m.mu.Unlock()

	log.Info("falling back to full update", "target", target, "cause", cause)
	if err := m.native.RequestFullUpdate(ctx, target); err != nil {
		log.Error("full update request failed", logging.KeyError, err)
		m.setState(StateError)
		m.emit(Event{Type: EventError, Err: err})
		return
	}

	m.mu.Lock()
	m.pending = &PendingUpdate{IsDelta: false, Version: target}
	m.state = StateDone
	m.mu.Unlock()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	subs := append([]func(Event){}, m.subscribers...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
