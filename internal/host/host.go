// Package host abstracts the application process the updater is
// embedded in: its version, install location, and lifecycle hooks.
package host

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/helixdesk/updater/internal/logging"
)

var log = logging.L("host")

// Runtime is the surface the update machinery needs from the hosting
// application.
type Runtime interface {
	// Version is the running application version, without "v" prefix.
	Version() string
	// InstallPath is the directory the application is installed in.
	InstallPath() string
	// IsPackaged reports whether this is an installed build. Updates
	// are disabled for unpackaged development runs.
	IsPackaged() bool
	// OnQuit registers a hook invoked during application shutdown.
	OnQuit(fn func())
	// ShowNotification surfaces a message to the user.
	ShowNotification(title, body string)
	// CloseAllWindows asks the application to close its UI before an
	// installer takes over.
	CloseAllWindows()
}

// ProcessRuntime is the default Runtime backed by the current process.
type ProcessRuntime struct {
	AppVersion string
	Packaged   bool
	Notify     func(title, body string)
	CloseUI    func()

	mu        sync.Mutex
	quitHooks []func()
}

func (p *ProcessRuntime) Version() string { return p.AppVersion }

func (p *ProcessRuntime) InstallPath() string {
	exe, err := os.Executable()
	if err != nil {
		log.Warn("executable path unavailable", "error", err)
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

func (p *ProcessRuntime) IsPackaged() bool { return p.Packaged }

func (p *ProcessRuntime) OnQuit(fn func()) {
	p.mu.Lock()
	p.quitHooks = append(p.quitHooks, fn)
	p.mu.Unlock()
}

// RunQuitHooks invokes registered hooks in registration order. The host
// binary calls this once during shutdown.
func (p *ProcessRuntime) RunQuitHooks() {
	p.mu.Lock()
	hooks := append([]func(){}, p.quitHooks...)
	p.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (p *ProcessRuntime) ShowNotification(title, body string) {
	if p.Notify != nil {
		p.Notify(title, body)
		return
	}
	log.Info("notification", "title", title, "body", body)
}

func (p *ProcessRuntime) CloseAllWindows() {
	if p.CloseUI != nil {
		p.CloseUI()
	}
}
