// Package apply hands a pending update off to its installer. The
// sequencing contract: persist the attempt record first, quiesce the
// application, then start the installer for the current platform.
package apply

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/helixdesk/updater/internal/attempt"
	"github.com/helixdesk/updater/internal/autoupdate"
	"github.com/helixdesk/updater/internal/host"
	"github.com/helixdesk/updater/internal/logging"
)

var log = logging.L("apply")

// Sequencer owns the handoff from the running application to an
// installer process.
type Sequencer struct {
	Host     host.Runtime
	Native   autoupdate.NativeUpdater
	Attempts *attempt.Store

	// AppName is the installed application's name, passed to the macOS
	// updater helper.
	AppName string

	// HelperPath is the macOS updater helper prefetched by the update
	// manager; PatchToolPath is the patch-apply tool it runs.
	HelperPath    string
	PatchToolPath string

	// InstallerProcess, when set, skips handoff while a process with
	// this name is already running.
	InstallerProcess string

	// RelaunchDelaySec is passed through to the native updater for
	// quit-time installs.
	RelaunchDelaySec int

	// listProcesses is swappable in tests.
	listProcesses func() ([]string, error)
}

// ApplyNow applies the pending update immediately. Delta updates start
// their installer and, depending on the platform, may not return.
func (s *Sequencer) ApplyNow(ctx context.Context, u *autoupdate.PendingUpdate) error {
	if u == nil {
		return nil
	}
	if err := s.prepare(u); err != nil {
		return err
	}
	if u.IsDelta {
		return s.applyDelta(ctx, u, true)
	}
	return s.Native.InstallOnQuit(s.RelaunchDelaySec, true)
}

// ApplyOnQuit applies the pending update during application shutdown.
// Handoff errors are logged; shutdown proceeds regardless.
func (s *Sequencer) ApplyOnQuit(u *autoupdate.PendingUpdate) {
	if u == nil {
		return
	}
	if err := s.prepare(u); err != nil {
		log.Warn("skipping update handoff", logging.KeyError, err)
		return
	}

	var err error
	if u.IsDelta {
		err = s.applyDelta(context.Background(), u, false)
	} else {
		err = s.Native.InstallOnQuit(s.RelaunchDelaySec, false)
	}
	if err != nil {
		log.Error("update handoff failed", "version", u.Version, logging.KeyError, err)
	}
}

// prepare persists the attempt record and quiesces the application.
// The record is written before any installer starts so a failed apply
// is visible to the next update cycle.
func (s *Sequencer) prepare(u *autoupdate.PendingUpdate) error {
	rec := attempt.NewRecord(u.IsDelta, u.Version, s.Host.Version())
	if err := s.Attempts.Save(rec); err != nil {
		return fmt.Errorf("persist attempt record: %w", err)
	}

	s.Host.CloseAllWindows()

	if s.installerInFlight() {
		return fmt.Errorf("installer %s is already running", s.InstallerProcess)
	}
	return nil
}

func (s *Sequencer) installerInFlight() bool {
	if s.InstallerProcess == "" {
		return false
	}
	list := s.listProcesses
	if list == nil {
		list = runningProcessNames
	}
	names, err := list()
	if err != nil {
		log.Warn("process listing failed", logging.KeyError, err)
		return false
	}
	for _, name := range names {
		if strings.EqualFold(name, s.InstallerProcess) {
			return true
		}
	}
	return false
}

func runningProcessNames() ([]string, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
