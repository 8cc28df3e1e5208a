//go:build darwin

package apply

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/helixdesk/updater/internal/autoupdate"
)

// exitProcess is swappable in tests.
var exitProcess = func() { os.Exit(0) }

// applyDelta starts the detached updater helper against the installed
// app bundle and, for immediate applies, exits the process so the
// helper can replace it.
func (s *Sequencer) applyDelta(ctx context.Context, u *autoupdate.PendingUpdate, restart bool) error {
	if s.HelperPath == "" || s.PatchToolPath == "" {
		return errors.New("updater helpers not available")
	}

	cmd := helperCommand(s.HelperPath, s.AppName, u.LocalPath, s.PatchToolPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	log.Info("starting updater helper", "helper", s.HelperPath, "version", u.Version)
	if err := cmd.Start(); err != nil {
		return err
	}

	if restart {
		exitProcess()
	}
	return nil
}

// helperCommand builds the detached helper invocation: application
// name, patch path, then the patch-apply tool the helper drives.
func helperCommand(helper, appName, patchPath, toolPath string) *exec.Cmd {
	return exec.Command(helper, appName, patchPath, toolPath)
}
