//go:build windows

package apply

import (
	"context"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/helixdesk/updater/internal/autoupdate"
)

// applyDelta runs the wrapped delta installer silently against the
// install directory. The /D argument must come last and unquoted, per
// installer convention. With restart the installer relaunches the app
// when it finishes and the call blocks until then.
func (s *Sequencer) applyDelta(ctx context.Context, u *autoupdate.PendingUpdate, restart bool) error {
	args := []string{"/S"}
	if restart {
		args = append(args, "/RESTART")
	}
	args = append(args, "/D="+s.Host.InstallPath())

	cmd := exec.CommandContext(ctx, u.LocalPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
	}

	log.Info("starting delta installer", "installer", u.LocalPath, "version", u.Version)
	if restart {
		return cmd.Run()
	}
	return cmd.Start()
}
