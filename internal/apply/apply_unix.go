//go:build !windows && !darwin

package apply

import (
	"context"
	"fmt"
	"runtime"

	"github.com/helixdesk/updater/internal/autoupdate"
)

// Deltas are only built for Windows and macOS; everything else updates
// through the native full-update path.
func (s *Sequencer) applyDelta(ctx context.Context, u *autoupdate.PendingUpdate, restart bool) error {
	return fmt.Errorf("delta apply unsupported on %s", runtime.GOOS)
}
