// Package tools wraps the external command-line collaborators of the
// delta pipeline: the binary diff tool, the archive extractor, the
// installer compiler, and the code signer. Each is a subprocess with a
// fixed argument contract; failures are scoped to the invocation.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/helixdesk/updater/internal/logging"
)

var log = logging.L("tools")

const (
	// DefaultTimeout bounds a single tool invocation. The upstream
	// behavior enforced no timeout at all; a bound keeps a wedged diff
	// from hanging the whole build.
	DefaultTimeout = 10 * time.Minute

	// maxCapturedOutput limits stdout/stderr capture per invocation.
	maxCapturedOutput = 256 * 1024
)

// Runner executes external tools with a timeout and captured output.
type Runner struct {
	Timeout time.Duration
}

// NewRunner returns a Runner with the given timeout; zero means
// DefaultTimeout.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{Timeout: timeout}
}

// Run invokes the tool and waits for it. The returned error wraps the
// exit status and trailing output on failure; success discards output.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	log.Debug("tool finished", "tool", name, "durationMs", time.Since(start).Milliseconds(), "error", err)

	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(out.Bytes()))
	}
	return nil
}

func tail(b []byte) []byte {
	if len(b) > maxCapturedOutput {
		return b[len(b)-maxCapturedOutput:]
	}
	return b
}
