package tools

import (
	"context"
	"fmt"
)

// DiffTool produces a binary patch between two extracted trees.
type DiffTool interface {
	// Create diffs oldDir against newDir and writes the patch to
	// patchOut. A non-zero exit means "no delta for this pair".
	Create(ctx context.Context, oldDir, newDir, patchOut string) error
}

// Extractor unpacks an installer or archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, archive, destDir string) error
}

// Defines carries the named defines handed to the installer compiler
// when wrapping a raw patch into a self-extracting installer.
type Defines struct {
	ProductName   string
	ProcessName   string
	AppID         string
	IconPath      string
	OutputPath    string
	PatchPath     string
	PatchFileName string
}

// InstallerCompiler builds the self-extracting patch installer from a
// static script template plus the defines above. Windows only.
type InstallerCompiler interface {
	Compile(ctx context.Context, d Defines, scriptPath string) error
}

// Signer code-signs a produced executable. The contract is
// fire-and-forget: callers observe no return value semantics beyond the
// error itself.
type Signer interface {
	Sign(ctx context.Context, path string) error
}

// HDiff is the hdiffz-style diff tool: hdiffz <old> <new> <patch>.
type HDiff struct {
	Path   string
	Runner *Runner
}

func (h *HDiff) Create(ctx context.Context, oldDir, newDir, patchOut string) error {
	if err := h.Runner.Run(ctx, h.Path, oldDir, newDir, patchOut); err != nil {
		return fmt.Errorf("diff %s: %w", patchOut, err)
	}
	return nil
}

// SevenZip extracts NSIS installers and zip archives:
// 7za x <archive> -o<dest> -y.
type SevenZip struct {
	Path   string
	Runner *Runner
}

func (s *SevenZip) Extract(ctx context.Context, archive, destDir string) error {
	if err := s.Runner.Run(ctx, s.Path, "x", archive, "-o"+destDir, "-y"); err != nil {
		return fmt.Errorf("extract %s: %w", archive, err)
	}
	return nil
}

// Makensis compiles the patch installer script with named defines.
type Makensis struct {
	Path   string
	Runner *Runner
}

func (m *Makensis) Compile(ctx context.Context, d Defines, scriptPath string) error {
	args := []string{
		"-DPRODUCT_NAME=" + d.ProductName,
		"-DPROCESS_NAME=" + d.ProcessName,
		"-DAPP_GUID=" + d.AppID,
		"-DAPP_ICON=" + d.IconPath,
		"-DOUTPUT_PATH=" + d.OutputPath,
		"-DPATCH_PATH=" + d.PatchPath,
		"-DPATCH_FILE_NAME=" + d.PatchFileName,
		scriptPath,
	}
	if err := m.Runner.Run(ctx, m.Path, args...); err != nil {
		return fmt.Errorf("compile installer %s: %w", d.OutputPath, err)
	}
	return nil
}

// SignTool invokes an external signing command on the given file.
type SignTool struct {
	Path   string
	Runner *Runner
}

func (s *SignTool) Sign(ctx context.Context, path string) error {
	if s.Path == "" {
		return nil // signing not configured
	}
	if err := s.Runner.Run(ctx, s.Path, path); err != nil {
		return fmt.Errorf("sign %s: %w", path, err)
	}
	return nil
}
