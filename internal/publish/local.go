package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider copies artifacts into a directory, typically one served
// by a static web server or synced out of band.
type LocalProvider struct {
	BaseDir string
}

func NewLocalProvider(baseDir string) (*LocalProvider, error) {
	if baseDir == "" {
		return nil, errors.New("local publish directory is required")
	}
	return &LocalProvider{BaseDir: filepath.Clean(baseDir)}, nil
}

// Upload copies the file to <BaseDir>/<remoteName>. The remote name may
// carry a slash-separated prefix but must resolve inside the base dir.
func (p *LocalProvider) Upload(ctx context.Context, localPath, remoteName string) error {
	if remoteName == "" {
		return errors.New("remote name is required")
	}

	dest, err := containedPath(p.BaseDir, remoteName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create publish directory: %w", err)
	}

	if err := copyFile(localPath, dest); err != nil {
		return err
	}
	log.Debug("published file locally", "path", dest)
	return nil
}

// containedPath ensures that the resolved path stays within basePath.
func containedPath(basePath, untrustedPath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}
	joined := filepath.Join(absBase, filepath.FromSlash(untrustedPath))
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if !strings.HasPrefix(absJoined, absBase+string(filepath.Separator)) && absJoined != absBase {
		return "", fmt.Errorf("path traversal detected: %q resolves outside base %q", untrustedPath, absBase)
	}
	return absJoined, nil
}

func copyFile(srcPath, destPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer srcFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}

	_, err = io.Copy(destFile, srcFile)
	closeErr := destFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	return nil
}
