// Package fileutil holds the file-writing helpers shared by the schema store
// and the emitters.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default permissions for generated files and directories.
const (
	FileMode os.FileMode = 0o644
	DirMode  os.FileMode = 0o755
)

// WriteFileAtomic writes content to path using a temporary file in the same
// directory followed by a rename, so readers never observe a partial file.
// Missing parent directories are created.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("ensure target directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-ubergen-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", filepath.Base(path), err)
	}

	tmpPath := tmpFile.Name()
	success := false

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
		}
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if len(content) > 0 {
		n, err := tmpFile.Write(content)
		if err != nil {
			return fmt.Errorf("write content to temp file: %w", err)
		}
		if n != len(content) {
			return fmt.Errorf("incomplete write: expected %d bytes, wrote %d", len(content), n)
		}
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Chmod(mode); err != nil {
		return fmt.Errorf("set file permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic rename %s to %s: %w", tmpPath, path, err)
	}

	success = true
	return nil
}

// ValidateOutputDirectory checks that dir is usable as a generation target. A
// missing directory is fine; an existing non-empty one needs force.
func ValidateOutputDirectory(absPath string, force bool) error {
	stat, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory %q: %w", absPath, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("output path %q is not a directory", absPath)
	}
	if force {
		return nil
	}
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("cannot read output directory %q: %w", absPath, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %q is not empty (use --force to overwrite)", absPath)
	}
	return nil
}
