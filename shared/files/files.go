// Author: Toluwalase Mebaanne
// Package files allocates destination paths and writes text files.
//
// Allocation without overwrite is a sequential existence probe:
// name.ext, name(1).ext, name(2).ext, ... It is not atomic. Two sessions
// probing the same directory at the same moment can pick the same name;
// at most one writer per project root is assumed.

package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// IOError reports a failed filesystem operation on Path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Allocate ensures the parent directory of path exists and returns the
// path to write. With overwrite the path is returned unchanged.
func Allocate(path string, overwrite bool) (string, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &IOError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	if overwrite {
		return path, nil
	}

	ext := filepath.Ext(path)
	if ext == filepath.Base(path) {
		// Dotfiles like .env have no extension.
		ext = ""
	}
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for counter := 1; ; counter++ {
		exists, err := Exists(candidate)
		if err != nil {
			return "", &IOError{Op: "stat", Path: candidate, Err: err}
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s(%d)%s", stem, counter, ext)
	}
}

// Exists reports whether anything is present at path.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Write stores content at path, replacing whatever is there.
func Write(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{Op: "open", Path: path, Err: err}
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// Save allocates and writes in one step and returns the final path.
func Save(path, content string, overwrite bool) (string, error) {
	final, err := Allocate(path, overwrite)
	if err != nil {
		return "", err
	}
	if err := Write(final, content); err != nil {
		return "", err
	}
	return final, nil
}
