// Author: Toluwalase Mebaanne
// Package tracked lists the files of a project that are worth syncing.

package tracked

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Lister enumerates files under root. Paths are relative to root and use
// forward slashes.
type Lister interface {
	TrackedFiles(ctx context.Context, root string) ([]string, error)
}

// Git lists tracked and untracked-but-not-ignored files with git.
type Git struct {
	// Binary defaults to "git".
	Binary string
}

// TrackedFiles implements Lister.
func (g Git) TrackedFiles(ctx context.Context, root string) ([]string, error) {
	out, err := g.run(ctx, root, "ls-files", "--cached", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (g Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	binary := g.Binary
	if binary == "" {
		binary = "git"
	}
	fullArgs := append([]string{"-C", dir}, args...)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, fullArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Static returns a fixed listing. Useful when the caller already knows the
// files, and in tests.
type Static []string

// TrackedFiles implements Lister.
func (s Static) TrackedFiles(context.Context, string) ([]string, error) {
	return append([]string(nil), s...), nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
