// Author: Toluwalase Mebaanne

package handlers

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tmair/snipbridge/shared/files"
)

// detectLines is how far into the content resolution looks for hints.
const detectLines = 3

var (
	// declaredPathRe finds "Path: <file>" in any comment style.
	declaredPathRe = regexp.MustCompile(`Path:\s*(\S.*?)\s*(?:\*/|-->)?\s*$`)

	// trailingExtRe finds a file extension at the end of a line.
	trailingExtRe = regexp.MustCompile(`(\.\w+)\s*(?:\*/|-->)?\s*$`)
)

// Registry maps extensions to handlers. It is built once and only read
// afterwards, so sessions share it without locking.
type Registry struct {
	ordered []ContentHandler
	byExt   map[string]ContentHandler
	baseDir string
}

// NewRegistry builds a registry from handlers in detection order. Relative
// destination paths are resolved under baseDir; an empty baseDir means the
// working directory.
func NewRegistry(baseDir string, handlers ...ContentHandler) (*Registry, error) {
	r := &Registry{
		ordered: handlers,
		byExt:   make(map[string]ContentHandler),
		baseDir: baseDir,
	}
	for _, h := range handlers {
		if len(h.Extensions()) == 0 {
			return nil, fmt.Errorf("handler %s registers no extensions", h.GetType())
		}
		for _, ext := range h.Extensions() {
			ext = strings.ToLower(ext)
			if prev, ok := r.byExt[ext]; ok {
				return nil, fmt.Errorf("extension %s registered by both %s and %s", ext, prev.GetType(), h.GetType())
			}
			r.byExt[ext] = h
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry of the built-in variants.
func DefaultRegistry(baseDir string) *Registry {
	r, err := NewRegistry(baseDir, Builtins()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the handler owning ext.
func (r *Registry) Lookup(ext string) (ContentHandler, bool) {
	h, ok := r.byExt[strings.ToLower(ext)]
	return h, ok
}

// Resolve picks the handler for a snippet. In order: the extension of a
// path declared in the first lines, the hint's extension, an extension at
// the end of one of the first lines, and finally comment style.
// WHY declaration first: the hint is only a suggestion, and a variant can
// only strip a declaration written in its own comment syntax.
func (r *Registry) Resolve(pathHint, content string) (ContentHandler, error) {
	if declared, ok := DeclaredPath(content); ok {
		if h, ok := r.Lookup(filepath.Ext(declared)); ok {
			return h, nil
		}
	}
	if h, ok := r.Lookup(filepath.Ext(pathHint)); ok {
		return h, nil
	}

	for _, line := range leadingLines(content, detectLines) {
		if m := trailingExtRe.FindStringSubmatch(line); m != nil {
			if h, ok := r.Lookup(m[1]); ok {
				return h, nil
			}
		}
	}
	for _, h := range r.ordered {
		if h.Detect(content) {
			return h, nil
		}
	}

	return nil, fmt.Errorf("%w (hint %q)", ErrNoHandler, pathHint)
}

// DeclaredPath returns the first "Path:" declaration found in the leading
// lines of content, whatever the comment style.
func DeclaredPath(content string) (string, bool) {
	for _, line := range leadingLines(content, detectLines) {
		if m := declaredPathRe.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Process resolves the handler and runs it, resolving relative paths
// under the base directory.
func (r *Registry) Process(pathHint, content string) (Result, error) {
	h, err := r.Resolve(pathHint, content)
	if err != nil {
		return Result{}, err
	}
	res, err := h.Process(content, pathHint)
	if err != nil {
		return Result{}, fmt.Errorf("%s handler: %w", h.GetType(), err)
	}
	if r.baseDir != "" && !filepath.IsAbs(res.Path) {
		res.Path = filepath.Join(r.baseDir, res.Path)
	}
	log.Debug().
		Str("handler", h.GetType()).
		Str("hint", pathHint).
		Str("path", res.Path).
		Bool("declared", res.Declared).
		Msg("content processed")
	return res, nil
}

// Save processes the snippet and writes it, returning the final path.
func (r *Registry) Save(pathHint, content string, overwrite bool) (string, error) {
	res, err := r.Process(pathHint, content)
	if err != nil {
		return "", err
	}
	final, err := files.Save(res.Path, res.Content, overwrite)
	if err != nil {
		return "", err
	}
	log.Info().Str("path", final).Int("bytes", len(res.Content)).Msg("file saved")
	return final, nil
}
