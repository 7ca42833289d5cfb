// Author: Toluwalase Mebaanne

package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxContentLength is the largest body a handler accepts.
const MaxContentLength = 16 * 1024 * 1024 // 16 MiB

// DefaultMarker precedes the path inside a declaration comment.
const DefaultMarker = "Path:"

// Variant is a table-driven ContentHandler. Every built-in family is a
// Variant value; new families only need a new entry in Builtins.
type Variant struct {
	Name string

	// CommentPrefix and CommentSuffix delimit a single-line comment.
	// CommentSuffix is empty for line comments.
	CommentPrefix string
	CommentSuffix string

	// Marker precedes the declared path. Empty means DefaultMarker.
	Marker string

	// Exts lists owned extensions; Exts[0] is canonical.
	Exts []string

	// DeclarationLines is how many leading lines may hold the declaration.
	// Lines before the declaration must all be directives.
	DeclarationLines int

	// Directives are prefixes of lines that must remain first in the file
	// (shebangs, XML prologs, <?php).
	Directives []string

	// RequiredDirective is put back on line one when the body lacks it.
	RequiredDirective string

	// TrailingNewline ends every body with exactly one newline.
	TrailingNewline bool
}

func (v *Variant) GetType() string {
	return v.Name
}

func (v *Variant) Extensions() []string {
	return v.Exts
}

func (v *Variant) CanHandle(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range v.Exts {
		if e == ext {
			return true
		}
	}
	return false
}

// Detect reports whether content looks like this family. A variant with a
// RequiredDirective only matches when line one carries it.
func (v *Variant) Detect(content string) bool {
	lines := leadingLines(content, v.searchDepth()+1)
	if v.RequiredDirective != "" {
		return len(lines) > 0 && strings.HasPrefix(lines[0], v.RequiredDirective)
	}
	for _, line := range lines {
		if v.isDirective(line) {
			continue
		}
		if !strings.HasPrefix(line, v.CommentPrefix) {
			return false
		}
		return v.CommentSuffix == "" || strings.Contains(line, v.CommentSuffix)
	}
	return false
}

// Process implements ContentHandler.
func (v *Variant) Process(content, pathHint string) (Result, error) {
	if len(content) > MaxContentLength {
		return Result{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrContentTooLarge, len(content), MaxContentLength)
	}
	body := strings.TrimSpace(normalizeNewlines(content))
	if body == "" {
		return Result{}, ErrEmptyContent
	}

	lines := strings.Split(body, "\n")
	for i := 0; i < v.searchDepth() && i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if path, ok := v.ParseDeclaration(line); ok {
			rest := dropBlankLines(lines[i+1:])
			return Result{
				Content:  v.finish(lines[:i], strings.TrimSpace(strings.Join(rest, "\n"))),
				Path:     path,
				Declared: true,
			}, nil
		}
		if !v.isDirective(line) {
			break
		}
	}

	return Result{
		Content: v.finish(nil, body),
		Path:    v.fallbackPath(pathHint),
	}, nil
}

// ParseDeclaration extracts the path from a single trimmed comment line
// such as "/* Path: css/site.css */".
func (v *Variant) ParseDeclaration(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, v.CommentPrefix)
	if !ok {
		return "", false
	}
	if v.CommentSuffix != "" {
		rest, ok = strings.CutSuffix(strings.TrimSpace(rest), v.CommentSuffix)
		if !ok {
			return "", false
		}
	}
	rest, ok = strings.CutPrefix(strings.TrimSpace(rest), v.marker())
	if !ok {
		return "", false
	}
	path := strings.TrimSpace(rest)
	return path, path != ""
}

// finish puts kept directive lines back ahead of body.
func (v *Variant) finish(directives []string, body string) string {
	head := make([]string, 0, len(directives)+1)
	for _, d := range directives {
		head = append(head, strings.TrimSpace(d))
	}
	if v.RequiredDirective != "" && len(head) == 0 && !strings.HasPrefix(body, v.RequiredDirective) {
		head = append(head, v.RequiredDirective)
	}

	out := body
	if len(head) > 0 {
		out = strings.Join(head, "\n")
		if body != "" {
			out += "\n\n" + body
		}
	}
	if v.TrailingNewline && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

func (v *Variant) fallbackPath(hint string) string {
	if v.CanHandle(filepath.Ext(hint)) {
		return hint
	}
	return hint + v.Exts[0]
}

func (v *Variant) isDirective(line string) bool {
	for _, d := range v.Directives {
		if strings.HasPrefix(line, d) {
			return true
		}
	}
	return false
}

func (v *Variant) marker() string {
	if v.Marker == "" {
		return DefaultMarker
	}
	return v.Marker
}

func (v *Variant) searchDepth() int {
	if v.DeclarationLines < 1 {
		return 1
	}
	return v.DeclarationLines
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// leadingLines returns up to n trimmed lines from the start of content,
// skipping leading blank lines.
func leadingLines(content string, n int) []string {
	lines := dropBlankLines(strings.Split(normalizeNewlines(content), "\n"))
	if len(lines) > n {
		lines = lines[:n]
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}

func dropBlankLines(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return lines
}
