// Author: Toluwalase Mebaanne

package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/tmair/snipbridge/shared/frame"
	"github.com/tmair/snipbridge/shared/protocol"
)

// deniedExtensions are never streamed during a sync: binaries, media,
// archives, databases and editor leftovers.
var deniedExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".svg", ".pdf",
	".mp4", ".avi", ".mov", ".mp3", ".wav", ".zip", ".tar", ".gz",
	".7z", ".rar", ".exe", ".dll", ".so", ".a", ".lib", ".o", ".obj",
	".class", ".jar", ".war", ".ear", ".swf", ".flv", ".psd", ".ai",
	".eps", ".ttf", ".woff", ".woff2", ".eot", ".otf", ".db", ".sqlite",
	".sqlite3", ".db3", ".sql", ".bak", ".log", ".tmp", ".temp",
	".cache", ".backup", ".old", ".swp", ".swo", ".swn",
}

func denySet(extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(deniedExtensions)+len(extra))
	for _, ext := range append(append([]string(nil), deniedExtensions...), extra...) {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// Denied reports whether a file is excluded from syncs by extension.
func (d *Dispatcher) Denied(path string) bool {
	_, ok := d.deny[strings.ToLower(filepath.Ext(path))]
	return ok
}

// emitFiles streams every eligible file under root to out, in listing
// order, and returns how many were sent. Per-file problems are logged and
// skipped; the caller gets no reply either way.
func (d *Dispatcher) emitFiles(ctx context.Context, root string, out Sender) int {
	files, err := d.lister.TrackedFiles(ctx, root)
	if err != nil {
		log.Error().Err(err).Str("destination", root).Msg("failed to list tracked files")
		return 0
	}

	sent := 0
	for _, rel := range files {
		if ctx.Err() != nil {
			break
		}
		if d.Denied(rel) {
			continue
		}

		path := filepath.Join(root, filepath.FromSlash(rel))
		content, ok := readText(path)
		if !ok {
			continue
		}
		if err := out.Send(protocol.NewFileContent(path, content)); err != nil {
			if frame.IsClosed(err) {
				log.Warn().Err(err).Str("destination", root).Int("sent", sent).Msg("peer went away during sync")
				break
			}
			log.Error().Err(err).Str("path", path).Msg("failed to send file")
			continue
		}
		log.Debug().Str("path", path).Msg("sent file content")
		sent++
	}
	return sent
}

// readText returns the file's content if it is a regular file holding
// valid UTF-8.
func readText(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("file not found")
		return "", false
	}
	if !info.Mode().IsRegular() {
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to read file")
		return "", false
	}
	if !utf8.Valid(data) {
		log.Debug().Str("path", path).Msg("skipping non-text file")
		return "", false
	}
	return string(data), true
}
