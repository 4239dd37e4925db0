// Package backup snapshots DNS records to disk before they are overwritten.
// The files are an audit trail for operators; nothing in this system reads
// them back.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flaresync/flaresync/provider"
)

const (
	timestampLayout = "20060102_150405"
	maxNameLen      = 128
	placeholderName = "record"
)

type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Write serializes record as pretty-printed JSON into the backup directory,
// creating it if needed. A second write for the same name within one second
// overwrites the first.
func (w *Writer) Write(record provider.Record) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir %s: %w", w.dir, err)
	}

	name := fmt.Sprintf("%s_%s_backup.json", w.now().Format(timestampLayout), sanitizeName(record.Name))
	path := filepath.Join(w.dir, name)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record %s: %w", record.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup %s: %w", path, err)
	}
	return path, nil
}

// sanitizeName maps a record name onto a filesystem-safe filename component:
// ASCII alphanumerics, '.', '_' and '-' pass through, every other character
// becomes '_', and the result is capped at 128 characters.
func sanitizeName(name string) string {
	if name == "" {
		return placeholderName
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	s := b.String()
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	return s
}
