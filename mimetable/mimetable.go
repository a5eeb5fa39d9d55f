// Package mimetable implements the process-wide extension -> MIME-type
// mapping (component B). It is loaded once from a tab-separated file at
// server init and never mutated afterwards; concurrent reads are safe.
//
// Grounded on original_source/server/mimetable.c, which keeps a single
// global hash table of extension -> type built by mime_add_from_file and
// queried by mime_get.
package mimetable

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aofei/mimesniffer"
)

// Table is an extension -> MIME-type map. Build one with New: LoadFile
// and AddDefault write into the table's map, which the zero value does
// not have, so calling them on a zero Table panics. Lookup is safe on
// any Table, including one before any Load, consistent with §4.B's
// "behavior is unspecified and safe when called before loading".
type Table struct {
	mu   sync.RWMutex
	byExt map[string]string
}

// New returns an empty Table.
func New() *Table {
	return &Table{byExt: make(map[string]string)}
}

// LoadFile opens path, a tab-separated "extension<TAB>type" file, and
// inserts every line it can parse. A duplicate extension on a later line
// is rejected (first insertion wins) but does not abort loading. LoadFile
// returns an error only if zero lines were parsed successfully, per
// §4.B.
func (t *Table) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("mimetable: %w", err)
	}
	defer f.Close()

	t.mu.Lock()
	defer t.mu.Unlock()

	var added int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}

		ext, typ, ok := strings.Cut(line, "\t")
		if !ok || ext == "" || typ == "" {
			continue
		}

		if _, exists := t.byExt[ext]; exists {
			continue
		}

		t.byExt[ext] = typ
		added++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("mimetable: %w", err)
	}

	if added == 0 {
		return fmt.Errorf("mimetable: no entries parsed from %s", path)
	}

	return nil
}

// AddDefault inserts a single extension -> type mapping directly,
// without requiring a TSV file. Used by internal/mimeload to seed a
// built-in fallback table. A pre-existing extension is left untouched,
// matching LoadFile's first-insertion-wins rule.
func (t *Table) AddDefault(extension, typ string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byExt[extension]; exists {
		return
	}
	t.byExt[extension] = typ
}

// Lookup returns the MIME type associated with extension (without the
// leading dot), and whether it was found.
func (t *Table) Lookup(extension string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	typ, ok := t.byExt[extension]
	return typ, ok
}

// Sniff returns a best-effort MIME type for content whose extension isn't
// in the table, by inspecting its first bytes. This supplements §4.F's
// static-file content-type header (which the original C server simply
// omits on an unknown extension) using the same sniffer the teacher uses
// for the same purpose (aofei/air response.go: mimesniffer.Sniff).
func Sniff(content []byte) string {
	return mimesniffer.Sniff(content)
}
