// Package query implements the four query engines: line range extraction,
// directory listing, declaration search, and line search. Every engine
// reads a *pkgvalue.Package directly and performs no I/O.
package query

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/standardbeagle/cratedocs/internal/cerrors"
	"github.com/standardbeagle/cratedocs/internal/cratetypes"
	"github.com/standardbeagle/cratedocs/internal/pkgvalue"
)

// FileBytes holds the result of a line-range extraction: the sliced bytes
// and the encoding they were classified with.
type FileBytes struct {
	Data     []byte
	Encoding cratetypes.Encoding
}

// GetFile extracts a file's bytes, optionally sliced to a 1-based inclusive line range.
func GetFile(pkg *pkgvalue.Package, relPath string, rng cratetypes.FileLineRange) (FileBytes, error) {
	fd, ok := pkg.File(relPath)
	if !ok {
		return FileBytes{}, cerrors.NotFound("query.GetFile", fmt.Errorf("no such file: %s", relPath))
	}

	data := pkg.Bytes(fd)

	if rng.Start == nil && rng.End == nil {
		return FileBytes{Data: data, Encoding: fd.Encoding}, nil
	}

	if fd.Encoding == cratetypes.NonUtf8 {
		return FileBytes{}, cerrors.BadRequest("query.GetFile", fmt.Errorf("cannot apply a line range to a non-UTF8 file: %s", relPath))
	}

	start := 1
	if rng.Start != nil {
		start = *rng.Start
	}
	end := countLines(data)
	if rng.End != nil {
		end = *rng.End
	}
	if start > end {
		return FileBytes{Data: nil, Encoding: fd.Encoding}, nil
	}

	lo, hi := lineByteRange(data, start, end)
	return FileBytes{Data: data[lo:hi], Encoding: fd.Encoding}, nil
}

// countLines returns the number of '\n'-terminated lines in data, treating a
// trailing unterminated fragment as one more line (matching the semantics of
// splitting on '\n').
func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// lineByteRange finds the byte offsets spanning 1-based inclusive lines
// [start, end], inclusive of line terminators inside the range, exclusive of
// any terminator after line end. Out-of-range start yields an empty range.
func lineByteRange(data []byte, start, end int) (int, int) {
	if start < 1 {
		start = 1
	}

	lineStart := 0
	line := 1

	// Advance to the start of `start`.
	for line < start {
		idx := bytes.IndexByte(data[lineStart:], '\n')
		if idx == -1 {
			// start is beyond the last line.
			return len(data), len(data)
		}
		lineStart += idx + 1
		line++
	}
	if lineStart > len(data) {
		return len(data), len(data)
	}

	pos := lineStart
	for line <= end {
		idx := bytes.IndexByte(data[pos:], '\n')
		if idx == -1 {
			pos = len(data)
			break
		}
		if line == end {
			pos += idx
			break
		}
		pos += idx + 1
		line++
	}

	return lineStart, pos
}

// ListDirectory returns the immediate contents of a directory.
func ListDirectory(pkg *pkgvalue.Package, relPath string) (cratetypes.DirectoryListing, error) {
	d, ok := pkg.Directory(relPath)
	if !ok {
		return cratetypes.DirectoryListing{}, cerrors.NotFound("query.ListDirectory", fmt.Errorf("no such directory: %q", relPath))
	}
	return d, nil
}

// SearchDeclarations finds declarations matching q.
func SearchDeclarations(pkg *pkgvalue.Package, q cratetypes.ItemQuery) []cratetypes.Item {
	items := pkg.Declarations().Search(q)
	if items == nil {
		return []cratetypes.Item{}
	}
	return items
}

// SearchLines scans file contents for matches against q.
func SearchLines(pkg *pkgvalue.Package, q cratetypes.LineQuery) ([]cratetypes.Line, error) {
	re, err := compilePattern(q)
	if err != nil {
		return nil, cerrors.BadRequest("query.SearchLines", err)
	}

	exts := parseFileExt(q.FileExt)
	maxResults := -1
	if q.MaxResults != nil {
		maxResults = *q.MaxResults
	}

	var out []cratetypes.Line
	for _, rel := range pkg.FilesSortedByPath() {
		if maxResults >= 0 && len(out) >= maxResults {
			break
		}
		if q.Path != "" && !pathHasPrefix(rel, q.Path) {
			continue
		}
		if !extensionAllowed(rel, exts) {
			continue
		}

		fd, _ := pkg.File(rel)
		data := pkg.Bytes(fd)

		lineNo := 0
		for _, line := range splitLines(data) {
			lineNo++
			if maxResults >= 0 && len(out) >= maxResults {
				break
			}
			loc := re.FindIndex(line)
			if loc == nil {
				continue
			}
			out = append(out, cratetypes.Line{
				Text:        string(line),
				File:        rel,
				LineNumber:  lineNo,
				ColumnRange: [2]int{loc[0] + 1, loc[1] + 1},
			})
		}
	}

	if out == nil {
		out = []cratetypes.Line{}
	}
	return out, nil
}

// splitLines splits data on '\n' only, deliberately keeping a trailing '\r'
// in each emitted line's text rather than stripping Windows line endings.
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

func compilePattern(q cratetypes.LineQuery) (*regexp.Regexp, error) {
	pattern := q.Query
	if q.Mode == cratetypes.PlainText {
		pattern = regexp.QuoteMeta(pattern)
	}
	if q.WholeWord {
		pattern = `\b` + pattern + `\b`
	}
	if !q.CaseSensitive {
		pattern = `(?i)` + pattern
	}
	return regexp.Compile(pattern)
}

func parseFileExt(raw []string) []string {
	var out []string
	for _, e := range raw {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

func extensionAllowed(relPath string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.TrimPrefix(path.Ext(relPath), ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

func pathHasPrefix(file, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return file == prefix || strings.HasPrefix(file, prefix+"/")
}
