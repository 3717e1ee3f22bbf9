// Package tarreader streams regular-file entries out of an uncompressed tar
// byte stream, skipping anything malformed or outside the crate's root
// directory.
package tarreader

import (
	"archive/tar"
	"bytes"
	"io"
	"strings"

	"github.com/standardbeagle/cratedocs/internal/cerrors"
	"github.com/standardbeagle/cratedocs/internal/debug"
)

// Entry is one regular-file entry surfaced to the index builder. Path is
// relative to the crate's root directory (the root prefix has already been
// stripped).
type Entry struct {
	Path string
	Size int64
	Body []byte
}

// Walk iterates every regular-file entry of the tar stream in tarBytes whose
// path begins with rootDir, handing each to fn. Entries whose path is
// malformed, cannot be decoded, or does not begin with rootDir are silently
// skipped. Opening the tar header is a fatal error; a malformed individual
// entry is not.
func Walk(tarBytes []byte, rootDir string, fn func(Entry) error) error {
	tr := tar.NewReader(bytes.NewReader(tarBytes))
	prefix := rootDir + "/"

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return cerrors.Internal("tarreader.Walk: read header", err)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := cleanEntryName(hdr.Name)
		if name == "" || !strings.HasPrefix(name, prefix) {
			debug.Logf("tarreader: skipping entry outside root: %q", hdr.Name)
			continue
		}

		rel := strings.TrimPrefix(name, prefix)
		if rel == "" {
			continue
		}

		body := make([]byte, hdr.Size)
		if _, err := io.ReadFull(tr, body); err != nil {
			debug.Logf("tarreader: skipping unreadable entry %q: %v", hdr.Name, err)
			continue
		}

		if err := fn(Entry{Path: rel, Size: hdr.Size, Body: body}); err != nil {
			return err
		}
	}
}

// cleanEntryName rejects entries with path traversal or absolute paths and
// normalizes the separator; a malformed name yields "".
func cleanEntryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "../") {
		return ""
	}
	return name
}
