// Package pkgvalue builds and holds the frozen, shareable Package value: a
// single contiguous byte buffer plus the file and directory side indices
// and the declaration index built from it.
package pkgvalue

import (
	"path"
	"sort"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/cratedocs/internal/cratetypes"
	"github.com/standardbeagle/cratedocs/internal/declindex"
	"github.com/standardbeagle/cratedocs/internal/tarreader"
)

// Package is the frozen, shareable result of indexing one crate's tar
// archive. All inner collections are read-only after Build returns; a
// Package is cheap to duplicate by sharing these references, and outlives
// any cache entry that evicts it.
type Package struct {
	CrateVersion cratetypes.CrateVersion

	buffer      []byte
	files       map[string]cratetypes.FileDescriptor
	directories map[string]cratetypes.DirectoryListing
	decl        *declindex.Index

	fileCount int
}

// FileCount is the number of regular files indexed from the archive.
func (p *Package) FileCount() int { return p.fileCount }

// BufferLen is the length of the shared byte buffer backing every file slice.
func (p *Package) BufferLen() int { return len(p.buffer) }

// Checksum is a content fingerprint of the package's byte buffer, used by
// callers to compare two Package values cheaply without byte-for-byte
// equality.
func (p *Package) Checksum() uint64 {
	return xxhash.Sum64(p.buffer)
}

// File looks up a file's descriptor and reports whether it exists.
func (p *Package) File(relPath string) (cratetypes.FileDescriptor, bool) {
	fd, ok := p.files[relPath]
	return fd, ok
}

// Bytes returns the full byte slice backing a file descriptor. The slice
// aliases the package's shared buffer; callers must not mutate it.
func (p *Package) Bytes(fd cratetypes.FileDescriptor) []byte {
	return p.buffer[fd.Lo:fd.Hi]
}

// Directory looks up a directory listing and reports whether the path is a
// directory in this package.
func (p *Package) Directory(relPath string) (cratetypes.DirectoryListing, bool) {
	d, ok := p.directories[relPath]
	if !ok || d.Empty() {
		return cratetypes.DirectoryListing{}, false
	}
	return d, true
}

// Declarations returns the declaration index for declaration-search queries.
func (p *Package) Declarations() *declindex.Index { return p.decl }

// FilesSortedByPath returns every indexed file path in ascending byte order,
// the order the line search engine iterates files in. The returned slice is
// freshly built from the package's map and does not alias package state.
func (p *Package) FilesSortedByPath() []string {
	out := make([]string, 0, len(p.files))
	for rel := range p.files {
		out = append(out, rel)
	}
	sort.Strings(out)
	return out
}

// Build indexes an uncompressed tar archive into a Package. Tar-open
// failure is fatal (cerrors.Internal); an individual malformed entry or
// unparseable source file is swallowed.
func Build(cv cratetypes.CrateVersion, tarBytes []byte) (*Package, error) {
	p := &Package{
		CrateVersion: cv,
		files:        make(map[string]cratetypes.FileDescriptor),
		directories:  make(map[string]cratetypes.DirectoryListing),
		decl:         declindex.NewIndex(),
	}

	var buf []byte

	err := tarreader.Walk(tarBytes, cv.RootDir(), func(e tarreader.Entry) error {
		lo := len(buf)
		buf = append(buf, e.Body...)
		hi := len(buf)

		encoding := cratetypes.Utf8
		if !utf8.Valid(e.Body) {
			encoding = cratetypes.NonUtf8
		}

		p.files[e.Path] = cratetypes.FileDescriptor{Encoding: encoding, Lo: lo, Hi: hi}
		p.fileCount++
		p.addToDirectoryIndex(e.Path)

		if encoding == cratetypes.Utf8 && declindex.HasSourceExtension(e.Path) {
			p.decl.Add(e.Path, e.Body)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.buffer = buf
	return p, nil
}

// addToDirectoryIndex updates the directory map so every ancestor of
// relPath, including the empty root, gains the child on its path.
func (p *Package) addToDirectoryIndex(relPath string) {
	dir := path.Dir(relPath)
	if dir == "." {
		dir = ""
	}
	leaf := path.Base(relPath)

	p.addFile(dir, leaf)

	for dir != "" {
		parent := path.Dir(dir)
		if parent == "." {
			parent = ""
		}
		child := path.Base(dir)
		p.addSubdir(parent, child)
		dir = parent
	}
}

func (p *Package) addFile(dir, leaf string) {
	d := p.directories[dir]
	if !containsSorted(d.Files, leaf) {
		d.Files = insertSorted(d.Files, leaf)
	}
	p.directories[dir] = d
}

func (p *Package) addSubdir(dir, leaf string) {
	d := p.directories[dir]
	if !containsSorted(d.Subdirectories, leaf) {
		d.Subdirectories = insertSorted(d.Subdirectories, leaf)
	}
	p.directories[dir] = d
}

func containsSorted(list []string, v string) bool {
	i := sort.SearchStrings(list, v)
	return i < len(list) && list[i] == v
}

func insertSorted(list []string, v string) []string {
	i := sort.SearchStrings(list, v)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}
