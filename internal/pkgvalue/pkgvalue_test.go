package pkgvalue

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cratedocs/internal/cratetypes"
)

func buildArchive(t *testing.T, root string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for rel, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: root + "/" + rel,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestBuildIndexesFilesAndDirectories(t *testing.T) {
	cv := cratetypes.CrateVersion{Name: "demo", Version: "1.0.0"}
	archive := buildArchive(t, cv.RootDir(), map[string]string{
		"Cargo.toml":     "[package]\n",
		"src/lib.rs":     "fn one() {}\n",
		"src/util/mk.rs": "fn two() {}\n",
	})

	pkg, err := Build(cv, archive)
	require.NoError(t, err)
	require.Equal(t, 3, pkg.FileCount())

	fd, ok := pkg.File("src/lib.rs")
	require.True(t, ok)
	require.Equal(t, "fn one() {}\n", string(pkg.Bytes(fd)))
}

func TestDirectoryClosureCoversEveryAncestor(t *testing.T) {
	cv := cratetypes.CrateVersion{Name: "demo", Version: "1.0.0"}
	archive := buildArchive(t, cv.RootDir(), map[string]string{
		"src/util/mk.rs": "fn two() {}\n",
	})

	pkg, err := Build(cv, archive)
	require.NoError(t, err)

	root, ok := pkg.Directory("")
	require.True(t, ok)
	require.Equal(t, []string{"src"}, root.Subdirectories)

	src, ok := pkg.Directory("src")
	require.True(t, ok)
	require.Equal(t, []string{"util"}, src.Subdirectories)

	util, ok := pkg.Directory("src/util")
	require.True(t, ok)
	require.Equal(t, []string{"mk.rs"}, util.Files)

	_, ok = pkg.Directory("src/lib.rs")
	require.False(t, ok, "a file path must not resolve as a directory")
}

func TestBuildIsIdempotentForIdenticalInput(t *testing.T) {
	cv := cratetypes.CrateVersion{Name: "demo", Version: "1.0.0"}
	archive := buildArchive(t, cv.RootDir(), map[string]string{
		"src/lib.rs": "fn one() {}\n",
	})

	p1, err := Build(cv, archive)
	require.NoError(t, err)
	p2, err := Build(cv, archive)
	require.NoError(t, err)

	require.Equal(t, p1.Checksum(), p2.Checksum())
	require.Equal(t, p1.FileCount(), p2.FileCount())
	require.Equal(t, p1.FilesSortedByPath(), p2.FilesSortedByPath())
}

func TestNonUtf8FileIsFlaggedAndExcludedFromDeclarations(t *testing.T) {
	cv := cratetypes.CrateVersion{Name: "demo", Version: "1.0.0"}
	archive := buildArchive(t, cv.RootDir(), map[string]string{
		"src/bin.rs": string([]byte{0xff, 0xfe, 0x00, 0x01}),
	})

	pkg, err := Build(cv, archive)
	require.NoError(t, err)

	fd, ok := pkg.File("src/bin.rs")
	require.True(t, ok)
	require.Equal(t, cratetypes.NonUtf8, fd.Encoding)
	require.Empty(t, pkg.Declarations().Search(cratetypes.ItemQuery{IsAll: true}))
}

func TestFilesSortedByPathIsSortedAndIndependent(t *testing.T) {
	cv := cratetypes.CrateVersion{Name: "demo", Version: "1.0.0"}
	archive := buildArchive(t, cv.RootDir(), map[string]string{
		"b.rs": "fn b() {}\n",
		"a.rs": "fn a() {}\n",
	})

	pkg, err := Build(cv, archive)
	require.NoError(t, err)

	out := pkg.FilesSortedByPath()
	require.Equal(t, []string{"a.rs", "b.rs"}, out)

	out[0] = "mutated"
	require.Equal(t, []string{"a.rs", "b.rs"}, pkg.FilesSortedByPath())
}
