package httpapi

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cratedocs/internal/config"
	"github.com/standardbeagle/cratedocs/internal/cratecache"
	"github.com/standardbeagle/cratedocs/internal/cratesvc"
	"github.com/standardbeagle/cratedocs/internal/cratetypes"
	"github.com/standardbeagle/cratedocs/internal/download"
)

func buildFixtureArchive(t *testing.T, root string, files map[string]string) []byte {
	t.Helper()

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
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

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, err := gw.Write(tarBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return gzBuf.Bytes()
}

func newTestServer(t *testing.T, cfg *config.Config, files map[string]string) *Server {
	t.Helper()

	cv := cratetypes.CrateVersion{Name: "demo", Version: "1.0.0"}
	archive := buildFixtureArchive(t, cv.RootDir(), files)

	archiveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(archive)
	}))
	t.Cleanup(archiveSrv.Close)

	downloader := download.NewWithClient(archiveSrv.Client(), archiveSrv.URL)
	cache, err := cratecache.New(16)
	require.NoError(t, err)
	svc := cratesvc.New(cache, downloader)

	return New(cfg, svc, nil)
}

func TestHealthAndLandingRoutes(t *testing.T) {
	s := newTestServer(t, &config.Config{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/privacy-policy", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Body.String())
}

func TestGetFileRoute(t *testing.T) {
	s := newTestServer(t, &config.Config{}, map[string]string{
		"src/lib.rs": "fn one() {}\nfn two() {}\n",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/file/demo/1.0.0/src/lib.rs", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "fn one() {}\nfn two() {}\n", w.Body.String())
	require.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestGetFileNotFound(t *testing.T) {
	s := newTestServer(t, &config.Config{}, map[string]string{"src/lib.rs": "fn f() {}\n"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/file/demo/1.0.0/src/missing.rs", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListDirectoryRoute(t *testing.T) {
	s := newTestServer(t, &config.Config{}, map[string]string{
		"src/lib.rs":  "fn one() {}\n",
		"src/util.rs": "fn two() {}\n",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/directory/demo/1.0.0/src", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var listing cratetypes.DirectoryListing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Equal(t, []string{"lib.rs", "util.rs"}, listing.Files)
}

func TestSearchItemsRoute(t *testing.T) {
	s := newTestServer(t, &config.Config{}, map[string]string{
		"src/lib.rs": "struct Widget;\nfn make_widget() -> Widget { Widget }\n",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/items/demo/1.0.0?type=struct", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var items []cratetypes.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "Widget", items[0].Name)
}

func TestSearchLinesRoute(t *testing.T) {
	s := newTestServer(t, &config.Config{}, map[string]string{
		"src/lib.rs": "fn alpha() {}\nfn beta() {}\n",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/lines/demo/1.0.0?query=beta", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var lines []cratetypes.Line
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lines))
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].LineNumber)
}

func TestBasicAuthRejectsWrongCredentials(t *testing.T) {
	cfg := &config.Config{Username: "alice", Password: "secret"}
	s := newTestServer(t, cfg, map[string]string{"src/lib.rs": "fn f() {}\n"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/directory/demo/1.0.0", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/directory/demo/1.0.0", nil)
	req.SetBasicAuth("alice", "wrong")
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/directory/demo/1.0.0", nil)
	req.SetBasicAuth("alice", "secret")
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGetFileLineRangeRoute(t *testing.T) {
	s := newTestServer(t, &config.Config{}, map[string]string{
		"src/lib.rs": "one\ntwo\nthree\nfour\n",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/file/demo/1.0.0/src/lib.rs?start=1&end=3", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "one\ntwo\nthree", w.Body.String())
	require.Contains(t, w.Header().Get("Content-Type"), "text/plain; charset=utf-8")
}

func TestSearchLinesRouteWithCombinedFilters(t *testing.T) {
	s := newTestServer(t, &config.Config{}, map[string]string{
		"src/timer.rs":  "fn Sleep() {}\nfn sleeping() {}\n",
		"src/other.toml": "Sleep = true\n",
		"tests/it.rs":    "fn Sleep() {}\n",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/lines/demo/1.0.0?query=Sleep&mode=plain-text&case_sensitive=true&whole_word=true&max_results=6&file_ext=rs&path=src",
		nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var lines []cratetypes.Line
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lines))
	require.LessOrEqual(t, len(lines), 6)
	for _, l := range lines {
		require.Contains(t, l.Text, "Sleep")
		require.True(t, strings.HasPrefix(l.File, "src/"))
		require.True(t, strings.HasSuffix(l.File, ".rs"))
	}
}

func TestBadRequestOnMalformedRangeParam(t *testing.T) {
	s := newTestServer(t, &config.Config{}, map[string]string{"src/lib.rs": "fn f() {}\n"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/file/demo/1.0.0/src/lib.rs?start=not-a-number", nil)
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
