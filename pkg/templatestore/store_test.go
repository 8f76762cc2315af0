package templatestore

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-pipeline/pkg/errdefs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// makeZip builds an in-memory ZIP archive from a name->content map.
func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// serveZip returns a test server handing out the archive and a hit counter.
func serveZip(t *testing.T, archive []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
		w.Write(archive)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func validArchive(t *testing.T) []byte {
	return makeZip(t, map[string]string{
		"manifest.json":     `{"manifestVersion":1}`,
		"assets/bg.png":     "not-a-real-png",
		"assets/flower.png": "petals",
	})
}

func TestResolveDownloadsAndCaches(t *testing.T) {
	archive := validArchive(t)
	server, hits := serveZip(t, archive)

	store := New(t.TempDir(), Options{}, testLogger())

	res, err := store.Resolve(context.Background(), "tpl_001", "0.1.0", server.URL, sha256Hex(archive))
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	assert.True(t, filepath.IsAbs(res.Dir))
	assert.FileExists(t, filepath.Join(res.Dir, "manifest.json"))
	assert.FileExists(t, filepath.Join(res.Dir, "assets", "bg.png"))

	// Second resolve is a cache hit: same path, no network.
	again, err := store.Resolve(context.Background(), "tpl_001", "0.1.0", server.URL, sha256Hex(archive))
	require.NoError(t, err)
	assert.False(t, again.Downloaded)
	assert.Equal(t, res.Dir, again.Dir)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolveLayout(t *testing.T) {
	archive := validArchive(t)
	server, _ := serveZip(t, archive)
	cacheRoot := t.TempDir()
	checksum := sha256Hex(archive)

	store := New(cacheRoot, Options{}, testLogger())
	res, err := store.Resolve(context.Background(), "tpl_layout", "1.2.3", server.URL, checksum)
	require.NoError(t, err)

	want, err := filepath.Abs(filepath.Join(cacheRoot, "tpl_layout", "1.2.3", checksum))
	require.NoError(t, err)
	assert.Equal(t, want, res.Dir)
}

func TestResolveSingleFlight(t *testing.T) {
	archive := validArchive(t)
	server, hits := serveZip(t, archive)

	store := New(t.TempDir(), Options{}, testLogger())
	checksum := sha256Hex(archive)

	const callers = 10
	var wg sync.WaitGroup
	dirs := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Resolve(context.Background(), "tpl_001", "0.1.0", server.URL, checksum)
			dirs[i] = res.Dir
			errs[i] = err
		}()
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, dirs[0], dirs[i])
	}
	assert.Equal(t, int32(1), hits.Load(), "exactly one download across concurrent resolvers")
}

func TestResolveChecksumMismatch(t *testing.T) {
	archive := validArchive(t)
	server, _ := serveZip(t, archive)
	wrong := strings.Repeat("ab", 32)

	cacheRoot := t.TempDir()
	store := New(cacheRoot, Options{}, testLogger())

	_, err := store.Resolve(context.Background(), "tpl_001", "0.1.0", server.URL, wrong)
	require.Error(t, err)

	classified := errdefs.Convert(err)
	assert.Equal(t, errdefs.TemplateChecksumMismatch, classified.Code)
	assert.False(t, classified.Retryable())
	assert.Equal(t, wrong, classified.Detail["expected"])
	assert.Equal(t, sha256Hex(archive), classified.Detail["actual"])

	// Nothing published, nothing left behind.
	assert.NoFileExists(t, filepath.Join(cacheRoot, "tpl_001", "0.1.0", wrong, "manifest.json"))
	assertNoTransients(t, filepath.Join(cacheRoot, "tpl_001", "0.1.0"))
}

func TestResolveDownloadFailures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		store := New(t.TempDir(), Options{}, testLogger())
		_, err := store.Resolve(context.Background(), "tpl_001", "0.1.0", server.URL, strings.Repeat("a", 64))
		require.Error(t, err)
		assert.Equal(t, errdefs.TemplateDownloadFailed, errdefs.GetCode(err))
		assert.True(t, errdefs.IsRetryable(err))
	})

	t.Run("unreachable host", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		store := New(t.TempDir(), Options{}, testLogger())
		_, err := store.Resolve(context.Background(), "tpl_001", "0.1.0", url, strings.Repeat("a", 64))
		require.Error(t, err)
		assert.Equal(t, errdefs.TemplateDownloadFailed, errdefs.GetCode(err))
		assert.True(t, errdefs.IsRetryable(err))
	})
}

func TestResolveMalformedZip(t *testing.T) {
	junk := []byte("this is not a zip archive")
	server, _ := serveZip(t, junk)

	store := New(t.TempDir(), Options{}, testLogger())
	_, err := store.Resolve(context.Background(), "tpl_001", "0.1.0", server.URL, sha256Hex(junk))
	require.Error(t, err)
	assert.Equal(t, errdefs.TemplateExtractError, errdefs.GetCode(err))
	assert.False(t, errdefs.IsRetryable(err))
}

func TestResolveZipWithoutManifest(t *testing.T) {
	archive := makeZip(t, map[string]string{"assets/bg.png": "x"})
	server, _ := serveZip(t, archive)

	cacheRoot := t.TempDir()
	store := New(cacheRoot, Options{}, testLogger())
	_, err := store.Resolve(context.Background(), "tpl_001", "0.1.0", server.URL, sha256Hex(archive))
	require.Error(t, err)
	assert.Equal(t, errdefs.TemplateInvalid, errdefs.GetCode(err))
	assertNoTransients(t, filepath.Join(cacheRoot, "tpl_001", "0.1.0"))
}

func TestResolveRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../evil.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("pwned"))
	require.NoError(t, err)
	mf, err := w.Create("manifest.json")
	require.NoError(t, err)
	_, err = mf.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	archive := buf.Bytes()
	server, _ := serveZip(t, archive)

	cacheRoot := t.TempDir()
	store := New(cacheRoot, Options{}, testLogger())
	_, err = store.Resolve(context.Background(), "tpl_001", "0.1.0", server.URL, sha256Hex(archive))
	require.Error(t, err)
	assert.Equal(t, errdefs.TemplateExtractError, errdefs.GetCode(err))

	// The escape target must not exist.
	assert.NoFileExists(t, filepath.Join(cacheRoot, "tpl_001", "evil.txt"))
}

func TestKeyValidate(t *testing.T) {
	valid := Key{"tpl_001", "0.1.0", strings.Repeat("a", 64)}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		key  Key
	}{
		{"empty code", Key{"", "0.1.0", strings.Repeat("a", 64)}},
		{"bad semver", Key{"tpl", "v1", strings.Repeat("a", 64)}},
		{"short checksum", Key{"tpl", "0.1.0", "abc"}},
		{"uppercase checksum", Key{"tpl", "0.1.0", strings.Repeat("A", 64)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.key.Validate())
		})
	}
}

func TestResolveInvalidKeyIsInternal(t *testing.T) {
	store := New(t.TempDir(), Options{}, testLogger())
	_, err := store.Resolve(context.Background(), "tpl", "not-semver", "http://unused", strings.Repeat("a", 64))
	require.Error(t, err)
	assert.Equal(t, errdefs.Internal, errdefs.GetCode(err))
}

// assertNoTransients checks that no .zip.tmp files or .tmp staging
// directories remain under dir.
func assertNoTransients(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover transient %s", e.Name())
	}
}
